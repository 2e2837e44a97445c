package internal

import "net/http"

// AppError is the error body of the API envelope. Messages are meant for
// display; there is no structured error taxonomy beyond the code.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(code int, msg string) *AppError {
	if msg == "" {
		msg = http.StatusText(code)
	}
	return &AppError{Code: code, Message: msg}
}
