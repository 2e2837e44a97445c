// Package response defines the JSON envelope every API route answers with.
package response

import (
	"net/http"

	"github.com/ivanreeve/poop-tracker/internal"
)

// APIResponse is the {data, meta, error} envelope. Exactly one of Data and
// Error is set; Meta carries sync flags such as loading or a stale error.
type APIResponse struct {
	Data  interface{}        `json:"data,omitempty"`
	Meta  map[string]any     `json:"meta,omitempty"`
	Error *internal.AppError `json:"error,omitempty"`
}

// Success wraps data and optional meta.
func Success(data interface{}, meta map[string]any) APIResponse {
	return APIResponse{Data: data, Meta: meta}
}

func BadRequest(msg string) APIResponse {
	return NewAppError(http.StatusBadRequest, msg)
}

func InternalError(msg string) APIResponse {
	return NewAppError(http.StatusInternalServerError, msg)
}

func NotFound(msg string) APIResponse {
	return NewAppError(http.StatusNotFound, msg)
}

// Conflict is used for duplicate friend requests and non-pending records.
func Conflict(msg string) APIResponse {
	return NewAppError(http.StatusConflict, msg)
}

// NewAppError builds an error envelope whose code mirrors the HTTP status.
func NewAppError(status int, msg string) APIResponse {
	return APIResponse{Error: internal.NewAppError(status, msg)}
}
