package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ivanreeve/poop-tracker/internal"
	"github.com/ivanreeve/poop-tracker/internal/auth"
	"github.com/ivanreeve/poop-tracker/internal/friends"
	"github.com/ivanreeve/poop-tracker/internal/logsync"
	"github.com/ivanreeve/poop-tracker/internal/response"
	"github.com/ivanreeve/poop-tracker/internal/session"
)

func HandleError(c *gin.Context, logger internal.Logger, err error, status int, msg string) {
	requestID := c.GetString("request_id")
	logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
	var resp response.APIResponse
	switch status {
	case http.StatusBadRequest:
		resp = response.BadRequest(msg + ": " + err.Error())
	case http.StatusNotFound:
		resp = response.NotFound(msg + ": " + err.Error())
	case http.StatusConflict:
		resp = response.Conflict(msg + ": " + err.Error())
	case http.StatusInternalServerError:
		resp = response.InternalError(msg + ": " + err.Error())
	default:
		resp = response.NewAppError(status, msg+": "+err.Error())
	}
	c.JSON(status, resp)
}

func HandleSuccess(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	handleStatus(c, logger, http.StatusOK, data, meta)
}

func HandleCreated(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	handleStatus(c, logger, http.StatusCreated, data, meta)
}

func handleStatus(c *gin.Context, logger internal.Logger, status int, data interface{}, meta map[string]any) {
	requestID := c.GetString("request_id")
	logger.Debugf("[request_id=%s] Success", requestID)
	c.JSON(status, response.Success(data, meta))
}

// statusFor maps domain errors to HTTP statuses. Anything unrecognized is a
// store failure.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, logsync.ErrInvalidType),
		errors.Is(err, friends.ErrEmailRequired),
		errors.Is(err, friends.ErrSelfRequest):
		return http.StatusBadRequest
	case errors.Is(err, friends.ErrNotRecipient),
		errors.Is(err, friends.ErrNotFriend):
		return http.StatusForbidden
	case errors.Is(err, logsync.ErrNotFound),
		errors.Is(err, friends.ErrRequestNotFound),
		errors.Is(err, friends.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, friends.ErrDuplicateRequest),
		errors.Is(err, friends.ErrNotPending):
		return http.StatusConflict
	case errors.Is(err, logsync.ErrUndoExpired):
		return http.StatusGone
	case errors.Is(err, logsync.ErrTimeout),
		errors.Is(err, friends.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// currentSession returns the caller's session, signing them in on first use.
func currentSession(c *gin.Context, app App) (*session.Session, bool) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.NewAppError(http.StatusUnauthorized, "Unauthorized"))
		return nil, false
	}
	return app.Sessions().SignIn(c.Request.Context(), *id), true
}

// refreshLogs reloads the caller's logs on ?refresh=true or when the last
// load failed. A failed reload only shows up in the snapshot error.
func refreshLogs(c *gin.Context, sess *session.Session) {
	if c.Query("refresh") == "true" || sess.Logs.Stale() {
		_ = sess.Logs.Load(c.Request.Context())
	}
}

// clientNow is the app clock in the caller's zone, taken from ?tz= when it
// names a valid IANA location. Day boundaries for stats follow it.
func clientNow(c *gin.Context, app App) time.Time {
	now := app.Now()
	if tz := c.Query("tz"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return now.In(loc)
		}
	}
	return now
}
