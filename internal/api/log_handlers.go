package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ivanreeve/poop-tracker/internal/service"
	"github.com/ivanreeve/poop-tracker/internal/stats"
)

func GetStoolTypes(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		HandleSuccess(c, app.Logger(), stats.StoolTypes(), nil)
	}
}

func GetLogs(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := currentSession(c, app)
		if !ok {
			return
		}
		refreshLogs(c, sess)
		st := sess.Logs.Snapshot()
		meta := map[string]any{"loading": st.Loading, "saving": st.Saving, "count": len(st.Logs)}
		if st.Error != "" {
			meta["error"] = st.Error
		}
		HandleSuccess(c, app.Logger(), service.LogViews(st.Logs), meta)
	}
}

func PostLog(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := currentSession(c, app)
		if !ok {
			return
		}

		var body service.LogRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		log, err := service.CreateLog(c.Request.Context(), sess.Logs, &body)
		if err != nil {
			HandleError(c, app.Logger(), err, statusFor(err), "Failed to save log")
			return
		}

		HandleCreated(c, app.Logger(), service.NewLogView(*log), nil)
	}
}

func DeleteLog(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := currentSession(c, app)
		if !ok {
			return
		}
		refreshLogs(c, sess)
		id := c.Param("id")
		if err := sess.Logs.DeleteLog(c.Request.Context(), id); err != nil {
			HandleError(c, app.Logger(), err, statusFor(err), "Failed to delete log")
			return
		}
		HandleSuccess(c, app.Logger(), gin.H{"id": id}, map[string]any{"undo_path": "/api/logs/" + id + "/restore"})
	}
}

// RestoreLog undoes the caller's most recent delete while the undo window
// is open.
func RestoreLog(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := currentSession(c, app)
		if !ok {
			return
		}
		log, err := sess.Logs.Undo(c.Request.Context(), c.Param("id"))
		if err != nil {
			HandleError(c, app.Logger(), err, statusFor(err), "Failed to restore log")
			return
		}
		HandleSuccess(c, app.Logger(), service.NewLogView(*log), nil)
	}
}

func GetStats(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := currentSession(c, app)
		if !ok {
			return
		}
		refreshLogs(c, sess)
		meta := map[string]any{}
		if err := sess.Logs.Err(); err != "" {
			meta["error"] = err
		}
		HandleSuccess(c, app.Logger(), service.Stats(sess.Logs, clientNow(c, app)), meta)
	}
}
