package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ivanreeve/poop-tracker/internal/auth"
	"github.com/ivanreeve/poop-tracker/internal/response"
)

func GetProfile(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := currentSession(c, app)
		if !ok {
			return
		}
		p, perr := sess.Profile()
		meta := map[string]any{"greeting_name": sess.GreetingName()}
		if perr != "" {
			meta["error"] = perr
		}
		HandleSuccess(c, app.Logger(), p, meta)
	}
}

// PostSignOut drops the caller's in-memory state. The token itself is
// revoked by the identity provider, not here.
func PostSignOut(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.NewAppError(http.StatusUnauthorized, "Unauthorized"))
			return
		}
		app.Sessions().SignOut(id.ID)
		c.Status(http.StatusNoContent)
	}
}
