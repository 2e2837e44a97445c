package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ivanreeve/poop-tracker/internal/service"
)

func GetFriends(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := currentSession(c, app)
		if !ok {
			return
		}
		// Requests from other users arrive in the store, so every read reloads.
		_ = sess.Friends.Load(c.Request.Context())
		st := sess.Friends.Snapshot()
		meta := map[string]any{"loading": st.Loading}
		if st.Error != "" {
			meta["error"] = st.Error
		}
		HandleSuccess(c, app.Logger(), service.BuildFriendsView(st, sess.Identity.ID), meta)
	}
}

func PostFriend(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := currentSession(c, app)
		if !ok {
			return
		}

		var body service.FriendRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid request: email required")
			return
		}

		f, err := service.SendFriendRequest(c.Request.Context(), sess.Friends, &body)
		if err != nil {
			HandleError(c, app.Logger(), err, statusFor(err), "Failed to send friend request")
			return
		}
		HandleCreated(c, app.Logger(), f, nil)
	}
}

func AcceptFriend(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := currentSession(c, app)
		if !ok {
			return
		}
		if err := sess.Friends.Accept(c.Request.Context(), c.Param("id")); err != nil {
			HandleError(c, app.Logger(), err, statusFor(err), "Failed to accept request")
			return
		}
		HandleSuccess(c, app.Logger(), service.BuildFriendsView(sess.Friends.Snapshot(), sess.Identity.ID), nil)
	}
}

// DeclineFriend covers declining an incoming request and cancelling an
// outgoing one.
func DeclineFriend(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := currentSession(c, app)
		if !ok {
			return
		}
		if err := sess.Friends.Decline(c.Request.Context(), c.Param("id")); err != nil {
			HandleError(c, app.Logger(), err, statusFor(err), "Failed to decline request")
			return
		}
		HandleSuccess(c, app.Logger(), service.BuildFriendsView(sess.Friends.Snapshot(), sess.Identity.ID), nil)
	}
}

func GetFriendLogs(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := currentSession(c, app)
		if !ok {
			return
		}
		if c.Query("refresh") == "true" || sess.Friends.Stale() {
			// Errors land on the snapshot.
			_ = sess.Friends.Load(c.Request.Context())
		}
		st := sess.Friends.Snapshot()
		meta := map[string]any{"count": len(st.FriendLogs)}
		if st.Error != "" {
			meta["error"] = st.Error
		}
		HandleSuccess(c, app.Logger(), service.BuildFeed(st), meta)
	}
}

func GetFriendStats(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := currentSession(c, app)
		if !ok {
			return
		}
		if c.Query("refresh") == "true" || sess.Friends.Stale() {
			_ = sess.Friends.Load(c.Request.Context())
		}
		sum, err := sess.Friends.FriendStats(c.Param("id"), clientNow(c, app))
		if err != nil {
			HandleError(c, app.Logger(), err, statusFor(err), "Failed to load friend stats")
			return
		}
		HandleSuccess(c, app.Logger(), sum, nil)
	}
}
