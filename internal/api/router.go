package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ivanreeve/poop-tracker/internal/auth"
	"github.com/ivanreeve/poop-tracker/internal/observability"
)

type RouterOptions struct {
	AllowedOrigins []string
	Metrics        *observability.Metrics
	// MetricsHandler serves /metrics; promhttp.Handler() when nil.
	MetricsHandler http.Handler
}

func NewRouter(app App, provider auth.Provider, opts RouterOptions) *gin.Engine {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(otelgin.Middleware(observability.ServiceName))
	r.Use(AccessLogMiddleware(app.Logger()))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	// Protected routes
	api := r.Group("/api")
	api.Use(auth.AuthMiddleware(provider))
	if opts.Metrics != nil {
		api.Use(func(c *gin.Context) {
			c.Next()
			opts.Metrics.SetActiveSessions(app.Sessions().Len())
		})
	}

	api.GET("/profile", GetProfile(app))
	api.GET("/stool-types", GetStoolTypes(app))
	api.POST("/session/signout", PostSignOut(app))

	api.GET("/logs", GetLogs(app))
	api.POST("/logs", PostLog(app))
	api.DELETE("/logs/:id", DeleteLog(app))
	api.POST("/logs/:id/restore", RestoreLog(app))
	api.GET("/stats", GetStats(app))

	api.GET("/friends", GetFriends(app))
	api.POST("/friends", PostFriend(app))
	api.GET("/friends/logs", GetFriendLogs(app))
	api.POST("/friends/:id/accept", AcceptFriend(app))
	api.DELETE("/friends/:id", DeclineFriend(app))
	api.GET("/friends/:id/stats", GetFriendStats(app))

	return r
}
