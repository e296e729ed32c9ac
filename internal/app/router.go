// internal/app/router.go
package app

import (
	"net/http"

	adminHandler "attendance-service/internal/handlers/admin"
	cronHandler "attendance-service/internal/handlers/cron"
	sessionHandler "attendance-service/internal/handlers/session"
	wsHandler "attendance-service/internal/handlers/websocket"
	"attendance-service/internal/middleware"
	"attendance-service/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	SessionHandler *sessionHandler.SessionHandler
	AdminHandler   *adminHandler.AdminHandler
	CronHandler    *cronHandler.CronHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
	CronMiddleware gin.HandlerFunc
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	// ==================== Health Check ====================
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": "1.0.0"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	api := r.Group("/api")

	// ==================== Session Lifecycle ====================
	auth := api.Group("/auth")
	{
		auth.POST("/login", h.SessionHandler.Login)
		auth.POST("/logout", h.SessionHandler.Logout)
		auth.POST("/verify-session", h.SessionHandler.VerifySession)
	}
	api.POST("/heartbeat", h.SessionHandler.Heartbeat)

	// ==================== Admin ====================
	sessions := api.Group("/sessions")
	sessions.Use(h.AuthMiddleware.AdminOnly()...)
	{
		sessions.GET("", h.AdminHandler.ListSessions)
		sessions.GET("/export", h.AdminHandler.ExportSessions)
		sessions.GET("/report", h.AdminHandler.WorkReport)
		sessions.POST("/:id/resolve", h.AdminHandler.ResolveSuspect)
	}
	api.GET("/ws/stats", append(h.AuthMiddleware.AdminOnly(), h.WSHandler.GetStats)...)

	// ==================== Internal (cron) ====================
	internal := r.Group("/internal")
	internal.Use(h.CronMiddleware)
	{
		internal.POST("/cron/auto-logout", h.CronHandler.AutoLogout)
		internal.POST("/cron/stale-heartbeats", h.CronHandler.StaleHeartbeats)
		internal.POST("/cron/daily-aggregate", h.CronHandler.DailyAggregate)
		internal.POST("/metrics", h.CronHandler.Metrics)
	}
}
