package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ARPaule28/omnichannel/internal/httpapi"
	"github.com/ARPaule28/omnichannel/internal/telephony"
	"github.com/ARPaule28/omnichannel/pkg/utils"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, api httpapi.Handlers, webhooks *telephony.WebhookHandlers, authMW gin.HandlerFunc, db *sql.DB, rdb *redis.Client) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: These endpoints should be protected by provider signature
	// validation in production.
	webhooks.Register(r)

	r.POST("/v1/auth/login", api.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", api.Me)
		v1.GET("/users", api.ListUsers)

		v1.POST("/messages/email", api.SendEmail)
		v1.POST("/messages/sms", api.SendSMS)
		v1.POST("/messages/chat", api.SendChat)
		v1.PATCH("/messages/:id/status", api.AdvanceMessageStatus)
		v1.GET("/messages", api.ListMessages)

		v1.POST("/calls", api.StartCall)
		v1.POST("/calls/:id/hangup", api.HangUpCall)
		v1.POST("/calls/:id/decline", api.DeclineCall)
		v1.GET("/calls", api.ListCalls)

		v1.GET("/timeline", api.GetTimeline)
		v1.GET("/mail/inbox", api.GetInbox)
		v1.GET("/attachments/:key", api.DownloadAttachment)
	}
}
