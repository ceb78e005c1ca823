package api

import (
	"net/http"

	deviceDelivery "outreach-backend/internal/device/delivery"
	notifyDelivery "outreach-backend/internal/notify/delivery"
	outreachDelivery "outreach-backend/internal/outreach/delivery"

	"github.com/gin-gonic/gin"
)

const serviceName = "outreach-backend"

func SetupRoutes(r *gin.Engine, secret string, deviceHandler *deviceDelivery.DeviceHandler, notifyHandler *notifyDelivery.NotifyHandler, scheduleHandler *outreachDelivery.ScheduleHandler) {
	// Liveness check, no auth required
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})

	v1 := r.Group("/api/v1")
	v1.Use(SecretMiddleware(secret))
	{
		devices := v1.Group("/devices")
		{
			devices.POST("/register", deviceHandler.Register)
			devices.DELETE("/:token", deviceHandler.Unregister)
			devices.GET("", deviceHandler.List)
		}

		notifications := v1.Group("/notifications")
		{
			notifications.POST("/send", notifyHandler.SendToAll)
			notifications.POST("/send/:token", notifyHandler.SendToDevice)
			notifications.POST("/schedule", scheduleHandler.Schedule)
			notifications.GET("/schedule", scheduleHandler.List)
			notifications.DELETE("/schedule/:id", scheduleHandler.Cancel)
		}

		agent := v1.Group("/agent")
		{
			agent.POST("/notify", notifyHandler.AgentNotify)
			agent.POST("/decision", notifyHandler.AgentDecision)
		}

		v1.POST("/events/task-complete", scheduleHandler.TaskComplete)
	}
}
