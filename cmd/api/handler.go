package api

import (
	deviceDelivery "outreach-backend/internal/device/delivery"
	notifyDelivery "outreach-backend/internal/notify/delivery"
	outreachDelivery "outreach-backend/internal/outreach/delivery"
	"outreach-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	engine *gin.Engine
}

func NewHandler(cfg *config.Config, deviceHandler *deviceDelivery.DeviceHandler, notifyHandler *notifyDelivery.NotifyHandler, scheduleHandler *outreachDelivery.ScheduleHandler) *Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	SetupRoutes(r, cfg.APISecret, deviceHandler, notifyHandler, scheduleHandler)

	return &Handler{engine: r}
}

// Engine exposes the router for tests.
func (h *Handler) Engine() *gin.Engine {
	return h.engine
}

func (h *Handler) Start(addr string) error {
	return h.engine.Run(addr)
}
