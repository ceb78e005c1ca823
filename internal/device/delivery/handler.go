package delivery

import (
	"net/http"

	"outreach-backend/internal/device/repository"
	"outreach-backend/pkg/apns"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type DeviceHandler struct {
	repo repository.DeviceRepository
	log  zerolog.Logger
}

func NewDeviceHandler(repo repository.DeviceRepository, log zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{
		repo: repo,
		log:  log.With().Str("component", "device-api").Logger(),
	}
}

type registerRequest struct {
	Token      string `json:"token" binding:"required"`
	Name       string `json:"name"`
	Model      string `json:"model"`
	OSVersion  string `json:"os_version"`
	AppVersion string `json:"app_version"`
}

// Register upserts a device. Re-registration with a known token refreshes
// metadata and last_seen_at only.
func (h *DeviceHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	device, err := h.repo.Upsert(req.Token, repository.Metadata{
		Name:       req.Name,
		Model:      req.Model,
		OSVersion:  req.OSVersion,
		AppVersion: req.AppVersion,
	})
	if err != nil {
		h.log.Error().Err(err).Str("token", apns.TokenPrefix(req.Token)).Msg("device upsert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register device"})
		return
	}

	h.log.Info().Str("token", device.TokenPrefix()).Str("name", device.Name).Msg("device registered")
	c.JSON(http.StatusOK, gin.H{
		"status": "registered",
		"device": gin.H{
			"token_prefix":  device.TokenPrefix(),
			"name":          device.Name,
			"registered_at": device.RegisteredAt,
		},
	})
}

// Unregister removes a device by token.
func (h *DeviceHandler) Unregister(c *gin.Context) {
	token := c.Param("token")

	removed, err := h.repo.Remove(token)
	if err != nil {
		h.log.Error().Err(err).Str("token", apns.TokenPrefix(token)).Msg("device removal failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unregister device"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	h.log.Info().Str("token", apns.TokenPrefix(token)).Msg("device unregistered")
	c.JSON(http.StatusOK, gin.H{"status": "unregistered"})
}

// List returns prefixes and metadata for every registered device.
func (h *DeviceHandler) List(c *gin.Context) {
	devices, err := h.repo.List()
	if err != nil {
		h.log.Error().Err(err).Msg("device list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list devices"})
		return
	}

	out := make([]gin.H, 0, len(devices))
	for _, d := range devices {
		out = append(out, gin.H{
			"token_prefix": d.TokenPrefix(),
			"name":         d.Name,
			"model":        d.Model,
			"last_seen_at": d.LastSeenAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(out),
		"devices": out,
	})
}
