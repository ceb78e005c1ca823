package delivery

import (
	"errors"
	"net/http"
	"time"

	"outreach-backend/internal/outreach"
	"outreach-backend/pkg/apns"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type ScheduleHandler struct {
	scheduler *outreach.Scheduler
	log       zerolog.Logger
}

func NewScheduleHandler(scheduler *outreach.Scheduler, log zerolog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		scheduler: scheduler,
		log:       log.With().Str("component", "schedule-api").Logger(),
	}
}

type scheduleRequest struct {
	Name         string `json:"name"`
	Title        string `json:"title" binding:"required"`
	Body         string `json:"body" binding:"required"`
	Subtitle     string `json:"subtitle"`
	Category     string `json:"category"`
	Badge        *int   `json:"badge"`
	DelayMinutes int    `json:"delay_minutes" binding:"required,min=1"`
}

// Schedule arms a one-shot job that broadcasts after the requested delay.
func (h *ScheduleHandler) Schedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title, body and a positive delay_minutes are required"})
		return
	}

	category := req.Category
	if category == "" {
		category = apns.CategoryMessage
	}
	name := req.Name
	if name == "" {
		name = "one-shot"
	}

	job, err := h.scheduler.ScheduleOnce(time.Duration(req.DelayMinutes)*time.Minute, name, apns.Notification{
		Title:    req.Title,
		Body:     req.Body,
		Subtitle: req.Subtitle,
		Category: category,
		Badge:    req.Badge,
		Urgency:  apns.UrgencyNormal,
	})
	if err != nil {
		if errors.Is(err, outreach.ErrNotRunning) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler is not running"})
			return
		}
		h.log.Error().Err(err).Msg("schedule failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "schedule failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":  job.ID,
		"name":    job.Name,
		"fire_at": job.FireAt,
	})
}

// Cancel removes a pending one-shot job before it fires.
func (h *ScheduleHandler) Cancel(c *gin.Context) {
	if !h.scheduler.CancelJob(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// List reports the pending one-shot jobs.
func (h *ScheduleHandler) List(c *gin.Context) {
	jobs := h.scheduler.Jobs()
	c.JSON(http.StatusOK, gin.H{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

type taskCompleteRequest struct {
	Name   string `json:"name" binding:"required"`
	Result string `json:"result"`
}

// TaskComplete is the event entry point for finished background work.
func (h *ScheduleHandler) TaskComplete(c *gin.Context) {
	var req taskCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if err := h.scheduler.TaskComplete(c.Request.Context(), req.Name, req.Result); err != nil {
		if errors.Is(err, outreach.ErrNotRunning) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler is not running"})
			return
		}
		h.log.Error().Err(err).Msg("task-complete broadcast failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "broadcast failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "notified"})
}
