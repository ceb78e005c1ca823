package delivery

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"outreach-backend/internal/notify"
	"outreach-backend/pkg/apns"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// DecisionHandler is the scheduler entry point for raw agent decision
// payloads. Malformed payloads are dropped there, not surfaced as errors.
type DecisionHandler interface {
	HandleDecision(ctx context.Context, payload []byte) (notified int, ok bool)
}

type NotifyHandler struct {
	service   *notify.Service
	decisions DecisionHandler
	log       zerolog.Logger
}

func NewNotifyHandler(service *notify.Service, decisions DecisionHandler, log zerolog.Logger) *NotifyHandler {
	return &NotifyHandler{
		service:   service,
		decisions: decisions,
		log:       log.With().Str("component", "notify-api").Logger(),
	}
}

type sendRequest struct {
	Title    string       `json:"title" binding:"required"`
	Body     string       `json:"body" binding:"required"`
	Subtitle string       `json:"subtitle"`
	Category string       `json:"category"`
	Badge    *int         `json:"badge"`
	Data     *dataPayload `json:"data"`
}

type dataPayload struct {
	ContextType string                 `json:"context_type"`
	Fields      map[string]interface{} `json:"fields"`
}

// toNotification validates the request and converts the free-form data
// fields into the closed flat string map carried to the client. Strings and
// numbers are accepted; anything nested or otherwise untyped is rejected at
// the boundary instead of being passed through.
func (r *sendRequest) toNotification() (apns.Notification, error) {
	n := apns.Notification{
		Title:    r.Title,
		Body:     r.Body,
		Subtitle: r.Subtitle,
		Category: r.Category,
		Badge:    r.Badge,
		Urgency:  apns.UrgencyNormal,
	}
	if r.Category == "" {
		n.Category = apns.CategoryMessage
	}
	if r.Data == nil {
		return n, nil
	}

	fields := make(map[string]string, len(r.Data.Fields))
	for key, value := range r.Data.Fields {
		switch v := value.(type) {
		case string:
			fields[key] = v
		case float64:
			fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return apns.Notification{}, errors.New("data field " + key + " must be a string or number")
		}
	}
	n.Data = &apns.Payload{
		ContextType: r.Data.ContextType,
		Fields:      fields,
	}
	return n, nil
}

// SendToAll broadcasts a message to every registered device.
func (h *NotifyHandler) SendToAll(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and body are required"})
		return
	}
	n, err := req.toNotification()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.service.Broadcast(c.Request.Context(), n)
	if err != nil {
		h.log.Error().Err(err).Msg("broadcast failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "broadcast failed"})
		return
	}

	sent := 0
	out := make([]gin.H, 0, len(results))
	for _, r := range results {
		if r.Success {
			sent++
		}
		out = append(out, gin.H{
			"token_prefix": apns.TokenPrefix(r.Token),
			"success":      r.Success,
			"reason":       r.Reason,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sent":    sent,
		"results": out,
	})
}

// SendToDevice sends a message to one registered token.
func (h *NotifyHandler) SendToDevice(c *gin.Context) {
	token := c.Param("token")

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and body are required"})
		return
	}
	n, err := req.toNotification()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.DeliverTo(c.Request.Context(), token, n)
	if err != nil {
		if errors.Is(err, notify.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		h.log.Error().Err(err).Str("token", apns.TokenPrefix(token)).Msg("single send failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    result.Success,
		"gateway_id": result.ApnsID,
		"reason":     result.Reason,
	})
}

type agentNotifyRequest struct {
	Title   string `json:"title" binding:"required"`
	Message string `json:"message" binding:"required"`
	Urgency string `json:"urgency"`
}

// AgentNotify is the tool callback for an external AI agent. Urgency picks
// the presentation category: high gets the alert class, everything else the
// message class.
func (h *NotifyHandler) AgentNotify(c *gin.Context) {
	var req agentNotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and message are required"})
		return
	}

	urgency, ok := apns.ParseUrgency(req.Urgency)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "urgency must be low, normal or high"})
		return
	}

	category := apns.CategoryMessage
	if urgency == apns.UrgencyHigh {
		category = apns.CategoryAlert
	}

	results, err := h.service.Broadcast(c.Request.Context(), apns.Notification{
		Title:    req.Title,
		Body:     req.Message,
		Category: category,
		Urgency:  urgency,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("agent broadcast failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "broadcast failed"})
		return
	}

	notified := 0
	for _, r := range results {
		if r.Success {
			notified++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"devices_notified": notified,
	})
}

// AgentDecision accepts a structured {should_notify, message} decision.
// Negative and malformed decisions both answer success with zero devices;
// they are distinguished in logs only.
func (h *NotifyHandler) AgentDecision(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	notified, _ := h.decisions.HandleDecision(c.Request.Context(), payload)
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"devices_notified": notified,
	})
}
