package apns

import "strconv"

// Urgency classes supplied by callers, mapped to gateway priority and
// client-side presentation.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency validates a caller-supplied urgency string.
func ParseUrgency(s string) (Urgency, bool) {
	switch Urgency(s) {
	case UrgencyLow, UrgencyNormal, UrgencyHigh:
		return Urgency(s), true
	case "":
		return UrgencyNormal, true
	}
	return "", false
}

// apnsPriority maps an urgency class to the gateway's apns-priority header.
func (u Urgency) apnsPriority() string {
	switch u {
	case UrgencyHigh:
		return "10"
	case UrgencyLow:
		return "1"
	default:
		return "5"
	}
}

// Notification categories understood by the client. Alert-class pushes get
// more intrusive presentation than message-class ones.
const (
	CategoryAlert   = "ALERT"
	CategoryMessage = "MESSAGE"
)

// Payload is opaque application data carried to the client alongside the
// presentation fields. Fields is a flat string map; numeric values are
// stringified at the API boundary.
type Payload struct {
	ContextType string            `json:"context_type,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// GetString returns a payload field, or "" when absent.
func (p *Payload) GetString(key string) string {
	if p == nil {
		return ""
	}
	return p.Fields[key]
}

// GetInt returns a payload field parsed as an integer.
func (p *Payload) GetInt(key string) (int, bool) {
	if p == nil {
		return 0, false
	}
	v, err := strconv.Atoi(p.Fields[key])
	if err != nil {
		return 0, false
	}
	return v, true
}

// Notification contains the content of one outbound push.
type Notification struct {
	Title    string
	Subtitle string
	Body     string
	Sound    string
	Category string
	ThreadID string
	Badge    *int
	Data     *Payload
	Urgency  Urgency
}

// PushResult summarises one push attempt against one device token.
// StatusCode 0 means the request never reached the gateway (network-level
// failure); any other value is the gateway's verdict.
type PushResult struct {
	Token      string `json:"-"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	ApnsID     string `json:"gateway_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Wire shape: presentation fields nest under the reserved "aps" key,
// application data under "data".
type apsAlert struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Body     string `json:"body,omitempty"`
}

type apsPayload struct {
	Alert    apsAlert `json:"alert"`
	Sound    string   `json:"sound,omitempty"`
	Badge    *int     `json:"badge,omitempty"`
	Category string   `json:"category,omitempty"`
	ThreadID string   `json:"thread-id,omitempty"`
}

type pushBody struct {
	APS  apsPayload `json:"aps"`
	Data *Payload   `json:"data,omitempty"`
}

func buildPushBody(n Notification) pushBody {
	sound := n.Sound
	if sound == "" {
		sound = "default"
	}
	return pushBody{
		APS: apsPayload{
			Alert: apsAlert{
				Title:    n.Title,
				Subtitle: n.Subtitle,
				Body:     n.Body,
			},
			Sound:    sound,
			Badge:    n.Badge,
			Category: n.Category,
			ThreadID: n.ThreadID,
		},
		Data: n.Data,
	}
}

// IsPermanentFailure reports whether a gateway rejection reason means the
// device token will never be deliverable again and should be dropped from
// the registry.
func IsPermanentFailure(reason string) bool {
	switch reason {
	case "Unregistered", "BadDeviceToken", "ExpiredToken":
		return true
	}
	return false
}

// TokenPrefix returns the fixed-length prefix of a device token that is safe
// to log and return in API responses. Full tokens never leave the process.
func TokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
