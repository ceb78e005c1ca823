package domain

import (
	"time"

	"outreach-backend/pkg/apns"
)

// Device represents one registered push target. The token is an opaque
// bearer credential issued by the client platform: it is the unique key and
// must never appear in full in logs or API responses.
type Device struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	Token      string    `json:"-" gorm:"uniqueIndex;not null"`
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	OSVersion  string    `json:"os_version"`
	AppVersion string    `json:"app_version"`
	// First registration time; never touched by re-registration.
	RegisteredAt time.Time `json:"registered_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// TokenPrefix is the only form of the token that leaves the process.
func (d *Device) TokenPrefix() string {
	return apns.TokenPrefix(d.Token)
}
