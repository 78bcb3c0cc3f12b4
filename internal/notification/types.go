// Package notification pushes identification results to chat and webhook
// services through shoutrrr.
package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/phibia-app/phibia-go/internal/logger"
)

// Type represents the category of a notification
type Type string

const (
	// TypeDetection is sent for every identification result
	TypeDetection Type = "detection"
	// TypeError reports a failure the user should know about
	TypeError Type = "error"
	// TypeInfo is informational
	TypeInfo Type = "info"
)

// Notification is one message handed to providers.
type Notification struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewNotification creates a notification with a unique ID and timestamp.
func NewNotification(notifType Type, title, message string) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		Type:      notifType,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithMetadata adds a metadata entry and returns n for chaining.
func (n *Notification) WithMetadata(key string, value any) *Notification {
	if n.Metadata == nil {
		n.Metadata = make(map[string]any)
	}
	n.Metadata[key] = value
	return n
}

func getLogger() logger.Logger {
	return logger.Global().Module("notification")
}
