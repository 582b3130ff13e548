// Package notification delivers signal alerts to an external channel
// (Telegram, webhooks) and formats indicator results into chat messages.
package notification

import (
	"context"
	"log"
)

// Alert is one outbound notification.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. On failure the caller logs and moves on;
	// a failed send never rolls back persisted history.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of sending them (development backend).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] %s: %s", alert.Title, alert.Message)
	return nil
}
