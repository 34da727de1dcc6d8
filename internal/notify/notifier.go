package notify

import (
	"context"
	"time"

	"upmon/internal/models"
)

// Event describes one monitor status transition to be delivered.
type Event struct {
	Monitor models.Monitor
	WasUp   bool
	IsUp    bool
	// Reason is the verdict's failure detail; empty on recovery.
	Reason string
	// Warnings are advisory (latency, SSL expiry) and ride along in the
	// message body; they never trigger a delivery on their own.
	Warnings  []string
	CheckedAt time.Time
}

// PushSender delivers a text message to a chat identity. Implementations
// return an error on delivery failure; callers log and move on.
type PushSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// EmailSender delivers an HTML email to a single address.
type EmailSender interface {
	SendEmail(to, subject, htmlBody string) error
}
