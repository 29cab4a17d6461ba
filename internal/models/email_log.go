package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType for application notices.
const (
	EmailTypeApplicationReceived = "application_received"
	EmailTypeApplicationApproved = "application_approved"
	EmailTypeApplicationRejected = "application_rejected"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusSent   = "sent"
	EmailLogStatusFailed = "failed"
)

// EmailLog records a (simulated) email delivery.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	ApplicationID  *uuid.UUID `json:"application_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
