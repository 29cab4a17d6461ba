package models

import (
	"time"

	"github.com/google/uuid"
)

// EventContext ties a message to an opportunity.
type EventContext struct {
	OpportunityID    uuid.UUID `json:"opportunity_id"`
	OpportunityTitle string    `json:"opportunity_title,omitempty"`
}

// Message is one directed text between two users. Only Read changes after creation.
type Message struct {
	ID           uuid.UUID     `json:"id"`
	SenderID     uuid.UUID     `json:"sender_id"`
	ReceiverID   uuid.UUID     `json:"receiver_id"`
	Content      string        `json:"content"`
	EventContext *EventContext `json:"event_context,omitempty"`
	Read         bool          `json:"read"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Conversation summarizes the messages exchanged with one counterpart.
type Conversation struct {
	User              UserPublic        `json:"user"`
	Messages          []Message         `json:"messages"`
	LastMessage       *Message          `json:"last_message"`
	UnreadCount       int               `json:"unread_count"`
	OpportunityTitle  string            `json:"opportunity_title,omitempty"`
	ApplicationStatus ApplicationStatus `json:"application_status,omitempty"`
}
