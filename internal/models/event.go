package models

import "github.com/google/uuid"

// ApplicationEventType names a lifecycle change worth telling someone about.
type ApplicationEventType string

const (
	EventApplicationCreated   ApplicationEventType = "application_created"
	EventApplicationApproved  ApplicationEventType = "application_approved"
	EventApplicationRejected  ApplicationEventType = "application_rejected"
	EventApplicationCancelled ApplicationEventType = "application_cancelled"
)

// ApplicationEvent is emitted after a lifecycle change has been committed.
type ApplicationEvent struct {
	Type             ApplicationEventType `json:"type"`
	ApplicationID    uuid.UUID            `json:"application_id"`
	OpportunityID    uuid.UUID            `json:"opportunity_id"`
	OpportunityTitle string               `json:"opportunity_title"`
	Status           ApplicationStatus    `json:"status"`
	ActorID          uuid.UUID            `json:"actor_id"`
	RecipientID      uuid.UUID            `json:"recipient_id"`
	Message          string               `json:"message"`
}
