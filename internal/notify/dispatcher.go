// Package notify fans committed application changes out to realtime push and email jobs.
package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/internal/realtime"
	"github.com/volunteerhub/backend/pkg/queue"
)

// Pusher delivers realtime events to a user.
type Pusher interface {
	PublishToUser(userID uuid.UUID, event string, payload interface{}) error
}

// Users resolves recipients' addresses.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// EmailQueue accepts email jobs.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Dispatcher implements applications.Notifier. Every delivery is best effort:
// the change is already committed, so failures are logged and dropped.
type Dispatcher struct {
	pusher Pusher
	users  Users
	emails EmailQueue
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher. pusher and emails may be nil to disable that channel.
func NewDispatcher(pusher Pusher, users Users, emails EmailQueue, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{pusher: pusher, users: users, emails: emails, logger: logger}
}

// ApplicationChanged pushes ev to its recipient and queues the matching email.
func (d *Dispatcher) ApplicationChanged(ctx context.Context, ev models.ApplicationEvent) {
	log := d.logger.With(
		zap.String("event", string(ev.Type)),
		zap.String("application_id", ev.ApplicationID.String()),
		zap.String("recipient_id", ev.RecipientID.String()),
	)
	if ev.RecipientID == uuid.Nil {
		return
	}
	if d.pusher != nil {
		if err := d.pusher.PublishToUser(ev.RecipientID, realtime.EventApplicationUpdate, ev); err != nil {
			log.Warn("push application update failed", zap.Error(err))
		}
	}

	emailType, ok := EmailTypeFor(ev.Type)
	if !ok || d.emails == nil || d.users == nil {
		return
	}
	recipient, err := d.users.GetByID(ctx, ev.RecipientID)
	if err != nil {
		log.Warn("load email recipient failed", zap.Error(err))
		return
	}
	subject, body := Compose(ev, recipient.Name)
	err = d.emails.EnqueueEmail(ctx, queue.EmailPayload{
		ApplicationID:  ev.ApplicationID,
		EmailType:      emailType,
		RecipientEmail: recipient.Email,
		RecipientName:  recipient.Name,
		Subject:        subject,
		Body:           body,
	})
	if err != nil {
		log.Warn("enqueue email failed", zap.Error(err))
	}
}

// EmailTypeFor maps lifecycle events to the email they trigger. Cancellations send none.
func EmailTypeFor(t models.ApplicationEventType) (string, bool) {
	switch t {
	case models.EventApplicationCreated:
		return models.EmailTypeApplicationReceived, true
	case models.EventApplicationApproved:
		return models.EmailTypeApplicationApproved, true
	case models.EventApplicationRejected:
		return models.EmailTypeApplicationRejected, true
	}
	return "", false
}

// Compose renders the subject and plain-text body for ev.
func Compose(ev models.ApplicationEvent, recipientName string) (subject, body string) {
	greeting := "Hi"
	if recipientName != "" {
		greeting = "Hi " + recipientName
	}
	switch ev.Type {
	case models.EventApplicationCreated:
		subject = fmt.Sprintf("New application for %q", ev.OpportunityTitle)
		body = fmt.Sprintf("%s,\n\n%s.\nReview it from your dashboard.\n", greeting, ev.Message)
	case models.EventApplicationApproved:
		subject = fmt.Sprintf("You're in: %q", ev.OpportunityTitle)
		body = fmt.Sprintf("%s,\n\n%s. The organizer will reach out with next steps.\n", greeting, ev.Message)
	case models.EventApplicationRejected:
		subject = fmt.Sprintf("Update on your application to %q", ev.OpportunityTitle)
		body = fmt.Sprintf("%s,\n\n%s. Thank you for your interest, and keep exploring other opportunities.\n", greeting, ev.Message)
	default:
		subject = fmt.Sprintf("Update on %q", ev.OpportunityTitle)
		body = fmt.Sprintf("%s,\n\n%s.\n", greeting, ev.Message)
	}
	return subject, body
}
