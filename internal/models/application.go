package models

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is the lifecycle state of an application.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationApproved  ApplicationStatus = "approved"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationCancelled ApplicationStatus = "cancelled"
)

// Active reports whether the status blocks a new application for the same pair.
func (s ApplicationStatus) Active() bool {
	return s == ApplicationPending || s == ApplicationApproved
}

// Terminal reports whether no transition leaves s.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationApproved || s == ApplicationRejected || s == ApplicationCancelled
}

// HistoryEntry records one status the application has held.
type HistoryEntry struct {
	Status    ApplicationStatus `json:"status"`
	ChangedBy *uuid.UUID        `json:"changed_by,omitempty"`
	ChangedAt time.Time         `json:"changed_at"`
}

// Notification is a pull-delivered notice attached to an application.
// Recipient is the side it is addressed to: the applicant (volunteer) or
// the opportunity owner (org).
type Notification struct {
	Message   string    `json:"message"`
	Recipient Role      `json:"recipient"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// AddressedTo reports whether n belongs in the inbox of recipient. An empty
// recipient is the unfiltered admin view.
func (n Notification) AddressedTo(recipient Role) bool {
	return recipient == "" || n.Recipient == recipient
}

// Application is a volunteer's bid for one opportunity. History and
// notifications are stored in the same row as the status.
type Application struct {
	ID            uuid.UUID         `json:"id"`
	OpportunityID uuid.UUID         `json:"opportunity_id"`
	ApplicantID   uuid.UUID         `json:"applicant_id"`
	Status        ApplicationStatus `json:"status"`
	History       []HistoryEntry    `json:"history"`
	Notifications []Notification    `json:"notifications"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`

	// Populated on listings.
	OpportunityTitle string `json:"opportunity_title,omitempty"`
	ApplicantName    string `json:"applicant_name,omitempty"`
	ApplicantEmail   string `json:"applicant_email,omitempty"`
}

// Record sets the status and appends the matching history entry.
func (a *Application) Record(status ApplicationStatus, by uuid.UUID, at time.Time) {
	changedBy := by
	a.Status = status
	a.History = append(a.History, HistoryEntry{Status: status, ChangedBy: &changedBy, ChangedAt: at})
	a.UpdatedAt = at
}

// Notify appends an unread notification for recipient.
func (a *Application) Notify(message string, recipient Role, at time.Time) {
	a.Notifications = append(a.Notifications, Notification{Message: message, Recipient: recipient, CreatedAt: at})
	a.UpdatedAt = at
}

// MarkNotificationsRead marks the notifications addressed to recipient read
// and returns how many changed.
func (a *Application) MarkNotificationsRead(recipient Role) int {
	n := 0
	for i := range a.Notifications {
		if !a.Notifications[i].Read && a.Notifications[i].AddressedTo(recipient) {
			a.Notifications[i].Read = true
			n++
		}
	}
	return n
}

// UnreadNotifications returns the unread notifications addressed to recipient.
func (a *Application) UnreadNotifications(recipient Role) []Notification {
	var out []Notification
	for _, n := range a.Notifications {
		if !n.Read && n.AddressedTo(recipient) {
			out = append(out, n)
		}
	}
	return out
}

// ApplicationFilter scopes an application query. A nil filter field is not applied;
// a non-nil empty OpportunityIDs matches nothing.
type ApplicationFilter struct {
	ApplicantID    *uuid.UUID
	OpportunityIDs []uuid.UUID
	OpportunityID  *uuid.UUID
	Status         ApplicationStatus
	UnreadOnly     bool
	// Recipient limits notification reads and marks to one inbox; empty means all.
	Recipient Role
}

// ApplicationStats counts applications by status.
type ApplicationStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Cancelled int `json:"cancelled"`
}

// LeaderboardEntry is a volunteer ranked by approved applications.
type LeaderboardEntry struct {
	UserID        uuid.UUID `json:"user_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	ApprovedCount int       `json:"approved_count"`
}

// ApplicationNotification pairs an unread notification with its application.
type ApplicationNotification struct {
	ApplicationID uuid.UUID `json:"application_id"`
	Notification
}
