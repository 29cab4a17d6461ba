package messages

import (
	"sort"

	"github.com/google/uuid"

	"github.com/volunteerhub/backend/internal/models"
)

// BuildConversations groups self's messages by counterpart.
//
// Each conversation carries its messages newest first, the latest message and
// the number of unread messages addressed to self. Applications, when given,
// annotate the applicant's conversation with the opportunity title and status,
// creating an empty conversation for applicants who have not written yet.
// Conversations with messages come first, most recent activity first.
func BuildConversations(self uuid.UUID, msgs []models.Message, users map[uuid.UUID]models.UserPublic, apps []models.Application) []models.Conversation {
	byUser := map[uuid.UUID]*models.Conversation{}
	var order []uuid.UUID

	get := func(id uuid.UUID) *models.Conversation {
		conv, ok := byUser[id]
		if !ok {
			u, known := users[id]
			if !known {
				u = models.UserPublic{ID: id}
			}
			conv = &models.Conversation{User: u, Messages: []models.Message{}}
			byUser[id] = conv
			order = append(order, id)
		}
		return conv
	}

	for i := range msgs {
		m := msgs[i]
		other := m.SenderID
		if other == self {
			other = m.ReceiverID
		}
		conv := get(other)
		conv.Messages = append(conv.Messages, m)
		if conv.LastMessage == nil || m.CreatedAt.After(conv.LastMessage.CreatedAt) {
			last := m
			conv.LastMessage = &last
		}
		if m.ReceiverID == self && !m.Read {
			conv.UnreadCount++
		}
	}

	for _, app := range apps {
		if app.ApplicantID == self {
			continue
		}
		conv := get(app.ApplicantID)
		if conv.User.Name == "" && app.ApplicantName != "" {
			conv.User.Name = app.ApplicantName
			conv.User.Email = app.ApplicantEmail
			conv.User.Role = models.RoleVolunteer
		}
		conv.OpportunityTitle = app.OpportunityTitle
		conv.ApplicationStatus = app.Status
	}

	out := make([]models.Conversation, 0, len(order))
	for _, id := range order {
		conv := byUser[id]
		sort.SliceStable(conv.Messages, func(i, j int) bool {
			return conv.Messages[i].CreatedAt.After(conv.Messages[j].CreatedAt)
		})
		out = append(out, *conv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessage, out[j].LastMessage
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out
}

// Counterparts returns the distinct users self exchanged messages with.
func Counterparts(self uuid.UUID, msgs []models.Message) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, m := range msgs {
		other := m.SenderID
		if other == self {
			other = m.ReceiverID
		}
		if !seen[other] {
			seen[other] = true
			ids = append(ids, other)
		}
	}
	return ids
}
