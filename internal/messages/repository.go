package messages

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/apperror"
)

const columns = `id, sender_id, receiver_id, content, event_opportunity_id, COALESCE(event_opportunity_title, ''), read, created_at, updated_at`

// Repository handles message persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a message repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a message and fills its ID and timestamps.
func (r *Repository) Create(ctx context.Context, m *models.Message) error {
	const q = `INSERT INTO messages (id, sender_id, receiver_id, content, event_opportunity_id, event_opportunity_title)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, read, created_at, updated_at`
	var oppID *uuid.UUID
	var oppTitle *string
	if m.EventContext != nil {
		oppID = &m.EventContext.OpportunityID
		oppTitle = &m.EventContext.OpportunityTitle
	}
	err := r.pool.QueryRow(ctx, q, m.SenderID, m.ReceiverID, m.Content, oppID, oppTitle).
		Scan(&m.ID, &m.Read, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperror.NotFound("recipient not found")
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListForUser returns every message userID sent or received, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	return r.query(ctx, `SELECT `+columns+` FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC`, userID)
}

// Thread returns the messages exchanged between a and b, oldest first.
func (r *Repository) Thread(ctx context.Context, a, b uuid.UUID) ([]models.Message, error) {
	return r.query(ctx, `SELECT `+columns+` FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC`, a, b)
}

// MarkRead marks unread messages from sender to receiver read and returns how many changed.
func (r *Repository) MarkRead(ctx context.Context, senderID, receiverID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE messages SET read = TRUE, updated_at = NOW()
		WHERE sender_id = $1 AND receiver_id = $2 AND read = FALSE`, senderID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Participants returns the public profiles of the given users keyed by ID.
func (r *Repository) Participants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserPublic, error) {
	out := make(map[uuid.UUID]models.UserPublic, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, email, role, COALESCE(avatar, ''), created_at
		FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Avatar, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

func (r *Repository) query(ctx context.Context, q string, args ...interface{}) ([]models.Message, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	list := []models.Message{}
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

func scan(row pgx.Row) (*models.Message, error) {
	var m models.Message
	var oppID *uuid.UUID
	var oppTitle string
	if err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &oppID, &oppTitle, &m.Read, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if oppID != nil {
		m.EventContext = &models.EventContext{OpportunityID: *oppID, OpportunityTitle: oppTitle}
	}
	return &m, nil
}
