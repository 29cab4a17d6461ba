package applications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/apperror"
)

const (
	selectApplication = `SELECT a.id, a.opportunity_id, a.applicant_id, a.status, a.history, a.notifications, a.created_at, a.updated_at,
		COALESCE(o.title,''), COALESCE(u.name,''), COALESCE(u.email,'')
		FROM applications a
		LEFT JOIN opportunities o ON o.id = a.opportunity_id
		LEFT JOIN users u ON u.id = a.applicant_id`

	unreadCondition    = `a.notifications @> '[{"read": false}]'::jsonb`
	unreadForRecipient = `a.notifications @> jsonb_build_array(jsonb_build_object('read', false, 'recipient', $%d::text))`
)

// Repository handles application persistence. History and notifications
// are JSONB columns on the application row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an applications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new application. The partial unique index on
// (applicant_id, opportunity_id) for active statuses turns a duplicate into Conflict.
func (r *Repository) Create(ctx context.Context, app *models.Application) error {
	history, notifications, err := encodeEmbedded(app)
	if err != nil {
		return err
	}
	const q = `INSERT INTO applications (id, opportunity_id, applicant_id, status, history, notifications, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (applicant_id, opportunity_id) WHERE status IN ('pending', 'approved') DO NOTHING
		RETURNING id, created_at, updated_at`
	err = r.pool.QueryRow(ctx, q, app.OpportunityID, app.ApplicantID, string(app.Status), history, notifications, app.CreatedAt).
		Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.Conflict("an active application for this opportunity already exists")
	}
	return translate(err, "create application")
}

// GetByID returns an application by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	app, err := scanApplication(r.pool.QueryRow(ctx, selectApplication+` WHERE a.id = $1`, id), true)
	if err != nil {
		return nil, translate(err, "get application")
	}
	return app, nil
}

// Update locks the row, applies mutate and writes status, history and
// notifications back in one statement.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, mutate func(*models.Application) error) (*models.Application, error) {
	var out *models.Application
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const sel = `SELECT a.id, a.opportunity_id, a.applicant_id, a.status, a.history, a.notifications, a.created_at, a.updated_at
			FROM applications a WHERE a.id = $1 FOR UPDATE`
		app, err := scanApplication(tx.QueryRow(ctx, sel, id), false)
		if err != nil {
			return translate(err, "lock application")
		}
		if err := mutate(app); err != nil {
			return err
		}
		history, notifications, err := encodeEmbedded(app)
		if err != nil {
			return err
		}
		const upd = `UPDATE applications SET status = $1, history = $2, notifications = $3, updated_at = $4 WHERE id = $5`
		if _, err := tx.Exec(ctx, upd, string(app.Status), history, notifications, app.UpdatedAt, app.ID); err != nil {
			return translate(err, "update application")
		}
		out = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns applications matching f, newest first.
func (r *Repository) List(ctx context.Context, f models.ApplicationFilter) ([]models.Application, error) {
	where, args := filterClause(f)
	rows, err := r.pool.Query(ctx, selectApplication+where+` ORDER BY a.created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	list := []models.Application{}
	for rows.Next() {
		app, err := scanApplication(rows, true)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		list = append(list, *app)
	}
	return list, rows.Err()
}

// MarkNotificationsRead marks every notification on the matching applications
// read and returns how many notifications changed.
func (r *Repository) MarkNotificationsRead(ctx context.Context, f models.ApplicationFilter) (int, error) {
	q, args := markReadQuery(f)
	var n int
	if err := r.pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return n, nil
}

// markReadQuery builds the bulk mark-read statement. The last argument is the
// recipient inbox ('' for all), so only notifications addressed to it are
// counted and flipped.
func markReadQuery(f models.ApplicationFilter) (string, []interface{}) {
	f.UnreadOnly = true
	where, args := filterClause(f)
	args = append(args, string(f.Recipient))
	inbox := fmt.Sprintf("($%d::text = '' OR n->>'recipient' = $%d::text)", len(args), len(args))
	q := `WITH target AS (
			SELECT a.id,
				(SELECT COUNT(*) FROM jsonb_array_elements(a.notifications) n
					WHERE (n->>'read')::boolean IS NOT TRUE AND ` + inbox + `) AS unread
			FROM applications a` + where + `
			FOR UPDATE
		), marked AS (
			UPDATE applications a
			SET notifications = (
				SELECT COALESCE(jsonb_agg(
					CASE WHEN ` + inbox + ` THEN n || '{"read": true}'::jsonb ELSE n END
					ORDER BY ord), '[]'::jsonb)
				FROM jsonb_array_elements(a.notifications) WITH ORDINALITY AS t(n, ord)
			), updated_at = NOW()
			FROM target
			WHERE a.id = target.id
			RETURNING target.unread
		)
		SELECT COALESCE(SUM(unread), 0)::int FROM marked`
	return q, args
}

// Stats counts applications by status.
func (r *Repository) Stats(ctx context.Context) (models.ApplicationStats, error) {
	const q = `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE status = 'pending'),
		COUNT(*) FILTER (WHERE status = 'approved'),
		COUNT(*) FILTER (WHERE status = 'rejected'),
		COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM applications`
	var s models.ApplicationStats
	err := r.pool.QueryRow(ctx, q).Scan(&s.Total, &s.Pending, &s.Approved, &s.Rejected, &s.Cancelled)
	if err != nil {
		return s, fmt.Errorf("application stats: %w", err)
	}
	return s, nil
}

// Leaderboard returns volunteers with the most approved applications.
func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	const q = `SELECT u.id, u.name, u.email, COUNT(*) AS approved_count
		FROM applications a
		JOIN users u ON u.id = a.applicant_id
		WHERE a.status = 'approved'
		GROUP BY u.id, u.name, u.email
		ORDER BY approved_count DESC, u.name
		LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()
	list := []models.LeaderboardEntry{}
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.Email, &e.ApprovedCount); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func filterClause(f models.ApplicationFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ApplicantID != nil {
		add("a.applicant_id = $%d", *f.ApplicantID)
	}
	if f.OpportunityIDs != nil {
		ids := make([]string, 0, len(f.OpportunityIDs))
		for _, id := range f.OpportunityIDs {
			ids = append(ids, id.String())
		}
		add("a.opportunity_id = ANY($%d::uuid[])", ids)
	}
	if f.OpportunityID != nil {
		add("a.opportunity_id = $%d", *f.OpportunityID)
	}
	if f.Status != "" {
		add("a.status = $%d", string(f.Status))
	}
	if f.UnreadOnly {
		if f.Recipient != "" {
			add(unreadForRecipient, string(f.Recipient))
		} else {
			conds = append(conds, unreadCondition)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanApplication(row pgx.Row, withRefs bool) (*models.Application, error) {
	var app models.Application
	var history, notifications []byte
	dest := []interface{}{&app.ID, &app.OpportunityID, &app.ApplicantID, &app.Status, &history, &notifications, &app.CreatedAt, &app.UpdatedAt}
	if withRefs {
		dest = append(dest, &app.OpportunityTitle, &app.ApplicantName, &app.ApplicantEmail)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(history, &app.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if err := json.Unmarshal(notifications, &app.Notifications); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return &app, nil
}

func encodeEmbedded(app *models.Application) (history, notifications []byte, err error) {
	if app.History == nil {
		app.History = []models.HistoryEntry{}
	}
	if app.Notifications == nil {
		app.Notifications = []models.Notification{}
	}
	if history, err = json.Marshal(app.History); err != nil {
		return nil, nil, fmt.Errorf("encode history: %w", err)
	}
	if notifications, err = json.Marshal(app.Notifications); err != nil {
		return nil, nil, fmt.Errorf("encode notifications: %w", err)
	}
	return history, notifications, nil
}

func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound("application not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperror.Conflict("an active application for this opportunity already exists")
		case "23503":
			return apperror.NotFound("opportunity or applicant not found")
		}
	}
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
