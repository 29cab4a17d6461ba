package opportunities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/apperror"
)

const columns = `id, title, description, deadline, category, location, skills, image_url, created_by, created_at, updated_at`

// Repository handles opportunity persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an opportunity repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new opportunity.
func (r *Repository) Create(ctx context.Context, o *models.Opportunity) error {
	const q = `INSERT INTO opportunities (id, title, description, deadline, category, location, skills, image_url, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	skills := o.Skills
	if skills == nil {
		skills = []string{}
	}
	err := r.pool.QueryRow(ctx, q, o.Title, o.Description, o.Deadline, o.Category, o.Location, skills, o.ImageURL, o.CreatedBy).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

// GetByID returns an opportunity by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM opportunities WHERE id = $1`, id)
	o, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("opportunity not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return o, nil
}

// List returns opportunities matching f, soonest deadline first.
func (r *Repository) List(ctx context.Context, f models.OpportunityFilter) ([]models.Opportunity, error) {
	where, args := listWhere(f)
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM opportunities`+where+` ORDER BY deadline ASC, created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	list := []models.Opportunity{}
	for rows.Next() {
		o, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}

// ListIDsByOwner returns the IDs of every opportunity created by ownerID.
func (r *Repository) ListIDsByOwner(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM opportunities WHERE created_by = $1`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list owned opportunities: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("list owned opportunities: %w", err)
	}
	return ids, nil
}

// Update is a partial update; nil fields keep their stored value.
type Update struct {
	Title       *string
	Description *string
	Deadline    *time.Time
	Category    *string
	Location    *string
	Skills      []string
	ImageURL    *string
}

// Update applies u to the opportunity and returns the stored row.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, u Update) (*models.Opportunity, error) {
	const q = `UPDATE opportunities SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			deadline = COALESCE($4, deadline),
			category = COALESCE($5, category),
			location = COALESCE($6, location),
			skills = COALESCE($7, skills),
			image_url = COALESCE($8, image_url),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + columns
	row := r.pool.QueryRow(ctx, q, id, u.Title, u.Description, u.Deadline, u.Category, u.Location, u.Skills, u.ImageURL)
	o, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("opportunity not found")
	}
	if err != nil {
		return nil, fmt.Errorf("update opportunity: %w", err)
	}
	return o, nil
}

// Delete removes an opportunity and, by cascade, its applications.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM opportunities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete opportunity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("opportunity not found")
	}
	return nil
}

// listWhere builds the WHERE clause for f. Text filters are case-insensitive.
func listWhere(f models.OpportunityFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		add("category ILIKE $%d", c)
	}
	if l := strings.TrimSpace(f.Location); l != "" {
		add("location ILIKE $%d", "%"+l+"%")
	}
	if s := strings.TrimSpace(f.Skill); s != "" {
		add("EXISTS (SELECT 1 FROM unnest(skills) sk WHERE sk ILIKE $%d)", s)
	}
	if f.CreatedBy != nil {
		add("created_by = $%d", *f.CreatedBy)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scan(row pgx.Row) (*models.Opportunity, error) {
	var o models.Opportunity
	err := row.Scan(&o.ID, &o.Title, &o.Description, &o.Deadline, &o.Category, &o.Location, &o.Skills, &o.ImageURL, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
