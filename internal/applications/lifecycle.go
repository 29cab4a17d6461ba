package applications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/volunteerhub/backend/internal/metrics"
	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/apperror"
)

// Store persists applications. Update must apply mutate and write the result
// atomically on a single row; a non-nil error from mutate aborts the write.
type Store interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	Update(ctx context.Context, id uuid.UUID, mutate func(*models.Application) error) (*models.Application, error)
	List(ctx context.Context, f models.ApplicationFilter) ([]models.Application, error)
	MarkNotificationsRead(ctx context.Context, f models.ApplicationFilter) (int, error)
	Stats(ctx context.Context) (models.ApplicationStats, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// Opportunities resolves the opportunities applications point at.
type Opportunities interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
	ListIDsByOwner(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
}

// Users resolves applicant accounts.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Messages stores the introductory message sent on application.
type Messages interface {
	Create(ctx context.Context, m *models.Message) error
}

// Notifier is told about committed lifecycle changes.
type Notifier interface {
	ApplicationChanged(ctx context.Context, ev models.ApplicationEvent)
}

// Manager owns the application lifecycle.
type Manager struct {
	store         Store
	opportunities Opportunities
	users         Users
	messages      Messages
	notifier      Notifier
	logger        *zap.Logger
	now           func() time.Time
}

// NewManager creates an application lifecycle manager. messages and notifier may be nil.
func NewManager(store Store, opportunities Opportunities, users Users, messages Messages, notifier Notifier, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:         store,
		opportunities: opportunities,
		users:         users,
		messages:      messages,
		notifier:      notifier,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Create files a pending application from a volunteer.
func (m *Manager) Create(ctx context.Context, p models.Principal, opportunityID uuid.UUID) (*models.Application, error) {
	if err := Authorize(p, ActionApply, Resource{}).Err(); err != nil {
		return nil, err
	}
	opp, err := m.opportunities.GetByID(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	volunteer, err := m.users.GetByID(ctx, p.ID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.Unauthenticated("account no longer exists")
		}
		return nil, err
	}

	now := m.now()
	app := &models.Application{
		OpportunityID: opp.ID,
		ApplicantID:   p.ID,
		CreatedAt:     now,
	}
	app.Record(models.ApplicationPending, p.ID, now)
	app.Notify(fmt.Sprintf("%s applied to %q", displayName(volunteer), opp.Title), models.RoleOrg, now)

	if err := m.store.Create(ctx, app); err != nil {
		return nil, err
	}
	metrics.ApplicationTransitions.WithLabelValues(string(models.ApplicationPending)).Inc()

	if m.messages != nil {
		intro := &models.Message{
			SenderID:     p.ID,
			ReceiverID:   opp.CreatedBy,
			Content:      introMessage(opp.Title),
			EventContext: &models.EventContext{OpportunityID: opp.ID, OpportunityTitle: opp.Title},
		}
		if err := m.messages.Create(ctx, intro); err != nil {
			m.logger.Warn("send intro message failed", zap.Error(err), zap.String("application_id", app.ID.String()))
		}
	}

	m.emit(ctx, models.ApplicationEvent{
		Type:          models.EventApplicationCreated,
		ApplicationID: app.ID,
		Status:        app.Status,
		ActorID:       p.ID,
		RecipientID:   opp.CreatedBy,
		Message:       app.Notifications[len(app.Notifications)-1].Message,
	}, opp)
	return app, nil
}

// Cancel withdraws a pending application on behalf of its applicant.
func (m *Manager) Cancel(ctx context.Context, p models.Principal, id uuid.UUID) (*models.Application, error) {
	if p.IsZero() {
		return nil, apperror.Unauthenticated("authentication required")
	}
	now := m.now()
	var notice string
	updated, err := m.store.Update(ctx, id, func(app *models.Application) error {
		if err := Authorize(p, ActionCancel, Resource{Application: app}).Err(); err != nil {
			return err
		}
		if app.Status != models.ApplicationPending {
			return apperror.InvalidState(fmt.Sprintf("only pending applications can be cancelled (status is %s)", app.Status))
		}
		app.Record(models.ApplicationCancelled, p.ID, now)
		notice = "An applicant withdrew their application"
		app.Notify(notice, models.RoleOrg, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ApplicationTransitions.WithLabelValues(string(models.ApplicationCancelled)).Inc()

	opp, err := m.opportunities.GetByID(ctx, updated.OpportunityID)
	if err != nil {
		m.logger.Warn("load opportunity for cancel notice failed", zap.Error(err), zap.String("application_id", id.String()))
		return updated, nil
	}
	m.emit(ctx, models.ApplicationEvent{
		Type:          models.EventApplicationCancelled,
		ApplicationID: updated.ID,
		Status:        updated.Status,
		ActorID:       p.ID,
		RecipientID:   opp.CreatedBy,
		Message:       notice,
	}, opp)
	return updated, nil
}

// SetStatus records an organization's decision on a pending application.
func (m *Manager) SetStatus(ctx context.Context, p models.Principal, id uuid.UUID, rawStatus string) (*models.Application, error) {
	if p.IsZero() {
		return nil, apperror.Unauthenticated("authentication required")
	}
	status, err := ParseDecision(rawStatus)
	if err != nil {
		return nil, err
	}
	current, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	opp, err := m.opportunities.GetByID(ctx, current.OpportunityID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(p, ActionDecide, Resource{Application: current, Opportunity: opp}).Err(); err != nil {
		return nil, err
	}

	now := m.now()
	notice := outcomeMessage(status, opp.Title)
	updated, err := m.store.Update(ctx, id, func(app *models.Application) error {
		if err := checkTransition(app.Status, status); err != nil {
			return err
		}
		app.Record(status, p.ID, now)
		app.Notify(notice, models.RoleVolunteer, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ApplicationTransitions.WithLabelValues(string(status)).Inc()

	evType := models.EventApplicationApproved
	if status == models.ApplicationRejected {
		evType = models.EventApplicationRejected
	}
	m.emit(ctx, models.ApplicationEvent{
		Type:          evType,
		ApplicationID: updated.ID,
		Status:        status,
		ActorID:       p.ID,
		RecipientID:   updated.ApplicantID,
		Message:       notice,
	}, opp)
	return updated, nil
}

// Get returns one application the principal is allowed to see.
func (m *Manager) Get(ctx context.Context, p models.Principal, id uuid.UUID) (*models.Application, error) {
	if p.IsZero() {
		return nil, apperror.Unauthenticated("authentication required")
	}
	app, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res := Resource{Application: app}
	if app.ApplicantID != p.ID && p.Role == models.RoleOrg {
		if res.Opportunity, err = m.opportunities.GetByID(ctx, app.OpportunityID); err != nil && !apperror.Is(err, apperror.KindNotFound) {
			return nil, err
		}
	}
	if err := Authorize(p, ActionView, res).Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// List returns the applications visible to the principal.
func (m *Manager) List(ctx context.Context, p models.Principal) ([]models.Application, error) {
	f, err := m.scope(ctx, p)
	if err != nil {
		return nil, err
	}
	return m.store.List(ctx, f)
}

// ListForOpportunity returns the applicants of one opportunity.
func (m *Manager) ListForOpportunity(ctx context.Context, p models.Principal, opportunityID uuid.UUID) ([]models.Application, error) {
	if p.IsZero() {
		return nil, apperror.Unauthenticated("authentication required")
	}
	opp, err := m.opportunities.GetByID(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(p, ActionViewApplicants, Resource{Opportunity: opp}).Err(); err != nil {
		return nil, err
	}
	return m.store.List(ctx, models.ApplicationFilter{OpportunityID: &opp.ID})
}

// MarkRead marks every notification on one application read and returns how many changed.
func (m *Manager) MarkRead(ctx context.Context, p models.Principal, id uuid.UUID) (int, error) {
	if _, err := m.Get(ctx, p, id); err != nil {
		return 0, err
	}
	var marked int
	_, err := m.store.Update(ctx, id, func(app *models.Application) error {
		marked = app.MarkNotificationsRead(inbox(p))
		if marked > 0 {
			app.UpdatedAt = m.now()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

// MarkAllRead marks every notification visible to the principal read.
func (m *Manager) MarkAllRead(ctx context.Context, p models.Principal) (int, error) {
	f, err := m.scope(ctx, p)
	if err != nil {
		return 0, err
	}
	return m.store.MarkNotificationsRead(ctx, f)
}

// Unread returns the unread notifications visible to the principal.
func (m *Manager) Unread(ctx context.Context, p models.Principal) ([]models.ApplicationNotification, error) {
	f, err := m.scope(ctx, p)
	if err != nil {
		return nil, err
	}
	f.UnreadOnly = true
	apps, err := m.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := []models.ApplicationNotification{}
	for i := range apps {
		for _, n := range apps[i].UnreadNotifications(f.Recipient) {
			out = append(out, models.ApplicationNotification{ApplicationID: apps[i].ID, Notification: n})
		}
	}
	return out, nil
}

// Stats counts applications by status (admin).
func (m *Manager) Stats(ctx context.Context, p models.Principal) (models.ApplicationStats, error) {
	if err := Authorize(p, ActionAdminister, Resource{}).Err(); err != nil {
		return models.ApplicationStats{}, err
	}
	return m.store.Stats(ctx)
}

// Leaderboard ranks volunteers by approved applications (admin).
func (m *Manager) Leaderboard(ctx context.Context, p models.Principal, limit int) ([]models.LeaderboardEntry, error) {
	if err := Authorize(p, ActionAdminister, Resource{}).Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return m.store.Leaderboard(ctx, limit)
}

// scope builds the visibility filter for p. It is never derived from request input.
func (m *Manager) scope(ctx context.Context, p models.Principal) (models.ApplicationFilter, error) {
	var f models.ApplicationFilter
	if p.IsZero() {
		return f, apperror.Unauthenticated("authentication required")
	}
	f.Recipient = inbox(p)
	switch p.Role {
	case models.RoleVolunteer:
		id := p.ID
		f.ApplicantID = &id
	case models.RoleOrg:
		ids, err := m.opportunities.ListIDsByOwner(ctx, p.ID)
		if err != nil {
			return f, err
		}
		if ids == nil {
			ids = []uuid.UUID{}
		}
		f.OpportunityIDs = ids
	case models.RoleAdmin:
	default:
		return f, apperror.Unauthorized("unknown role")
	}
	return f, nil
}

// inbox is the notification recipient a principal reads as. Admins see every inbox.
func inbox(p models.Principal) models.Role {
	if p.Role == models.RoleAdmin {
		return ""
	}
	return p.Role
}

func (m *Manager) emit(ctx context.Context, ev models.ApplicationEvent, opp *models.Opportunity) {
	if m.notifier == nil {
		return
	}
	ev.OpportunityID = opp.ID
	ev.OpportunityTitle = opp.Title
	m.notifier.ApplicationChanged(ctx, ev)
}

func displayName(u *models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func introMessage(title string) string {
	return fmt.Sprintf("Hi! I just applied to %q and would love to help. Looking forward to hearing from you.", title)
}

func outcomeMessage(status models.ApplicationStatus, title string) string {
	if status == models.ApplicationApproved {
		return fmt.Sprintf("Your application to %q was approved", title)
	}
	return fmt.Sprintf("Your application to %q was rejected", title)
}
