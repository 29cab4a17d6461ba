package applications

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/apperror"
)

type memStore struct {
	mu   sync.Mutex
	apps map[uuid.UUID]*models.Application
}

func newMemStore() *memStore {
	return &memStore{apps: map[uuid.UUID]*models.Application{}}
}

func clone(a *models.Application) *models.Application {
	c := *a
	c.History = slices.Clone(a.History)
	c.Notifications = slices.Clone(a.Notifications)
	return &c
}

func (s *memStore) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.apps {
		if a.ApplicantID == app.ApplicantID && a.OpportunityID == app.OpportunityID && a.Status.Active() {
			return apperror.Conflict("you already have an active application for this opportunity")
		}
	}
	app.ID = uuid.New()
	s.apps[app.ID] = clone(app)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, apperror.NotFound("application not found")
	}
	return clone(a), nil
}

func (s *memStore) Update(_ context.Context, id uuid.UUID, mutate func(*models.Application) error) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, apperror.NotFound("application not found")
	}
	c := clone(a)
	if err := mutate(c); err != nil {
		return nil, err
	}
	s.apps[id] = clone(c)
	return c, nil
}

func (s *memStore) match(a *models.Application, f models.ApplicationFilter) bool {
	if f.ApplicantID != nil && a.ApplicantID != *f.ApplicantID {
		return false
	}
	if f.OpportunityIDs != nil && !slices.Contains(f.OpportunityIDs, a.OpportunityID) {
		return false
	}
	if f.OpportunityID != nil && a.OpportunityID != *f.OpportunityID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.UnreadOnly && len(a.UnreadNotifications(f.Recipient)) == 0 {
		return false
	}
	return true
}

func (s *memStore) List(_ context.Context, f models.ApplicationFilter) ([]models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Application{}
	for _, a := range s.apps {
		if s.match(a, f) {
			out = append(out, *clone(a))
		}
	}
	return out, nil
}

func (s *memStore) MarkNotificationsRead(_ context.Context, f models.ApplicationFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.apps {
		if s.match(a, f) {
			n += a.MarkNotificationsRead(f.Recipient)
		}
	}
	return n, nil
}

func (s *memStore) Stats(_ context.Context) (models.ApplicationStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st models.ApplicationStats
	for _, a := range s.apps {
		st.Total++
		switch a.Status {
		case models.ApplicationPending:
			st.Pending++
		case models.ApplicationApproved:
			st.Approved++
		case models.ApplicationRejected:
			st.Rejected++
		case models.ApplicationCancelled:
			st.Cancelled++
		}
	}
	return st, nil
}

func (s *memStore) Leaderboard(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[uuid.UUID]int{}
	for _, a := range s.apps {
		if a.Status == models.ApplicationApproved {
			counts[a.ApplicantID]++
		}
	}
	out := []models.LeaderboardEntry{}
	for id, n := range counts {
		out = append(out, models.LeaderboardEntry{UserID: id, ApprovedCount: n})
	}
	slices.SortFunc(out, func(a, b models.LeaderboardEntry) int { return b.ApprovedCount - a.ApprovedCount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memOpportunities map[uuid.UUID]*models.Opportunity

func (m memOpportunities) GetByID(_ context.Context, id uuid.UUID) (*models.Opportunity, error) {
	o, ok := m[id]
	if !ok {
		return nil, apperror.NotFound("opportunity not found")
	}
	return o, nil
}

func (m memOpportunities) ListIDsByOwner(_ context.Context, owner uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, o := range m {
		if o.CreatedBy == owner {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type memUsers map[uuid.UUID]*models.User

func (m memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, apperror.NotFound("user not found")
	}
	return u, nil
}

type memMessages struct {
	sent []models.Message
	err  error
}

func (m *memMessages) Create(_ context.Context, msg *models.Message) error {
	if m.err != nil {
		return m.err
	}
	msg.ID = uuid.New()
	m.sent = append(m.sent, *msg)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.ApplicationEvent
}

func (r *recordingNotifier) ApplicationChanged(_ context.Context, ev models.ApplicationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) last() models.ApplicationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}
