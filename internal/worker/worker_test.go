package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/queue"
)

type memLogs struct {
	mu   sync.Mutex
	logs []models.EmailLog
}

func (m *memLogs) Create(_ context.Context, el *models.EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	el.ID = uuid.New()
	m.logs = append(m.logs, *el)
	return nil
}

func (m *memLogs) all() []models.EmailLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.EmailLog(nil), m.logs...)
}

type flakyMailer struct {
	mu    sync.Mutex
	fails int
	sent  []Email
}

func (f *flakyMailer) Send(_ context.Context, e Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("mail server unavailable")
	}
	f.sent = append(f.sent, e)
	return nil
}

func newQueue(t *testing.T) *queue.Queue {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return queue.NewQueue(rdb, nil)
}

func next(t *testing.T, q *queue.Queue) *queue.Job {
	t.Helper()
	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func TestProcess_SendsAndLogs(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	logs := &memLogs{}
	mailer := &flakyMailer{}
	p := NewEmailProcessor(q, logs, mailer, "noreply@volunteerhub.test", "VolunteerHub", nil)

	appID := uuid.New()
	require.NoError(t, q.EnqueueEmail(ctx, queue.EmailPayload{
		ApplicationID:  appID,
		EmailType:      models.EmailTypeApplicationApproved,
		RecipientEmail: "vera@example.com",
		Subject:        "Your application was approved",
		Body:           "See you there",
	}))

	require.NoError(t, p.handle(ctx, next(t, q)))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "vera@example.com", mailer.sent[0].To)
	assert.Equal(t, "noreply@volunteerhub.test", mailer.sent[0].FromAddress)

	got := logs.all()
	require.Len(t, got, 1)
	assert.Equal(t, models.EmailLogStatusSent, got[0].Status)
	require.NotNil(t, got[0].ApplicationID)
	assert.Equal(t, appID, *got[0].ApplicationID)
	assert.NotNil(t, got[0].SentAt)
}

func TestHandle_RetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	logs := &memLogs{}
	mailer := &flakyMailer{fails: queue.MaxRetries}
	p := NewEmailProcessor(q, logs, mailer, "noreply@volunteerhub.test", "", nil)

	require.NoError(t, q.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      models.EmailTypeApplicationRejected,
		RecipientEmail: "otto@example.com",
	}))

	for i := 0; i < queue.MaxRetries; i++ {
		assert.Error(t, p.handle(ctx, next(t, q)))
	}

	waiting, _ := q.Len(ctx, queue.QueueEmails)
	assert.Zero(t, waiting)
	dead, _ := q.Len(ctx, queue.QueueDLQ)
	assert.EqualValues(t, 1, dead)

	got := logs.all()
	require.Len(t, got, 1)
	assert.Equal(t, models.EmailLogStatusFailed, got[0].Status)
	assert.Contains(t, got[0].ErrorMessage, "mail server unavailable")
	assert.Nil(t, got[0].ApplicationID)
}

func TestProcess_RejectsJobWithoutRecipient(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	p := NewEmailProcessor(q, &memLogs{}, &flakyMailer{}, "", "", nil)

	require.NoError(t, q.EnqueueEmail(ctx, queue.EmailPayload{EmailType: models.EmailTypeApplicationReceived}))
	assert.ErrorIs(t, p.Process(ctx, next(t, q)), errNoRecipient)
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	q := newQueue(t)
	logs := &memLogs{}
	mailer := &flakyMailer{fails: 1}
	p := NewEmailProcessor(q, logs, mailer, "noreply@volunteerhub.test", "", nil)
	p.backoff = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.NoError(t, q.EnqueueEmail(context.Background(), queue.EmailPayload{RecipientEmail: "vera@example.com"}))

	require.Eventually(t, func() bool { return len(logs.all()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, models.EmailLogStatusSent, logs.all()[0].Status)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
