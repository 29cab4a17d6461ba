package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/volunteerhub/backend/internal/metrics"
	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/queue"
)

// JobSource is the queue the processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, cause error) (bool, error)
}

// LogStore records delivery attempts.
type LogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
}

// Email is one outgoing message.
type Email struct {
	FromAddress string
	FromName    string
	To          string
	ToName      string
	Subject     string
	Body        string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// LogMailer simulates delivery by writing the email to the log.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs e and reports success.
func (m *LogMailer) Send(_ context.Context, e Email) error {
	m.logger.Info("email sent (simulated)",
		zap.String("from", e.FromAddress),
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.Int("body_bytes", len(e.Body)),
	)
	return nil
}

var errNoRecipient = errors.New("email job has no recipient")

// EmailProcessor processes email jobs: deliver, then record the outcome in email_logs.
type EmailProcessor struct {
	source      JobSource
	logs        LogStore
	mailer      Mailer
	fromAddress string
	fromName    string
	backoff     time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(source JobSource, logs LogStore, mailer Mailer, fromAddress, fromName string, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{
		source:      source,
		logs:        logs,
		mailer:      mailer,
		fromAddress: fromAddress,
		fromName:    fromName,
		backoff:     queue.RetryBackoff,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func decodeEmail(job *queue.Job) (queue.EmailPayload, error) {
	var payload queue.EmailPayload
	if job.Type != queue.JobTypeEmail {
		return payload, fmt.Errorf("unknown job type: %s", job.Type)
	}
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return payload, fmt.Errorf("unmarshal payload: %w", err)
	}
	if strings.TrimSpace(payload.RecipientEmail) == "" {
		return payload, errNoRecipient
	}
	return payload, nil
}

// Process executes one email job and records a sent log on success.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := decodeEmail(job)
	if err != nil {
		return err
	}
	err = p.mailer.Send(ctx, Email{
		FromAddress: p.fromAddress,
		FromName:    p.fromName,
		To:          payload.RecipientEmail,
		ToName:      payload.RecipientName,
		Subject:     payload.Subject,
		Body:        payload.Body,
	})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	sentAt := p.now()
	p.record(ctx, payload, models.EmailLogStatusSent, &sentAt, "")
	p.logger.Info("email job completed", zap.String("job_id", job.ID), zap.String("email_type", payload.EmailType))
	return nil
}

// handle processes a job and schedules a retry on failure. A job that
// exhausts its retries is logged as failed.
func (p *EmailProcessor) handle(ctx context.Context, job *queue.Job) error {
	err := p.Process(ctx, job)
	if err == nil {
		metrics.WorkerJobsCompleted.WithLabelValues(string(job.Type)).Inc()
		return nil
	}
	metrics.WorkerJobsFailed.WithLabelValues(string(job.Type)).Inc()
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))

	dead, reErr := p.source.Retry(ctx, job, err)
	if reErr != nil {
		p.logger.Error("retry enqueue failed", zap.Error(reErr))
		return err
	}
	if dead {
		if payload, decErr := decodeEmail(job); decErr == nil || errors.Is(decErr, errNoRecipient) {
			p.record(ctx, payload, models.EmailLogStatusFailed, nil, err.Error())
		}
	}
	return err
}

func (p *EmailProcessor) record(ctx context.Context, payload queue.EmailPayload, status string, sentAt *time.Time, errMsg string) {
	if p.logs == nil {
		return
	}
	el := &models.EmailLog{
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
		Status:         status,
		SentAt:         sentAt,
		ErrorMessage:   errMsg,
	}
	if payload.ApplicationID != uuid.Nil {
		id := payload.ApplicationID
		el.ApplicationID = &id
	}
	if err := p.logs.Create(ctx, el); err != nil {
		p.logger.Error("write email log failed", zap.Error(err), zap.String("recipient", payload.RecipientEmail))
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.source.Dequeue(ctx, queue.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.handle(ctx, job); err != nil {
			sleep(ctx, p.backoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
