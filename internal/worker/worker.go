package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warsha-platform/backend/internal/metrics"
	"github.com/warsha-platform/backend/internal/models"
	"github.com/warsha-platform/backend/internal/notify"
	"github.com/warsha-platform/backend/internal/realtime"
	"github.com/warsha-platform/backend/pkg/queue"
)

const (
	dequeueTimeout   = 5 * time.Second
	emailChannel     = "email"
	certificateTitle = "شهادتك جاهزة"
)

// JobSource is the queue the processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// LogWriter records delivery attempts.
type LogWriter interface {
	Insert(ctx context.Context, l *models.NotificationLog) error
}

// ProgressPublisher reports bulk-send progress.
type ProgressPublisher interface {
	Publish(ctx context.Context, p realtime.Progress) error
}

// NotificationProcessor processes notification jobs: deliver through the dispatcher, log every
// recipient, publish bulk progress, and retry failed single sends.
type NotificationProcessor struct {
	dispatcher *notify.Dispatcher
	mailer     notify.Mailer
	logs       LogWriter
	progress   ProgressPublisher
	jobs       JobSource
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewNotificationProcessor creates a notification processor. mailer, progress and m may be nil.
func NewNotificationProcessor(dispatcher *notify.Dispatcher, mailer notify.Mailer, logs LogWriter, progress ProgressPublisher, jobs JobSource, m *metrics.Collector, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{
		dispatcher: dispatcher,
		mailer:     mailer,
		logs:       logs,
		progress:   progress,
		jobs:       jobs,
		metrics:    m,
		logger:     logger,
	}
}

// Process executes one notification job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeNotification:
		var payload queue.NotificationPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.processOne(ctx, payload, job.Attempt)
	case queue.JobTypeNotificationBulk:
		var payload queue.NotificationBulkPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		p.processBulk(ctx, job.ID, payload)
		return nil
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// processOne returns an error only when the channel failed for a deliverable number, so the job is retried.
// The email mirror goes out on the first attempt only; retries repeat the primary channel alone.
func (p *NotificationProcessor) processOne(ctx context.Context, payload queue.NotificationPayload, attempt int) error {
	r := payload.Recipient
	res := p.dispatcher.SendOne(ctx, r.Phone, r.Message)
	p.record(ctx, payload.WorkshopID, payload.Kind, r, res)
	if attempt == 0 {
		p.sendEmail(ctx, payload.WorkshopID, payload.Kind, r)
	}
	if !res.Success && notify.NormalizePhone(r.Phone, "") != "" {
		return fmt.Errorf("send %s notification: %s", payload.Kind, res.Error)
	}
	return nil
}

// processBulk is never retried: a retry would resend to recipients that already succeeded.
func (p *NotificationProcessor) processBulk(ctx context.Context, jobID string, payload queue.NotificationBulkPayload) {
	recipients := make([]notify.Recipient, len(payload.Recipients))
	for i, r := range payload.Recipients {
		recipients[i] = notify.Recipient{Phone: r.Phone, Message: r.Message}
	}
	total := len(recipients)
	res := p.dispatcher.SendBulk(ctx, recipients, func(processed, total int) {
		p.publish(ctx, realtime.Progress{
			WorkshopID: payload.WorkshopID,
			JobID:      jobID,
			Kind:       payload.Kind,
			Processed:  processed,
			Total:      total,
		})
	})

	for i, r := range payload.Recipients {
		p.record(ctx, payload.WorkshopID, payload.Kind, r, res.Results[i])
		p.sendEmail(ctx, payload.WorkshopID, payload.Kind, r)
	}
	p.publish(ctx, realtime.Progress{
		WorkshopID:   payload.WorkshopID,
		JobID:        jobID,
		Kind:         payload.Kind,
		Processed:    total,
		Total:        total,
		SuccessCount: res.SuccessCount,
		FailedCount:  res.FailedCount,
		Done:         true,
	})
	p.logger.Info("bulk notification completed",
		zap.String("job_id", jobID),
		zap.String("workshop_id", payload.WorkshopID.String()),
		zap.String("kind", payload.Kind),
		zap.Int("success", res.SuccessCount),
		zap.Int("failed", res.FailedCount),
	)
}

func (p *NotificationProcessor) record(ctx context.Context, workshopID uuid.UUID, kind string, r queue.Recipient, res notify.SendResult) {
	status := models.NotificationStatusSent
	if !res.Success {
		status = models.NotificationStatusFailed
	}
	p.insertLog(ctx, &models.NotificationLog{
		WorkshopID:     workshopID,
		RegistrationID: r.RegistrationID,
		Kind:           models.NotificationKind(kind),
		Channel:        p.dispatcher.Channel().Name(),
		Recipient:      res.Phone,
		Status:         status,
		ErrorMessage:   res.Error,
	})
	p.metrics.RecordNotification(kind, p.dispatcher.Channel().Name(), status)
}

// sendEmail mirrors certificate-ready messages to the student's email when one is known.
func (p *NotificationProcessor) sendEmail(ctx context.Context, workshopID uuid.UUID, kind string, r queue.Recipient) {
	if p.mailer == nil || r.Email == "" || kind != string(models.NotificationCertificate) {
		return
	}
	l := &models.NotificationLog{
		WorkshopID:     workshopID,
		RegistrationID: r.RegistrationID,
		Kind:           models.NotificationCertificate,
		Channel:        emailChannel,
		Recipient:      r.Email,
		Status:         models.NotificationStatusSent,
	}
	if err := p.mailer.Send(ctx, r.Email, certificateTitle, r.Message); err != nil {
		p.logger.Warn("certificate email failed", zap.Error(err), zap.String("email", r.Email))
		l.Status = models.NotificationStatusFailed
		l.ErrorMessage = err.Error()
	}
	p.insertLog(ctx, l)
	p.metrics.RecordNotification(kind, emailChannel, l.Status)
}

func (p *NotificationProcessor) insertLog(ctx context.Context, l *models.NotificationLog) {
	if err := p.logs.Insert(ctx, l); err != nil {
		p.logger.Error("insert notification log failed", zap.Error(err), zap.String("workshop_id", l.WorkshopID.String()))
	}
}

func (p *NotificationProcessor) publish(ctx context.Context, pr realtime.Progress) {
	if p.progress == nil {
		return
	}
	if err := p.progress.Publish(ctx, pr); err != nil {
		p.logger.Warn("publish progress failed", zap.Error(err), zap.String("workshop_id", pr.WorkshopID.String()))
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, queue.RetryBackoff)
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
