package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warsha-platform/backend/internal/models"
	"github.com/warsha-platform/backend/internal/notify"
	"github.com/warsha-platform/backend/pkg/queue"
)

var (
	ErrNotFound      = errors.New("registration not found")
	ErrInvalidStatus = errors.New("invalid decision status")
	ErrClosed        = errors.New("workshop is not accepting registrations")
	ErrFull          = errors.New("workshop is full")
	// ErrNoChange means the registrations exist but none could take the decision: they already
	// carry it, or a rejection was requested for a registration that holds a certificate.
	ErrNoChange = errors.New("registration decision unchanged")
)

// Store is the persistence used by the registration service.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	CountActive(ctx context.Context, workshopID uuid.UUID) (int, error)
	UpdateStatus(ctx context.Context, workshopID uuid.UUID, ids []uuid.UUID, status models.RegistrationStatus) ([]models.RegistrationWithWorkshop, error)
	CountInWorkshop(ctx context.Context, workshopID uuid.UUID, ids []uuid.UUID) (int, error)
}

// NotificationQueue accepts notification jobs for the worker.
type NotificationQueue interface {
	EnqueueNotification(ctx context.Context, payload queue.NotificationPayload) error
	EnqueueNotificationBulk(ctx context.Context, payload queue.NotificationBulkPayload) error
}

// ServiceConfig controls how workshop dates appear in messages.
type ServiceConfig struct {
	DateLayout string
	Location   *time.Location
}

// DecisionResult reports a committed decision and whether its notifications were queued.
type DecisionResult struct {
	Status             models.RegistrationStatus `json:"status"`
	Updated            int                       `json:"updated"`
	RegistrationIDs    []uuid.UUID               `json:"registration_ids"`
	NotificationQueued bool                      `json:"notification_queued"`
}

// Service applies registration lifecycle changes. State changes are committed first; the
// matching notifications are queued afterwards and a queue failure never undoes the change.
type Service struct {
	store  Store
	queue  NotificationQueue
	cfg    ServiceConfig
	logger *zap.Logger
}

// NewService creates a registration service.
func NewService(store Store, q NotificationQueue, cfg ServiceConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DateLayout == "" {
		cfg.DateLayout = "02/01/2006"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{store: store, queue: q, cfg: cfg, logger: logger}
}

// Register creates a pending registration for an active workshop with free capacity and queues the
// confirmation message. The returned bool reports whether the message was queued.
func (s *Service) Register(ctx context.Context, w *models.Workshop, reg *models.Registration) (bool, error) {
	if w.Status != models.WorkshopStatusActive {
		return false, ErrClosed
	}
	if w.MaxCapacity > 0 {
		n, err := s.store.CountActive(ctx, w.ID)
		if err != nil {
			return false, fmt.Errorf("count registrations: %w", err)
		}
		if n >= w.MaxCapacity {
			return false, ErrFull
		}
	}
	reg.WorkshopID = w.ID
	if err := s.store.Create(ctx, reg); err != nil {
		return false, fmt.Errorf("create registration: %w", err)
	}
	if reg.StudentPhone == "" {
		return false, nil
	}
	regID := reg.ID
	err := s.queue.EnqueueNotification(ctx, queue.NotificationPayload{
		WorkshopID: w.ID,
		Kind:       string(models.NotificationRegistration),
		Recipient: queue.Recipient{
			RegistrationID: &regID,
			Name:           reg.StudentName,
			Phone:          reg.StudentPhone,
			Email:          reg.StudentEmail,
			Message:        notify.RegistrationMessage(reg.StudentName, w.Title),
		},
	})
	if err != nil {
		s.logger.Warn("enqueue registration notification failed", zap.Error(err), zap.String("registration_id", regID.String()))
		return false, nil
	}
	return true, nil
}

// Decide approves or rejects the given registrations of the workshop.
func (s *Service) Decide(ctx context.Context, workshopID uuid.UUID, ids []uuid.UUID, status models.RegistrationStatus) (*DecisionResult, error) {
	if status != models.RegistrationApproved && status != models.RegistrationRejected {
		return nil, ErrInvalidStatus
	}
	updated, err := s.store.UpdateStatus(ctx, workshopID, ids, status)
	if err != nil {
		return nil, fmt.Errorf("update registration status: %w", err)
	}
	if len(updated) == 0 {
		n, err := s.store.CountInWorkshop(ctx, workshopID, ids)
		if err != nil {
			return nil, fmt.Errorf("count registrations: %w", err)
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrNoChange
	}
	res := &DecisionResult{Status: status, Updated: len(updated)}
	for _, rw := range updated {
		res.RegistrationIDs = append(res.RegistrationIDs, rw.ID)
	}
	res.NotificationQueued = s.enqueueDecision(ctx, workshopID, status, updated)
	return res, nil
}

func (s *Service) decisionMessage(rw models.RegistrationWithWorkshop, status models.RegistrationStatus) string {
	if status == models.RegistrationApproved {
		date := rw.Workshop.StartDate.In(s.cfg.Location).Format(s.cfg.DateLayout)
		return notify.ApprovalMessage(rw.StudentName, rw.Workshop.Title, date)
	}
	return notify.RejectionMessage(rw.StudentName, rw.Workshop.Title)
}

func (s *Service) enqueueDecision(ctx context.Context, workshopID uuid.UUID, status models.RegistrationStatus, updated []models.RegistrationWithWorkshop) bool {
	kind := models.NotificationRejection
	if status == models.RegistrationApproved {
		kind = models.NotificationApproval
	}
	var recipients []queue.Recipient
	for _, rw := range updated {
		if rw.StudentPhone == "" {
			continue
		}
		regID := rw.ID
		recipients = append(recipients, queue.Recipient{
			RegistrationID: &regID,
			Name:           rw.StudentName,
			Phone:          rw.StudentPhone,
			Email:          rw.StudentEmail,
			Message:        s.decisionMessage(rw, status),
		})
	}
	if len(recipients) == 0 {
		return false
	}

	var err error
	if len(recipients) == 1 {
		err = s.queue.EnqueueNotification(ctx, queue.NotificationPayload{
			WorkshopID: workshopID,
			Kind:       string(kind),
			Recipient:  recipients[0],
		})
	} else {
		err = s.queue.EnqueueNotificationBulk(ctx, queue.NotificationBulkPayload{
			WorkshopID: workshopID,
			Kind:       string(kind),
			Recipients: recipients,
		})
	}
	if err != nil {
		s.logger.Warn("enqueue decision notification failed",
			zap.Error(err),
			zap.String("workshop_id", workshopID.String()),
			zap.String("status", string(status)),
		)
		return false
	}
	return true
}
