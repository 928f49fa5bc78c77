package registrations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/warsha-platform/backend/internal/models"
	"github.com/warsha-platform/backend/pkg/queue"
)

type fakeStore struct {
	active    int
	created   []*models.Registration
	updated   []models.RegistrationWithWorkshop
	updateErr error
	existing  int
}

func (f *fakeStore) Create(_ context.Context, reg *models.Registration) error {
	reg.ID = uuid.New()
	reg.Status = models.RegistrationPending
	f.created = append(f.created, reg)
	return nil
}

func (f *fakeStore) CountActive(context.Context, uuid.UUID) (int, error) {
	return f.active, nil
}

func (f *fakeStore) UpdateStatus(context.Context, uuid.UUID, []uuid.UUID, models.RegistrationStatus) ([]models.RegistrationWithWorkshop, error) {
	return f.updated, f.updateErr
}

func (f *fakeStore) CountInWorkshop(context.Context, uuid.UUID, []uuid.UUID) (int, error) {
	return f.existing, nil
}

type recordingQueue struct {
	single []queue.NotificationPayload
	bulk   []queue.NotificationBulkPayload
	err    error
}

func (q *recordingQueue) EnqueueNotification(_ context.Context, p queue.NotificationPayload) error {
	if q.err != nil {
		return q.err
	}
	q.single = append(q.single, p)
	return nil
}

func (q *recordingQueue) EnqueueNotificationBulk(_ context.Context, p queue.NotificationBulkPayload) error {
	if q.err != nil {
		return q.err
	}
	q.bulk = append(q.bulk, p)
	return nil
}

func activeWorkshop(capacity int) *models.Workshop {
	return &models.Workshop{
		ID:          uuid.New(),
		Title:       "Go Basics",
		MaxCapacity: capacity,
		StartDate:   time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC),
		Status:      models.WorkshopStatusActive,
	}
}

func decided(w *models.Workshop, name, phone string, status models.RegistrationStatus) models.RegistrationWithWorkshop {
	return models.RegistrationWithWorkshop{
		Registration: models.Registration{
			ID:           uuid.New(),
			WorkshopID:   w.ID,
			StudentName:  name,
			StudentPhone: phone,
			Status:       status,
		},
		Workshop: *w,
	}
}

func TestService_Register(t *testing.T) {
	t.Run("queues confirmation", func(t *testing.T) {
		store, q := &fakeStore{}, &recordingQueue{}
		svc := NewService(store, q, ServiceConfig{}, nil)
		w := activeWorkshop(10)

		queued, err := svc.Register(context.Background(), w, &models.Registration{StudentName: "Sara", StudentPhone: "0501234567"})
		require.NoError(t, err)
		require.True(t, queued)
		require.Len(t, store.created, 1)
		require.Equal(t, w.ID, store.created[0].WorkshopID)
		require.Len(t, q.single, 1)
		require.Equal(t, "registration", q.single[0].Kind)
		require.Contains(t, q.single[0].Recipient.Message, "Go Basics")
		require.Equal(t, store.created[0].ID, *q.single[0].Recipient.RegistrationID)
	})
	t.Run("closed workshop", func(t *testing.T) {
		w := activeWorkshop(0)
		w.Status = models.WorkshopStatusDraft
		_, err := NewService(&fakeStore{}, &recordingQueue{}, ServiceConfig{}, nil).
			Register(context.Background(), w, &models.Registration{})
		require.ErrorIs(t, err, ErrClosed)
	})
	t.Run("full workshop", func(t *testing.T) {
		store := &fakeStore{active: 5}
		_, err := NewService(store, &recordingQueue{}, ServiceConfig{}, nil).
			Register(context.Background(), activeWorkshop(5), &models.Registration{})
		require.ErrorIs(t, err, ErrFull)
		require.Empty(t, store.created)
	})
	t.Run("queue failure keeps registration", func(t *testing.T) {
		store := &fakeStore{}
		queued, err := NewService(store, &recordingQueue{err: errors.New("redis down")}, ServiceConfig{}, nil).
			Register(context.Background(), activeWorkshop(0), &models.Registration{StudentPhone: "0501234567"})
		require.NoError(t, err)
		require.False(t, queued)
		require.Len(t, store.created, 1)
	})
}

func TestService_Decide_ApproveSingle(t *testing.T) {
	w := activeWorkshop(0)
	store := &fakeStore{updated: []models.RegistrationWithWorkshop{decided(w, "Sara", "0501234567", models.RegistrationApproved)}}
	q := &recordingQueue{}
	svc := NewService(store, q, ServiceConfig{DateLayout: "02/01/2006", Location: time.UTC}, nil)

	res, err := svc.Decide(context.Background(), w.ID, []uuid.UUID{store.updated[0].ID}, models.RegistrationApproved)
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)
	require.True(t, res.NotificationQueued)
	require.Len(t, q.single, 1)
	require.Equal(t, "approval", q.single[0].Kind)
	require.Contains(t, q.single[0].Recipient.Message, "10/03/2025")
	require.Empty(t, q.bulk)
}

func TestService_Decide_RejectBulk(t *testing.T) {
	w := activeWorkshop(0)
	store := &fakeStore{updated: []models.RegistrationWithWorkshop{
		decided(w, "Sara", "0501234567", models.RegistrationRejected),
		decided(w, "Omar", "0509999999", models.RegistrationRejected),
		decided(w, "NoPhone", "", models.RegistrationRejected),
	}}
	q := &recordingQueue{}

	res, err := NewService(store, q, ServiceConfig{}, nil).
		Decide(context.Background(), w.ID, []uuid.UUID{uuid.New()}, models.RegistrationRejected)
	require.NoError(t, err)
	require.Equal(t, 3, res.Updated)
	require.True(t, res.NotificationQueued)
	require.Len(t, q.bulk, 1)
	require.Equal(t, "rejection", q.bulk[0].Kind)
	require.Len(t, q.bulk[0].Recipients, 2)
	require.NotContains(t, q.bulk[0].Recipients[0].Message, "موعد")
}

func TestService_Decide_QueueFailureDoesNotUndo(t *testing.T) {
	w := activeWorkshop(0)
	store := &fakeStore{updated: []models.RegistrationWithWorkshop{decided(w, "Sara", "0501234567", models.RegistrationApproved)}}

	res, err := NewService(store, &recordingQueue{err: errors.New("redis down")}, ServiceConfig{}, nil).
		Decide(context.Background(), w.ID, []uuid.UUID{store.updated[0].ID}, models.RegistrationApproved)
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)
	require.False(t, res.NotificationQueued)
}

func TestService_Decide_Errors(t *testing.T) {
	svc := NewService(&fakeStore{}, &recordingQueue{}, ServiceConfig{}, nil)
	_, err := svc.Decide(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, models.RegistrationApproved)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Decide(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, models.RegistrationPending)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestService_Decide_UnchangedDecisionIsNotRenotified(t *testing.T) {
	q := &recordingQueue{}
	svc := NewService(&fakeStore{existing: 1}, q, ServiceConfig{}, nil)

	_, err := svc.Decide(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, models.RegistrationApproved)
	require.ErrorIs(t, err, ErrNoChange)
	_, err = svc.Decide(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, models.RegistrationRejected)
	require.ErrorIs(t, err, ErrNoChange)
	require.Empty(t, q.single)
	require.Empty(t, q.bulk)
}
