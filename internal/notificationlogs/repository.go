package notificationlogs

import (
	"context"

	"github.com/google/uuid"

	"github.com/warsha-platform/backend/internal/models"
	"github.com/warsha-platform/backend/pkg/database"
)

// Repository handles notification_logs persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a notification logs repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Insert records one delivery attempt. Empty error messages are stored as NULL.
func (r *Repository) Insert(ctx context.Context, l *models.NotificationLog) error {
	const q = `INSERT INTO notification_logs (workshop_id, registration_id, kind, channel, recipient, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING id, created_at`
	return r.db.QueryRow(ctx, q, l.WorkshopID, l.RegistrationID, string(l.Kind), l.Channel, l.Recipient, l.Status, l.ErrorMessage).
		Scan(&l.ID, &l.CreatedAt)
}

// ListByWorkshop returns notification logs for a workshop, newest first.
func (r *Repository) ListByWorkshop(ctx context.Context, workshopID uuid.UUID) ([]*models.NotificationLog, error) {
	const q = `SELECT id, workshop_id, registration_id, kind, channel, recipient, status, error_message, created_at
		FROM notification_logs
		WHERE workshop_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, q, workshopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.NotificationLog
	for rows.Next() {
		var l models.NotificationLog
		var kind string
		var errMsg *string
		if err := rows.Scan(&l.ID, &l.WorkshopID, &l.RegistrationID, &kind, &l.Channel, &l.Recipient, &l.Status, &errMsg, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Kind = models.NotificationKind(kind)
		if errMsg != nil {
			l.ErrorMessage = *errMsg
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
