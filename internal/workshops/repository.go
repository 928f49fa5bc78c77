package workshops

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/warsha-platform/backend/internal/models"
	"github.com/warsha-platform/backend/pkg/database"
)

// Repository handles workshop reads.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a workshop repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// GetByID returns a workshop by ID, or nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Workshop, error) {
	const q = `SELECT id, organizer_id, title, description, organizer_type, max_capacity, start_date, end_date, status, created_at, updated_at
		FROM workshops WHERE id = $1`
	var w models.Workshop
	err := r.db.QueryRow(ctx, q, id).Scan(&w.ID, &w.OrganizerID, &w.Title, &w.Description, &w.OrganizerType, &w.MaxCapacity,
		&w.StartDate, &w.EndDate, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// OrganizerName returns the display name of the workshop's organizer; empty when none is set.
func (r *Repository) OrganizerName(ctx context.Context, workshopID uuid.UUID) (string, error) {
	const q = `SELECT COALESCE(u.full_name, '') FROM workshops w JOIN users u ON u.id = w.organizer_id WHERE w.id = $1`
	var name string
	err := r.db.QueryRow(ctx, q, workshopID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
}
