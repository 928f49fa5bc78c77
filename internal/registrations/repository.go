package registrations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/warsha-platform/backend/internal/models"
	"github.com/warsha-platform/backend/pkg/database"
)

// Repository handles registration persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a registrations repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

const withWorkshopColumns = `r.id, r.workshop_id, r.student_name, r.student_email, r.student_phone, r.custom_fields,
		r.status, r.registered_at, r.approved_at,
		w.id, w.organizer_id, w.title, w.description, w.organizer_type, w.max_capacity,
		w.start_date, w.end_date, w.status, w.created_at, w.updated_at`

func scanWithWorkshop(row pgx.Row, rw *models.RegistrationWithWorkshop) error {
	w := &rw.Workshop
	return row.Scan(&rw.ID, &rw.WorkshopID, &rw.StudentName, &rw.StudentEmail, &rw.StudentPhone, &rw.CustomFields,
		&rw.Status, &rw.RegisteredAt, &rw.ApprovedAt,
		&w.ID, &w.OrganizerID, &w.Title, &w.Description, &w.OrganizerType, &w.MaxCapacity,
		&w.StartDate, &w.EndDate, &w.Status, &w.CreatedAt, &w.UpdatedAt)
}

// Create inserts a pending registration.
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (workshop_id, student_name, student_email, student_phone, custom_fields)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, status, registered_at`
	return r.db.QueryRow(ctx, q, reg.WorkshopID, reg.StudentName, reg.StudentEmail, reg.StudentPhone, reg.CustomFields).
		Scan(&reg.ID, &reg.Status, &reg.RegisteredAt)
}

// CountActive returns the number of registrations of the workshop that were not rejected.
func (r *Repository) CountActive(ctx context.Context, workshopID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM registrations WHERE workshop_id = $1 AND status <> 'rejected'`
	var n int
	err := r.db.QueryRow(ctx, q, workshopID).Scan(&n)
	return n, err
}

// GetWithWorkshop returns a registration joined with its workshop, or nil if it does not exist.
func (r *Repository) GetWithWorkshop(ctx context.Context, id uuid.UUID) (*models.RegistrationWithWorkshop, error) {
	q := `SELECT ` + withWorkshopColumns + `
		FROM registrations r JOIN workshops w ON w.id = r.workshop_id
		WHERE r.id = $1`
	var rw models.RegistrationWithWorkshop
	err := scanWithWorkshop(r.db.QueryRow(ctx, q, id), &rw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rw, nil
}

// ListApprovedWithWorkshop returns the workshop's approved registrations in approval order.
func (r *Repository) ListApprovedWithWorkshop(ctx context.Context, workshopID uuid.UUID) ([]models.RegistrationWithWorkshop, error) {
	q := `SELECT ` + withWorkshopColumns + `
		FROM registrations r JOIN workshops w ON w.id = r.workshop_id
		WHERE r.workshop_id = $1 AND r.status = 'approved'
		ORDER BY r.approved_at, r.id`
	return r.queryWithWorkshop(ctx, q, workshopID)
}

// UpdateStatus sets the decision on the given registrations of the workshop and returns the updated rows.
// Rows that already carry the status are left alone, and a registration holding a certificate cannot be
// rejected, so approved_at and the decision message change only on a real transition.
func (r *Repository) UpdateStatus(ctx context.Context, workshopID uuid.UUID, ids []uuid.UUID, status models.RegistrationStatus) ([]models.RegistrationWithWorkshop, error) {
	q := `WITH updated AS (
			UPDATE registrations
			SET status = $1::text,
				approved_at = CASE WHEN $1::text = 'approved' THEN NOW() ELSE NULL END
			WHERE workshop_id = $2 AND id = ANY($3)
				AND status <> $1::text
				AND NOT ($1::text = 'rejected' AND EXISTS (
					SELECT 1 FROM certificate_issued ci WHERE ci.registration_id = registrations.id
				))
			RETURNING *
		)
		SELECT ` + withWorkshopColumns + `
		FROM updated r JOIN workshops w ON w.id = r.workshop_id
		ORDER BY r.registered_at`
	return r.queryWithWorkshop(ctx, q, string(status), workshopID, ids)
}

// CountInWorkshop returns how many of ids are registrations of the workshop.
func (r *Repository) CountInWorkshop(ctx context.Context, workshopID uuid.UUID, ids []uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM registrations WHERE workshop_id = $1 AND id = ANY($2)`
	var n int
	err := r.db.QueryRow(ctx, q, workshopID, ids).Scan(&n)
	return n, err
}

func (r *Repository) queryWithWorkshop(ctx context.Context, q string, args ...any) ([]models.RegistrationWithWorkshop, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.RegistrationWithWorkshop
	for rows.Next() {
		var rw models.RegistrationWithWorkshop
		if err := scanWithWorkshop(rows, &rw); err != nil {
			return nil, err
		}
		list = append(list, rw)
	}
	return list, rows.Err()
}
