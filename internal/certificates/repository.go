package certificates

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/warsha-platform/backend/internal/models"
	"github.com/warsha-platform/backend/pkg/database"
)

const (
	constraintRegistration = "certificate_issued_registration_id_key"
	constraintCode         = "certificate_issued_verification_code_key"
)

// Repository handles certificate template and issuance persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a certificates repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// EnsureTemplate returns the workshop-level certificate row, creating it on first use.
func (r *Repository) EnsureTemplate(ctx context.Context, workshopID uuid.UUID) (uuid.UUID, error) {
	const q = `INSERT INTO certificates (workshop_id) VALUES ($1)
		ON CONFLICT (workshop_id) DO UPDATE SET workshop_id = EXCLUDED.workshop_id
		RETURNING id`
	var id uuid.UUID
	if err := r.db.QueryRow(ctx, q, workshopID).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("ensure certificate template: %w", err)
	}
	return id, nil
}

// Insert records an issued certificate. A second row for the same registration yields ErrAlreadyIssued;
// every other failure, including a verification code collision, yields ErrPersist.
func (r *Repository) Insert(ctx context.Context, c *models.CertificateIssued) error {
	const q = `INSERT INTO certificate_issued
		(registration_id, certificate_id, certificate_url, verification_code, storage_key, content_sha256)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, issued_at`
	err := r.db.QueryRow(ctx, q, c.RegistrationID, c.CertificateID, c.CertificateURL, c.VerificationCode, c.StorageKey, c.ContentSHA256).
		Scan(&c.ID, &c.IssuedAt)
	switch {
	case err == nil:
		return nil
	case database.UniqueViolationOn(err, constraintRegistration):
		return ErrAlreadyIssued
	case database.UniqueViolationOn(err, constraintCode):
		return fmt.Errorf("%w: verification code collision: %v", ErrPersist, err)
	default:
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
}

// ExistsForRegistration reports whether a certificate was already issued for the registration.
func (r *Repository) ExistsForRegistration(ctx context.Context, registrationID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM certificate_issued WHERE registration_id = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, q, registrationID).Scan(&exists)
	return exists, err
}

// GetViewByCode returns the public view of a certificate, or nil if the code is unknown.
func (r *Repository) GetViewByCode(ctx context.Context, code string) (*models.CertificateView, error) {
	const q = `SELECT ci.verification_code, r.student_name, w.title, w.description, w.end_date,
			ci.issued_at, ci.certificate_url, ci.content_sha256
		FROM certificate_issued ci
		JOIN registrations r ON r.id = ci.registration_id
		JOIN workshops w ON w.id = r.workshop_id
		WHERE ci.verification_code = $1`
	var v models.CertificateView
	err := r.db.QueryRow(ctx, q, code).Scan(&v.VerificationCode, &v.StudentName, &v.WorkshopTitle, &v.WorkshopDescription,
		&v.CompletionDate, &v.IssuedAt, &v.CertificateURL, &v.ContentSHA256)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

const issuedWithRecipientSelect = `SELECT ci.id, ci.registration_id, ci.certificate_id, ci.certificate_url,
		ci.verification_code, ci.storage_key, ci.content_sha256, ci.issued_at,
		r.student_name, r.student_phone, r.student_email, w.id, w.title
	FROM certificate_issued ci
	JOIN registrations r ON r.id = ci.registration_id
	JOIN workshops w ON w.id = r.workshop_id`

func scanIssuedWithRecipient(row pgx.Row, c *models.IssuedWithRecipient) error {
	return row.Scan(&c.ID, &c.RegistrationID, &c.CertificateID, &c.CertificateURL,
		&c.VerificationCode, &c.StorageKey, &c.ContentSHA256, &c.IssuedAt,
		&c.StudentName, &c.StudentPhone, &c.StudentEmail, &c.WorkshopID, &c.WorkshopTitle)
}

// ListByWorkshop returns the workshop's issued certificates with their recipients, newest first.
func (r *Repository) ListByWorkshop(ctx context.Context, workshopID uuid.UUID) ([]models.IssuedWithRecipient, error) {
	rows, err := r.db.Query(ctx, issuedWithRecipientSelect+` WHERE w.id = $1 ORDER BY ci.issued_at DESC`, workshopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.IssuedWithRecipient
	for rows.Next() {
		var c models.IssuedWithRecipient
		if err := scanIssuedWithRecipient(rows, &c); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// GetByRegistration returns the certificate issued for a registration of the workshop, or nil.
func (r *Repository) GetByRegistration(ctx context.Context, workshopID, registrationID uuid.UUID) (*models.IssuedWithRecipient, error) {
	var c models.IssuedWithRecipient
	err := scanIssuedWithRecipient(
		r.db.QueryRow(ctx, issuedWithRecipientSelect+` WHERE w.id = $1 AND ci.registration_id = $2`, workshopID, registrationID),
		&c)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ReferencedKeys returns the subset of keys recorded on an issuance row.
func (r *Repository) ReferencedKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT storage_key FROM certificate_issued WHERE storage_key = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out[k] = struct{}{}
	}
	return out, rows.Err()
}
