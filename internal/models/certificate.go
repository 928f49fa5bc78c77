package models

import (
	"time"

	"github.com/google/uuid"
)

// CertificateIssued is the immutable record of one issued certificate artifact.
type CertificateIssued struct {
	ID               uuid.UUID `json:"id"`
	RegistrationID   uuid.UUID `json:"registration_id"`
	CertificateID    uuid.UUID `json:"certificate_id"` // workshop-level certificate template row
	CertificateURL   string    `json:"certificate_url"`
	VerificationCode string    `json:"verification_code"`
	StorageKey       string    `json:"-"`
	ContentSHA256    string    `json:"content_sha256"`
	IssuedAt         time.Time `json:"issued_at"`
}

// IssuedWithRecipient is an issued certificate joined with the data needed to notify its owner.
type IssuedWithRecipient struct {
	CertificateIssued
	StudentName   string    `json:"student_name"`
	StudentPhone  string    `json:"student_phone"`
	StudentEmail  string    `json:"student_email"`
	WorkshopID    uuid.UUID `json:"workshop_id"`
	WorkshopTitle string    `json:"workshop_title"`
}

// CertificateView is the public verification page model.
type CertificateView struct {
	VerificationCode    string    `json:"verification_code"`
	StudentName         string    `json:"student_name"`
	WorkshopTitle       string    `json:"workshop_title"`
	WorkshopDescription string    `json:"workshop_description"`
	CompletionDate      time.Time `json:"completion_date"`
	IssuedAt            time.Time `json:"issued_at"`
	CertificateURL      string    `json:"certificate_url"`
	ContentSHA256       string    `json:"content_sha256"`
}
