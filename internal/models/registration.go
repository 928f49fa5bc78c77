package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the organizer decision state of a registration.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationApproved, RegistrationRejected:
		return true
	}
	return false
}

// Registration is a student's application to a workshop.
// ApprovedAt is set if and only if Status is approved.
type Registration struct {
	ID           uuid.UUID          `json:"id"`
	WorkshopID   uuid.UUID          `json:"workshop_id"`
	StudentName  string             `json:"student_name"`
	StudentEmail string             `json:"student_email"`
	StudentPhone string             `json:"student_phone"`
	CustomFields json.RawMessage    `json:"custom_fields,omitempty"`
	Status       RegistrationStatus `json:"status"`
	RegisteredAt time.Time          `json:"registered_at"`
	ApprovedAt   *time.Time         `json:"approved_at,omitempty"`
}

// RegistrationWithWorkshop is a registration joined with its owning workshop.
type RegistrationWithWorkshop struct {
	Registration
	Workshop Workshop `json:"workshop"`
}
