package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind identifies which message template a notification used.
type NotificationKind string

const (
	NotificationRegistration NotificationKind = "registration"
	NotificationApproval     NotificationKind = "approval"
	NotificationRejection    NotificationKind = "rejection"
	NotificationCertificate  NotificationKind = "certificate"
)

// NotificationLog status values.
const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
)

// NotificationLog records one delivery attempt to one recipient.
type NotificationLog struct {
	ID             uuid.UUID        `json:"id"`
	WorkshopID     uuid.UUID        `json:"workshop_id"`
	RegistrationID *uuid.UUID       `json:"registration_id,omitempty"`
	Kind           NotificationKind `json:"kind"`
	Channel        string           `json:"channel"`
	Recipient      string           `json:"recipient"`
	Status         string           `json:"status"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
