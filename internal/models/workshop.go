package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkshopStatus is the lifecycle state of a workshop.
type WorkshopStatus string

const (
	WorkshopStatusDraft     WorkshopStatus = "draft"
	WorkshopStatusActive    WorkshopStatus = "active"
	WorkshopStatusCompleted WorkshopStatus = "completed"
	WorkshopStatusCancelled WorkshopStatus = "cancelled"
)

// Workshop is a training event owned by an organizer.
type Workshop struct {
	ID            uuid.UUID      `json:"id"`
	OrganizerID   uuid.UUID      `json:"organizer_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	OrganizerType string         `json:"organizer_type"`
	MaxCapacity   int            `json:"max_capacity"`
	StartDate     time.Time      `json:"start_date"`
	EndDate       time.Time      `json:"end_date"`
	Status        WorkshopStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
