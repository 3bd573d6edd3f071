package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MedicalVaccination = "vaccination"
	MedicalTreatment   = "treatment"
	MedicalCheckup     = "checkup"
	MedicalDeworming   = "deworming"
)

// MedicalEvent dedup key: (animal_id, event_type, event_date).
type MedicalEvent struct {
	ID          uuid.UUID  `json:"id"`
	AnimalID    uuid.UUID  `json:"animal_id"`
	AccountID   uuid.UUID  `json:"account_id"`
	EventType   string     `json:"event_type"`
	Description string     `json:"description,omitempty"`
	Medication  string     `json:"medication,omitempty"`
	Dosage      string     `json:"dosage,omitempty"`
	EventDate   time.Time  `json:"event_date"`
	NextDueDate *time.Time `json:"next_due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
