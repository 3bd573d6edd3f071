package models

import (
	"time"

	"github.com/google/uuid"
)

// BreedingRecord dedup key: (dam_id, breeding_date).
type BreedingRecord struct {
	ID              uuid.UUID  `json:"id"`
	DamID           uuid.UUID  `json:"dam_id"`
	SireID          uuid.UUID  `json:"sire_id"`
	AccountID       uuid.UUID  `json:"account_id"`
	BreedingDate    time.Time  `json:"breeding_date"`
	ExpectedDueDate *time.Time `json:"expected_due_date,omitempty"`
	Outcome         string     `json:"outcome,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
