package models

import (
	"time"

	"github.com/google/uuid"
)

type AnimalStatus string

const (
	AnimalActive   AnimalStatus = "active"
	AnimalDeceased AnimalStatus = "deceased"
)

// Animal is the reference entity agents resolve by ear tag or barcode.
type Animal struct {
	ID        uuid.UUID    `json:"id"`
	TagNumber string       `json:"tag_number"`
	Barcode   string       `json:"barcode,omitempty"`
	Name      string       `json:"name"`
	Breed     string       `json:"breed,omitempty"`
	Gender    string       `json:"gender,omitempty"`
	BirthDate *time.Time   `json:"birth_date,omitempty"`
	Weight    *float64     `json:"weight,omitempty"`
	Color     string       `json:"color,omitempty"`
	Status    AnimalStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt *time.Time   `json:"updated_at,omitempty"`
}
