package models

import (
	"encoding/json"
	"time"
)

type RecordType string

const (
	RecordAttendance RecordType = "attendance"
	RecordMedical    RecordType = "medical"
	RecordBreeding   RecordType = "breeding"
)

type SyncStatus string

const (
	StatusPending  SyncStatus = "pending"
	StatusInFlight SyncStatus = "in-flight"
	StatusSynced   SyncStatus = "synced"
	StatusFailed   SyncStatus = "failed"
)

// QueuedRecord is one pending write captured on a device. ClientID is
// generated once at capture time and never reused; it is the handle the
// server acknowledges and the queue prunes by.
type QueuedRecord struct {
	ClientID   string          `json:"client_id"`
	RecordType RecordType      `json:"record_type"`
	Payload    json.RawMessage `json:"payload"`
	CapturedAt time.Time       `json:"captured_at"`
	SyncStatus SyncStatus      `json:"sync_status,omitempty"`
	FailReason string          `json:"fail_reason,omitempty"`
}

// AttendancePayload is the wire shape of an attendance capture.
type AttendancePayload struct {
	AnimalID       string `json:"animal_id"`
	AttendanceDate string `json:"attendance_date"` // YYYY-MM-DD
	Notes          string `json:"notes,omitempty"`
}

type MedicalPayload struct {
	AnimalID    string `json:"animal_id"`
	EventType   string `json:"event_type"`
	EventDate   string `json:"event_date"` // YYYY-MM-DD
	Description string `json:"description,omitempty"`
	Medication  string `json:"medication,omitempty"`
	Dosage      string `json:"dosage,omitempty"`
	NextDueDate string `json:"next_due_date,omitempty"`
}

type BreedingPayload struct {
	DamID           string `json:"dam_id"`
	SireID          string `json:"sire_id"`
	BreedingDate    string `json:"breeding_date"` // YYYY-MM-DD
	ExpectedDueDate string `json:"expected_due_date,omitempty"`
	Outcome         string `json:"outcome,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// ReconcileRequest carries a queue drain batch, oldest capture first.
type ReconcileRequest struct {
	Records []QueuedRecord `json:"records"`
}

type RejectedRecord struct {
	ClientID string `json:"client_id"`
	Reason   string `json:"reason"`
}

// ReconcileResponse is the authoritative outcome the client prunes by.
// AcceptedClientIDs includes records that were already satisfied by an
// existing row for the same dedup key.
type ReconcileResponse struct {
	AcceptedClientIDs []string         `json:"accepted_client_ids"`
	Rejected          []RejectedRecord `json:"rejected,omitempty"`
}
