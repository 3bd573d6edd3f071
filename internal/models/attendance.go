package models

import (
	"time"

	"github.com/google/uuid"
)

// Attendance is a daily check-in for one animal. The server enforces at most
// one row per (animal_id, attendance_date); a replayed write for the same
// pair is already satisfied, not an error.
type Attendance struct {
	ID             uuid.UUID `json:"id"`
	AnimalID       uuid.UUID `json:"animal_id"`
	AccountID      uuid.UUID `json:"account_id"`
	AttendanceDate time.Time `json:"attendance_date"`
	Notes          string    `json:"notes,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}
