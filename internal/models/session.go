package models

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID         string    `json:"id"`
	AccountID  uuid.UUID `json:"account_id"`
	DeviceName string    `json:"device_name"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}
