package model

import (
	"time"
)

// QuotaRecord tracks the per-user remaining-message counter and the pending
// ad-unlock token. Mutated only by the quota gate, always via conditional
// updates.
type QuotaRecord struct {
	UserID        string     `gorm:"primaryKey;type:uuid" json:"user_id"`
	Remaining     int        `json:"remaining"`
	UnlockToken   *string    `json:"-"`
	TokenIssuedAt *time.Time `json:"-"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
