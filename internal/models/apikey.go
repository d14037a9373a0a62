package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the authenticated principal resolved from an API key.
// It never carries the raw key or its hash.
type Identity struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	IsActive      bool      `json:"is_active"`
	HourlyQuota   int       `json:"hourly_quota"`
	TotalRequests int64     `json:"total_requests"`
}

// APIKey represents a stored API key row.
type APIKey struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	OwnerID       uuid.UUID  `json:"owner_id" db:"owner_id"`
	KeyHash       string     `json:"-" db:"key_hash"`
	KeyPrefix     string     `json:"key_prefix" db:"key_prefix"`
	Name          *string    `json:"name,omitempty" db:"name"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	HourlyQuota   int        `json:"hourly_quota" db:"hourly_quota"`
	TotalRequests int64      `json:"total_requests" db:"total_requests"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Identity projects the key row onto the authenticated principal.
func (k *APIKey) Identity() *Identity {
	return &Identity{
		ID:            k.ID,
		OwnerID:       k.OwnerID,
		IsActive:      k.IsActive,
		HourlyQuota:   k.HourlyQuota,
		TotalRequests: k.TotalRequests,
	}
}
