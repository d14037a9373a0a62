package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is one append-only row per completed request,
// success or failure. Rows are never mutated or deleted.
type UsageRecord struct {
	ID           uuid.UUID `json:"id" db:"id"`
	IdentityID   uuid.UUID `json:"identity_id" db:"identity_id"`
	OwnerID      uuid.UUID `json:"owner_id" db:"owner_id"`
	Endpoint     string    `json:"endpoint" db:"endpoint"`
	Method       string    `json:"method" db:"method"`
	StatusCode   int       `json:"status_code" db:"status_code"`
	ResponseSize int       `json:"response_size" db:"response_size"`
	LatencyMs    int       `json:"latency_ms" db:"latency_ms"`
	ErrorCode    *string   `json:"error_code,omitempty" db:"error_code"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UsageStats aggregates usage for an owner over a window.
type UsageStats struct {
	TotalRequests   int64            `json:"total_requests"`
	SuccessRequests int64            `json:"success_requests"`
	ErrorRequests   int64            `json:"error_requests"`
	TotalBytes      int64            `json:"total_bytes"`
	ByEndpoint      map[string]int64 `json:"by_endpoint"`
}
