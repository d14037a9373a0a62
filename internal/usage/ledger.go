package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperfold/paperfold/internal/models"
)

// Ledger is the append-only store of per-request usage records.
// It doubles as the rate limiter's source of truth.
type Ledger struct {
	db *pgxpool.Pool
}

// NewLedger creates a usage ledger backed by Postgres.
func NewLedger(db *pgxpool.Pool) *Ledger {
	return &Ledger{db: db}
}

// Record appends one usage row. Exactly one row is written per completed
// request, success or failure; rows are never updated or deleted.
func (l *Ledger) Record(ctx context.Context, rec *models.UsageRecord) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO api_usage (identity_id, owner_id, endpoint, method, status_code, response_size, latency_ms, error_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.IdentityID, rec.OwnerID, rec.Endpoint, rec.Method, rec.StatusCode,
		rec.ResponseSize, rec.LatencyMs, rec.ErrorCode)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// CountSince counts usage rows for an identity created at or after the
// given instant. Used by the rate limiter's trailing window.
func (l *Ledger) CountSince(ctx context.Context, identityID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := l.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM api_usage
		WHERE identity_id = $1 AND created_at >= $2
	`, identityID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count usage: %w", err)
	}
	return count, nil
}

// List returns an owner's usage rows, newest first.
func (l *Ledger) List(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]models.UsageRecord, int64, error) {
	var total int64
	err := l.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM api_usage WHERE owner_id = $1
	`, ownerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count usage rows: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := l.db.Query(ctx, `
		SELECT id, identity_id, owner_id, endpoint, method, status_code, response_size, latency_ms, error_code, created_at
		FROM api_usage
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list usage rows: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		err := rows.Scan(
			&rec.ID, &rec.IdentityID, &rec.OwnerID, &rec.Endpoint, &rec.Method,
			&rec.StatusCode, &rec.ResponseSize, &rec.LatencyMs, &rec.ErrorCode, &rec.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan usage row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating usage rows: %w", err)
	}

	return records, total, nil
}

// Stats aggregates an owner's usage since the given instant.
func (l *Ledger) Stats(ctx context.Context, ownerID uuid.UUID, since time.Time) (*models.UsageStats, error) {
	stats := &models.UsageStats{ByEndpoint: make(map[string]int64)}

	err := l.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status_code < 400),
		       COUNT(*) FILTER (WHERE status_code >= 400),
		       COALESCE(SUM(response_size), 0)
		FROM api_usage
		WHERE owner_id = $1 AND created_at >= $2
	`, ownerID, since).Scan(&stats.TotalRequests, &stats.SuccessRequests, &stats.ErrorRequests, &stats.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}

	rows, err := l.db.Query(ctx, `
		SELECT endpoint, COUNT(*)
		FROM api_usage
		WHERE owner_id = $1 AND created_at >= $2
		GROUP BY endpoint
	`, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate endpoints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var endpoint string
		var count int64
		if err := rows.Scan(&endpoint, &count); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint row: %w", err)
		}
		stats.ByEndpoint[endpoint] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating endpoint rows: %w", err)
	}

	return stats, nil
}
