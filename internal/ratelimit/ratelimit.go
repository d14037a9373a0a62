package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paperfold/paperfold/internal/models"
	"github.com/paperfold/paperfold/internal/monitoring"
)

// Window is the trailing interval used to count prior usage.
const Window = time.Hour

// UsageCounter counts usage rows for an identity since an instant.
type UsageCounter interface {
	CountSince(ctx context.Context, identityID uuid.UUID, since time.Time) (int, error)
}

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
}

// Limiter computes remaining quota from the usage ledger.
//
// The check and the later ledger write are deliberately not atomic:
// two concurrent requests from one identity can both pass before either
// row is visible, overshooting the quota by at most the identity's
// in-flight concurrency. Reproducing this trailing-window behavior was
// chosen over a fixed-window atomic counter; see DESIGN.md.
type Limiter struct {
	counter UsageCounter
	now     func() time.Time
}

// NewLimiter creates a rate limiter reading from the given counter.
func NewLimiter(counter UsageCounter) *Limiter {
	return &Limiter{counter: counter, now: time.Now}
}

// NewLimiterAt creates a limiter with an injected clock, for tests.
func NewLimiterAt(counter UsageCounter, now func() time.Time) *Limiter {
	return &Limiter{counter: counter, now: now}
}

// Check decides whether one more request is allowed for the identity.
// The counting window trails the current instant by one hour; the
// advertised ResetAt is the top of the next wall-clock hour, which is a
// deliberate simplification of the trailing window for callers.
func (l *Limiter) Check(ctx context.Context, identity *models.Identity, endpoint string) (*Result, error) {
	now := l.now()
	windowStart := now.Add(-Window)

	count, err := l.counter.CountSince(ctx, identity.ID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count usage window: %w", err)
	}

	result := &Result{
		Limit:   identity.HourlyQuota,
		ResetAt: NextHour(now),
	}

	result.Remaining = identity.HourlyQuota - count
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	result.Allowed = count < identity.HourlyQuota

	if !result.Allowed {
		monitoring.Get().RateLimitHits.WithLabelValues(endpoint).Inc()
	}

	return result, nil
}

// NextHour returns the start of the next calendar hour after t.
func NextHour(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}
