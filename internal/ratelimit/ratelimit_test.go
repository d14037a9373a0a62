package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"github.com/paperfold/paperfold/internal/models"
)

type fixedCounter struct {
	count int
	err   error
}

func (f *fixedCounter) CountSince(ctx context.Context, identityID uuid.UUID, since time.Time) (int, error) {
	return f.count, f.err
}

func testIdentity(quota int) *models.Identity {
	return &models.Identity{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		IsActive:    true,
		HourlyQuota: quota,
	}
}

// TestQuotaBoundary verifies that for any quota Q, a prior count of
// Q-1 is allowed and a prior count of Q is denied.
func TestQuotaBoundary(t *testing.T) {
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		quota := rapid.IntRange(1, 10000).Draw(rt, "quota")
		identity := testIdentity(quota)

		limiter := NewLimiter(&fixedCounter{count: quota - 1})
		res, err := limiter.Check(ctx, identity, "/v1/pdf/generate")
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d of %d should be allowed", quota, quota)
		}
		if res.Remaining != 1 {
			t.Fatalf("remaining = %d, want 1", res.Remaining)
		}

		limiter = NewLimiter(&fixedCounter{count: quota})
		res, err = limiter.Check(ctx, identity, "/v1/pdf/generate")
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if res.Allowed {
			t.Fatalf("request %d of %d should be denied", quota+1, quota)
		}
		if res.Remaining != 0 {
			t.Fatalf("remaining = %d, want 0", res.Remaining)
		}
	})
}

// TestRemainingNeverNegative verifies remaining is clamped at zero even
// when the counted window exceeds the quota.
func TestRemainingNeverNegative(t *testing.T) {
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		quota := rapid.IntRange(1, 100).Draw(rt, "quota")
		over := rapid.IntRange(0, 50).Draw(rt, "over")
		identity := testIdentity(quota)

		limiter := NewLimiter(&fixedCounter{count: quota + over})
		res, err := limiter.Check(ctx, identity, "/v1/pdf/generate")
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if res.Remaining != 0 {
			t.Fatalf("remaining = %d, want 0", res.Remaining)
		}
		if res.Allowed {
			t.Fatal("over-quota identity should be denied")
		}
	})
}

// TestResetAtTopOfHour verifies the advertised reset instant is the
// start of the next calendar hour regardless of where in the hour the
// check runs.
func TestResetAtTopOfHour(t *testing.T) {
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		base := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
		offset := time.Duration(rapid.Int64Range(0, int64(24*time.Hour)-1).Draw(rt, "offset"))
		now := base.Add(offset)

		limiter := NewLimiterAt(&fixedCounter{count: 0}, func() time.Time { return now })
		res, err := limiter.Check(ctx, testIdentity(10), "/v1/pdf/generate")
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}

		want := now.Truncate(time.Hour).Add(time.Hour)
		if !res.ResetAt.Equal(want) {
			t.Fatalf("resetAt = %v, want %v (now %v)", res.ResetAt, want, now)
		}
		if !res.ResetAt.After(now) {
			t.Fatalf("resetAt %v is not after now %v", res.ResetAt, now)
		}
		if res.ResetAt.Sub(now) > time.Hour {
			t.Fatalf("resetAt %v is more than an hour after now %v", res.ResetAt, now)
		}
	})
}

// TestWindowStart verifies the counter is asked about the trailing
// hour, not a fixed calendar window.
func TestWindowStart(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 15, 30, 45, 0, time.UTC)

	var askedSince time.Time
	counter := &captureCounter{since: &askedSince}

	limiter := NewLimiterAt(counter, func() time.Time { return now })
	if _, err := limiter.Check(ctx, testIdentity(10), "/v1/pdf/generate"); err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	want := now.Add(-time.Hour)
	if !askedSince.Equal(want) {
		t.Fatalf("window start = %v, want %v", askedSince, want)
	}
}

type captureCounter struct {
	since *time.Time
}

func (c *captureCounter) CountSince(ctx context.Context, identityID uuid.UUID, since time.Time) (int, error) {
	*c.since = since
	return 0, nil
}

func TestCounterErrorPropagates(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")

	limiter := NewLimiter(&fixedCounter{err: boom})
	_, err := limiter.Check(ctx, testIdentity(10), "/v1/pdf/generate")
	if err == nil {
		t.Fatal("expected error from failing counter")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("error %v does not wrap counter error", err)
	}
}
