package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/paperfold/paperfold/internal/apikey"
	"github.com/paperfold/paperfold/internal/logging"
	"github.com/paperfold/paperfold/internal/models"
	"github.com/paperfold/paperfold/internal/monitoring"
)

// Authentication failures. Absent key and unknown/inactive key are
// distinct outcomes and must stay distinct.
var (
	ErrUnauthenticated = errors.New("no API key provided")
	ErrInvalidKey      = errors.New("invalid or inactive API key")
)

// KeyStore resolves key hashes to identities and records key usage.
type KeyStore interface {
	LookupByHash(ctx context.Context, keyHash string) (*models.Identity, error)
	// TouchUsage must be applied at least once per successful
	// authentication, but its failure never fails the request.
	TouchUsage(ctx context.Context, keyID uuid.UUID) error
}

// Gate authenticates raw API keys against the key store.
type Gate struct {
	hasher *apikey.Hasher
	store  KeyStore
	logger zerolog.Logger
}

// NewGate creates an authentication gate.
func NewGate(hasher *apikey.Hasher, store KeyStore) *Gate {
	return &Gate{
		hasher: hasher,
		store:  store,
		logger: logging.NewLogger("auth"),
	}
}

// Authenticate resolves a presented key to its identity.
// Returns ErrUnauthenticated when no key is presented and ErrInvalidKey
// when the key is unknown or inactive. Neither the raw key nor its hash
// ever reaches the caller or the logs.
func (g *Gate) Authenticate(ctx context.Context, rawKey string) (*models.Identity, error) {
	m := monitoring.Get()

	if rawKey == "" {
		m.AuthFailures.WithLabelValues("missing").Inc()
		return nil, ErrUnauthenticated
	}

	keyHash := g.hasher.Hash(rawKey)

	identity, err := g.store.LookupByHash(ctx, keyHash)
	if err != nil {
		if errors.Is(err, apikey.ErrKeyNotFound) {
			m.AuthFailures.WithLabelValues("unknown").Inc()
			return nil, ErrInvalidKey
		}
		return nil, err
	}

	if !identity.IsActive {
		m.AuthFailures.WithLabelValues("inactive").Inc()
		return nil, ErrInvalidKey
	}

	// Update usage counters without blocking the response. The goroutine
	// carries its own deadline so it cannot outlive the process shutdown
	// grace period, and a failure is logged, not surfaced.
	keyID := identity.ID
	go func() {
		touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.store.TouchUsage(touchCtx, keyID); err != nil {
			g.logger.Warn().Err(err).Str("key_id", keyID.String()).Msg("Failed to update key usage")
		}
	}()

	return identity, nil
}
