package apikey

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/paperfold/paperfold/internal/cache"
	"github.com/paperfold/paperfold/internal/config"
	"github.com/paperfold/paperfold/internal/models"
	"github.com/paperfold/paperfold/internal/monitoring"
)

// Service errors
var (
	ErrKeyNotFound    = errors.New("API key not found")
	ErrKeyNotOwned    = errors.New("API key does not belong to owner")
	ErrMaxKeysReached = errors.New("maximum number of API keys reached")
	ErrSecretTooShort = errors.New("key hashing secret is too short")
)

// MaxKeysPerOwner is the maximum number of active API keys per owner
const MaxKeysPerOwner = 10

// KeyPrefixLive is the prefix of issued keys
const KeyPrefixLive = "sk_live"

const identityCacheTTL = 60 * time.Second

// Hasher computes keyed hashes of raw API keys. The secret is loaded
// once at startup and never re-read or rotated per request.
type Hasher struct {
	secret []byte
}

// NewHasher creates a Hasher, rejecting secrets below the configured minimum.
func NewHasher(secret string) (*Hasher, error) {
	if len(secret) < config.MinKeySecretLen {
		return nil, ErrSecretTooShort
	}
	return &Hasher{secret: []byte(secret)}, nil
}

// Hash returns the hex-encoded HMAC-SHA256 of a raw key.
func (h *Hasher) Hash(rawKey string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(rawKey))
	return hex.EncodeToString(mac.Sum(nil))
}

// Store persists API keys and resolves key hashes to identities.
// Lookups go through a short-TTL Redis cache; the database stays the
// source of truth and revocation invalidates the cached entry.
type Store struct {
	db           *pgxpool.Pool
	cache        *cache.Redis
	defaultQuota int
}

// NewStore creates a new API key store
func NewStore(db *pgxpool.Pool, redis *cache.Redis, defaultQuota int) *Store {
	return &Store{db: db, cache: redis, defaultQuota: defaultQuota}
}

// LookupByHash resolves a key hash to its identity.
// Returns ErrKeyNotFound if no key with that hash exists; inactive keys
// are returned with IsActive=false so the caller decides the failure kind.
func (s *Store) LookupByHash(ctx context.Context, keyHash string) (*models.Identity, error) {
	m := monitoring.Get()

	if s.cache != nil {
		if raw, ok := s.cache.GetString(ctx, cacheKey(keyHash)); ok {
			var identity models.Identity
			if err := json.Unmarshal([]byte(raw), &identity); err == nil {
				m.CacheHits.Inc()
				return &identity, nil
			}
		}
		m.CacheMisses.Inc()
	}

	var key models.APIKey
	err := s.db.QueryRow(ctx, `
		SELECT id, owner_id, is_active, hourly_quota, total_requests
		FROM api_keys
		WHERE key_hash = $1
	`, keyHash).Scan(&key.ID, &key.OwnerID, &key.IsActive, &key.HourlyQuota, &key.TotalRequests)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to look up API key: %w", err)
	}

	identity := key.Identity()

	if s.cache != nil {
		if raw, err := json.Marshal(identity); err == nil {
			s.cache.SetString(ctx, cacheKey(keyHash), string(raw), identityCacheTTL)
		}
	}

	return identity, nil
}

// TouchUsage increments total_requests and stamps last_used_at.
// Called fire-and-forget after a successful authentication.
func (s *Store) TouchUsage(ctx context.Context, keyID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE api_keys
		SET total_requests = total_requests + 1, last_used_at = NOW()
		WHERE id = $1
	`, keyID)
	if err != nil {
		return fmt.Errorf("failed to update key usage: %w", err)
	}
	return nil
}

// CreateKeyRequest represents a request to create an API key
type CreateKeyRequest struct {
	Name        string `json:"name,omitempty"`
	HourlyQuota int    `json:"hourly_quota,omitempty"`
}

// CreateKeyResponse is returned once at creation time; the raw key is
// never retrievable afterwards.
type CreateKeyResponse struct {
	ID          uuid.UUID `json:"id"`
	Key         string    `json:"key"`
	KeyPrefix   string    `json:"key_prefix"`
	Name        *string   `json:"name,omitempty"`
	HourlyQuota int       `json:"hourly_quota"`
	CreatedAt   time.Time `json:"created_at"`
}

// KeyResponse represents an API key in list responses (without the raw key)
type KeyResponse struct {
	ID            uuid.UUID  `json:"id"`
	KeyPrefix     string     `json:"key_prefix"`
	Name          *string    `json:"name,omitempty"`
	IsActive      bool       `json:"is_active"`
	HourlyQuota   int        `json:"hourly_quota"`
	TotalRequests int64      `json:"total_requests"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Create issues a new API key for an owner
func (s *Store) Create(ctx context.Context, ownerID uuid.UUID, hasher *Hasher, req *CreateKeyRequest) (*CreateKeyResponse, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM api_keys
		WHERE owner_id = $1 AND is_active = TRUE
	`, ownerID).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to count API keys: %w", err)
	}
	if count >= MaxKeysPerOwner {
		return nil, ErrMaxKeysReached
	}

	rawKey, keyPrefix, err := generateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	keyHash := hasher.Hash(rawKey)

	quota := req.HourlyQuota
	if quota <= 0 {
		quota = s.defaultQuota
	}

	var name *string
	if req.Name != "" {
		name = &req.Name
	}

	var id uuid.UUID
	var createdAt time.Time
	err = s.db.QueryRow(ctx, `
		INSERT INTO api_keys (owner_id, key_hash, key_prefix, name, hourly_quota)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, ownerID, keyHash, keyPrefix, name, quota).Scan(&id, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create API key: %w", err)
	}

	return &CreateKeyResponse{
		ID:          id,
		Key:         rawKey,
		KeyPrefix:   keyPrefix,
		Name:        name,
		HourlyQuota: quota,
		CreatedAt:   createdAt,
	}, nil
}

// List returns all API keys for an owner
func (s *Store) List(ctx context.Context, ownerID uuid.UUID) ([]KeyResponse, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, key_prefix, name, is_active, hourly_quota, total_requests, last_used_at, created_at
		FROM api_keys
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	defer rows.Close()

	var keys []KeyResponse
	for rows.Next() {
		var key KeyResponse
		err := rows.Scan(
			&key.ID, &key.KeyPrefix, &key.Name, &key.IsActive,
			&key.HourlyQuota, &key.TotalRequests, &key.LastUsedAt, &key.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan API key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API keys: %w", err)
	}

	return keys, nil
}

// Revoke deactivates an API key and drops its cached identity so the
// revocation takes effect immediately.
func (s *Store) Revoke(ctx context.Context, keyID uuid.UUID, ownerID uuid.UUID) error {
	var dbOwnerID uuid.UUID
	var keyHash string
	var isActive bool
	err := s.db.QueryRow(ctx, `
		SELECT owner_id, key_hash, is_active FROM api_keys WHERE id = $1
	`, keyID).Scan(&dbOwnerID, &keyHash, &isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to get API key: %w", err)
	}

	if dbOwnerID != ownerID {
		return ErrKeyNotOwned
	}

	if isActive {
		_, err = s.db.Exec(ctx, `
			UPDATE api_keys SET is_active = FALSE WHERE id = $1
		`, keyID)
		if err != nil {
			return fmt.Errorf("failed to revoke API key: %w", err)
		}
	}

	if s.cache != nil {
		s.cache.Delete(ctx, cacheKey(keyHash))
	}
	log.Info().Str("key_id", keyID.String()).Msg("API key revoked")

	return nil
}

func cacheKey(keyHash string) string {
	return "identity:" + keyHash
}

// generateKey generates a secure API key.
// Format: sk_live_<24 random bytes, base64url>.
func generateKey() (rawKey string, keyPrefix string, err error) {
	randomBytes := make([]byte, 24)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawKey = KeyPrefixLive + "_" + base64.RawURLEncoding.EncodeToString(randomBytes)

	// Display prefix: "sk_live_" plus the first four random characters.
	keyPrefix = rawKey[:len(KeyPrefixLive)+5]

	return rawKey, keyPrefix, nil
}

// MaskKey renders a key for display: sk_live_...abcd
func MaskKey(rawKey string) string {
	if len(rawKey) <= 12 {
		return rawKey
	}
	return KeyPrefixLive + "_..." + rawKey[len(rawKey)-4:]
}
