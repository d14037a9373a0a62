package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/paperfold/paperfold/internal/apikey"
	apierrors "github.com/paperfold/paperfold/internal/errors"
)

// handleUsageStats aggregates the caller's usage over a trailing window.
func (s *APIServer) handleUsageStats(c *gin.Context) {
	const endpoint = "/v1/usage/stats"
	start := time.Now()

	env, ok := s.admit(c, endpoint, start)
	if !ok {
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days < 1 || days > 365 {
		s.reject(c, env, endpoint, start, apierrors.NewValidationError("days must be between 1 and 365"))
		return
	}
	since := time.Now().AddDate(0, 0, -days)

	stats, err := s.ledger.Stats(c.Request.Context(), env.Identity.OwnerID, since)
	if err != nil {
		s.reject(c, env, endpoint, start, apierrors.ErrStorageFailureError)
		return
	}
	s.finish(c, env, endpoint, start, 0, nil)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"days":    days,
		"stats":   stats,
	})
}

// handleUsageRecords pages through the caller's raw usage rows.
func (s *APIServer) handleUsageRecords(c *gin.Context) {
	const endpoint = "/v1/usage/records"
	start := time.Now()

	env, ok := s.admit(c, endpoint, start)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	records, total, err := s.ledger.List(c.Request.Context(), env.Identity.OwnerID, page, limit)
	if err != nil {
		s.reject(c, env, endpoint, start, apierrors.ErrStorageFailureError)
		return
	}
	s.finish(c, env, endpoint, start, 0, nil)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"records": records,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// createKeyRequest is the operator-facing issuance request.
type createKeyRequest struct {
	OwnerID     string `json:"owner_id" binding:"required"`
	Name        string `json:"name,omitempty"`
	HourlyQuota int    `json:"hourly_quota,omitempty"`
}

// handleCreateKey issues a new API key. The raw key appears in this
// response only and is never retrievable afterwards.
func (s *APIServer) handleCreateKey(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}
	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		respondError(c, apierrors.NewValidationError("owner_id must be a UUID"))
		return
	}

	resp, err := s.keys.Create(c.Request.Context(), ownerID, s.hasher, &apikey.CreateKeyRequest{
		Name:        req.Name,
		HourlyQuota: req.HourlyQuota,
	})
	if err != nil {
		if errors.Is(err, apikey.ErrMaxKeysReached) {
			respondError(c, apierrors.NewValidationError("maximum number of keys reached for this owner"))
			return
		}
		respondError(c, apierrors.ErrStorageFailureError)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// handleListKeys lists an owner's keys, raw values masked.
func (s *APIServer) handleListKeys(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Query("owner_id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("owner_id must be a UUID"))
		return
	}

	keys, err := s.keys.List(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, apierrors.ErrStorageFailureError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// handleRevokeKey deactivates a key. Revocation is a soft delete so
// historical usage rows keep their referent.
func (s *APIServer) handleRevokeKey(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("key id must be a UUID"))
		return
	}
	ownerID, err := uuid.Parse(c.Query("owner_id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("owner_id must be a UUID"))
		return
	}

	if err := s.keys.Revoke(c.Request.Context(), keyID, ownerID); err != nil {
		switch {
		case errors.Is(err, apikey.ErrKeyNotFound):
			respondError(c, &apierrors.APIError{
				Code:       apierrors.ErrValidation,
				Message:    "Key not found",
				HTTPStatus: http.StatusNotFound,
			})
		case errors.Is(err, apikey.ErrKeyNotOwned):
			respondError(c, apierrors.NewValidationError("key does not belong to this owner"))
		default:
			respondError(c, apierrors.ErrStorageFailureError)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true, "id": keyID})
}
