package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paperfold/paperfold/internal/apikey"
	"github.com/paperfold/paperfold/internal/cache"
	"github.com/paperfold/paperfold/internal/config"
	"github.com/paperfold/paperfold/internal/database"
	"github.com/paperfold/paperfold/internal/docstore"
	apierrors "github.com/paperfold/paperfold/internal/errors"
	"github.com/paperfold/paperfold/internal/logging"
	"github.com/paperfold/paperfold/internal/middleware"
	"github.com/paperfold/paperfold/internal/monitoring"
	"github.com/paperfold/paperfold/internal/pipeline"
	"github.com/paperfold/paperfold/internal/usage"
)

// APIServer represents the main API server
type APIServer struct {
	config   *config.Config
	router   *gin.Engine
	db       *database.DB
	redis    *cache.Redis
	pipeline *pipeline.Pipeline
	keys     *apikey.Store
	hasher   *apikey.Hasher
	ledger   *usage.Ledger
	docs     *docstore.Store
	renderOK func() error
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, db *database.DB, redis *cache.Redis, pl *pipeline.Pipeline, keys *apikey.Store, hasher *apikey.Hasher, ledger *usage.Ledger, docs *docstore.Store, renderHealth func() error) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	srv := &APIServer{
		config:   cfg,
		router:   router,
		db:       db,
		redis:    redis,
		pipeline: pl,
		keys:     keys,
		hasher:   hasher,
		ledger:   ledger,
		docs:     docs,
		renderOK: renderHealth,
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/v1")
	{
		// PDF routes (protected by API key inside each handler, so
		// quota headers ride on every outcome)
		pdf := v1.Group("/pdf")
		{
			pdf.POST("/generate", s.handleGenerate)
			pdf.POST("/generate-url", s.handleGenerateURL)
			pdf.POST("/modify", s.handleModify)
			pdf.POST("/watermark", s.handleWatermark)
			pdf.POST("/merge", s.handleMerge)
			pdf.POST("/extract-text", s.handleExtractText)
			pdf.POST("/info", s.handleInfo)
			pdf.GET("/list", s.handleListDocuments)
		}

		// Usage routes
		usageGroup := v1.Group("/usage")
		{
			usageGroup.GET("/stats", s.handleUsageStats)
			usageGroup.GET("/records", s.handleUsageRecords)
		}

		// Key management (operator only)
		keys := v1.Group("/keys")
		keys.Use(middleware.AdminAuth(s.config.Auth.AdminToken))
		{
			keys.POST("/", s.handleCreateKey)
			keys.GET("/", s.handleListKeys)
			keys.DELETE("/:id", s.handleRevokeKey)
		}
	}
}

// Health check handler
func (s *APIServer) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	checks := gin.H{"database": "ok", "redis": "ok", "browser": "ok"}

	if err := s.db.Health(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := s.redis.Health(ctx); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if s.renderOK != nil {
		if err := s.renderOK(); err != nil {
			checks["browser"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	body := gin.H{
		"status":  "healthy",
		"service": "paperfold",
		"checks":  checks,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// setRateHeaders exposes the caller's quota position. Attached on
// every outcome once the rate check has run, including denials.
func setRateHeaders(c *gin.Context, env *pipeline.Env) {
	if env == nil || env.Rate == nil {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(env.Rate.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(env.Rate.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(env.Rate.ResetAt.Unix(), 10))
}

// finish records the request's terminal outcome exactly once.
func (s *APIServer) finish(c *gin.Context, env *pipeline.Env, endpoint string, start time.Time, responseSize int, apiErr *apierrors.APIError) {
	status := http.StatusOK
	if apiErr != nil {
		status = apiErr.HTTPStatus
	}
	s.pipeline.Finish(c.Request.Context(), env, endpoint, c.Request.Method, status, responseSize, time.Since(start), apiErr)
}

// respondError sends a standardized error response
func respondError(c *gin.Context, err *apierrors.APIError) {
	middleware.RespondWithError(c, err)
}
