package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	_ "go.uber.org/automaxprocs"

	"github.com/paperfold/paperfold/internal/apikey"
	"github.com/paperfold/paperfold/internal/auth"
	"github.com/paperfold/paperfold/internal/cache"
	"github.com/paperfold/paperfold/internal/config"
	"github.com/paperfold/paperfold/internal/content"
	"github.com/paperfold/paperfold/internal/database"
	"github.com/paperfold/paperfold/internal/docstore"
	"github.com/paperfold/paperfold/internal/logging"
	"github.com/paperfold/paperfold/internal/monitoring"
	"github.com/paperfold/paperfold/internal/pdfops"
	"github.com/paperfold/paperfold/internal/pipeline"
	"github.com/paperfold/paperfold/internal/ratelimit"
	"github.com/paperfold/paperfold/internal/render"
	"github.com/paperfold/paperfold/internal/server"
	"github.com/paperfold/paperfold/internal/usage"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Msg("Starting paperfold API server")

	// Initialize database connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis
	redis, err := cache.New(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redis.Close()

	// Initialize Prometheus metrics
	monitoring.Init()
	if cfg.Monitoring.PrometheusEnabled {
		go monitoring.StartMetricsServer(cfg.Monitoring.PrometheusPort)
	}

	// Launch the headless browser
	engine, err := render.NewEngine(&cfg.Render)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to launch browser")
	}
	defer engine.Close()

	// Key hashing secret is validated at config load; NewHasher
	// re-checks the invariant.
	hasher, err := apikey.NewHasher(cfg.Auth.KeySecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize key hasher")
	}

	keys := apikey.NewStore(db.Pool, redis, cfg.RateLimit.DefaultHourlyQuota)
	ledger := usage.NewLedger(db.Pool)
	docs := docstore.NewStore(db.Pool)
	gate := auth.NewGate(hasher, keys)
	limiter := ratelimit.NewLimiter(ledger)
	resolver := content.NewResolver()
	manip := pdfops.NewManipulator()

	pl := pipeline.New(gate, limiter, resolver, engine, manip, ledger, docs)

	srv := server.NewAPIServer(cfg, db, redis, pl, keys, hasher, ledger, docs, engine.Health)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().
		Str("signal", sig.String()).
		Msg("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
