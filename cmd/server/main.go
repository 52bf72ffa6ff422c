package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/kborae/catalog-crawler/internal/api"
	"github.com/kborae/catalog-crawler/internal/browser"
	"github.com/kborae/catalog-crawler/internal/config"
	"github.com/kborae/catalog-crawler/internal/crawl"
	"github.com/kborae/catalog-crawler/internal/database"
	"github.com/kborae/catalog-crawler/internal/events"
	"github.com/kborae/catalog-crawler/internal/jobs"
	"github.com/kborae/catalog-crawler/internal/ratelimit"
	"github.com/kborae/catalog-crawler/internal/retry"
	"github.com/kborae/catalog-crawler/internal/session"
	"github.com/kborae/catalog-crawler/internal/site/oliveyoung"
)

func main() {
	// Setup logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection
	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	// Redis client for event publishing
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	publisher := events.NewPublisher(redisClient, cfg.Redis.Stream, logger)

	// Browser setup
	browserOpts := browser.DefaultOptions()
	browserOpts.Headless = cfg.Browser.Headless
	browserOpts.Timeout = cfg.Browser.Timeout
	browserOpts.ViewportWidth = cfg.Browser.ViewportWidth
	browserOpts.ViewportHeight = cfg.Browser.ViewportHeight
	browserOpts.AcceptLanguage = cfg.Browser.AcceptLanguage
	browserOpts.TimezoneID = cfg.Browser.TimezoneID
	browserOpts.Locale = cfg.Browser.Locale
	browserOpts.ProxyServer = cfg.Browser.ProxyServer
	browserOpts.BootstrapURL = oliveyoung.BootstrapURL
	browserOpts.ChallengeMarker = oliveyoung.ChallengeMarker
	browserOpts.ChallengePollCount = cfg.Session.ChallengePollCount
	browserOpts.ChallengePollInterval = cfg.Session.ChallengePollInterval
	browserOpts.StabilizationDelay = cfg.Session.StabilizationDelay
	browserOpts.NavigationTimeout = cfg.Crawler.NavigationTimeout
	browserOpts.Rules = oliveyoung.Rules()

	b, err := browser.New(browserOpts)
	if err != nil {
		logger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	// Session and crawl services
	sessionStore := session.NewStore(cfg.Session.StateFile, logger)
	sessionManager := session.NewManager(sessionStore, b, session.Config{
		RequiredCookies:     cfg.Session.RequiredCookies,
		FallbackCookie:      cfg.Session.FallbackCookie,
		ExpiryBuffer:        cfg.Session.ExpiryBuffer,
		BootstrapRetries:    cfg.Session.BootstrapRetries,
		BootstrapRetryDelay: cfg.Session.BootstrapRetryDelay,
	}, logger)

	fetcher := oliveyoung.NewFetcher(cfg.Crawler.NavigationTimeout, logger)
	orchestrator := crawl.New(
		sessionManager,
		fetcher,
		ratelimit.NewJitterDelay(cfg.Crawler.BatchDelayMin, cfg.Crawler.BatchDelayMax),
		crawl.Options{
			BatchSize:   cfg.Crawler.BatchSize,
			Concurrency: cfg.Crawler.ConcurrencyLimit,
			Retry: retry.Policy{
				MaxAttempts: cfg.Crawler.MaxRetries,
				Delay:       cfg.Crawler.RetryDelay,
			},
		},
		logger,
	)

	jobRepo := database.NewJobRepo(db)
	productRepo := database.NewProductRepo(db)
	jobManager := jobs.NewManager(jobRepo, productRepo, orchestrator, publisher, logger)

	// Start job worker
	go jobManager.StartWorker(ctx)

	// Initialize API handlers
	handlers := api.NewHandlers(jobManager, productRepo, logger)

	// Setup Chi router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		health := map[string]interface{}{
			"status": "ok",
		}
		status := http.StatusOK

		if err := db.Ping(r.Context()); err != nil {
			health["status"] = "error"
			health["message"] = "database unreachable"
			status = http.StatusServiceUnavailable
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(health)
	})

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		handlers.Routes(r)
	})

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
