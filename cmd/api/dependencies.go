package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gorilla/sessions"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conciergelab/concierge-api/internal/domain/booking"
	"github.com/conciergelab/concierge-api/internal/domain/explanation"
	"github.com/conciergelab/concierge-api/internal/domain/recommendation"
	"github.com/conciergelab/concierge-api/internal/domain/session"
	sessionhandler "github.com/conciergelab/concierge-api/internal/domain/session/handler"
	"github.com/conciergelab/concierge-api/internal/llm"
	"github.com/conciergelab/concierge-api/internal/loader"
	"github.com/conciergelab/concierge-api/pkg/config"
)

// Dependencies holds all application dependencies.
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	Pool *pgxpool.Pool

	// Repositories
	BookingRepo booking.Repository

	// Services
	Recommender recommendation.Service
	Explainer   explanation.Service
	SessionSvc  session.Service

	// Handlers
	SessionHandler *sessionhandler.SessionHandler
}

// InitDependencies initializes all application dependencies.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initBookingStore(ctx); err != nil {
		return nil, fmt.Errorf("failed to init booking store: %w", err)
	}
	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initBookingStore connects to Postgres when a DSN is configured, otherwise
// loads the loyalty CSV into the in-memory store.
func (d *Dependencies) initBookingStore(ctx context.Context) error {
	if d.Config.Database.URL != "" {
		pool, err := pgxpool.New(ctx, d.Config.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		d.Pool = pool
		d.BookingRepo = booking.NewPostgresRepository(pool, d.Logger)
		d.Logger.Info("booking store connected", "backend", "postgres")
		return nil
	}

	records, err := loader.LoadFile(d.Config.Database.BookingsCSV)
	if err != nil {
		return fmt.Errorf("failed to load bookings CSV: %w", err)
	}
	d.BookingRepo = booking.NewMemoryRepository(records)
	d.Logger.Info("booking store loaded",
		"backend", "memory",
		"path", d.Config.Database.BookingsCSV,
		"records", len(records))
	return nil
}

func (d *Dependencies) initServices() {
	chatClient := llm.NewOpenAIChatClient(
		d.Config.LLM.APIKey,
		d.Config.LLM.BaseURL,
		d.Config.LLM.Model,
	)

	policy := explanation.DefaultRetryPolicy()
	if d.Config.LLM.MaxAttempts > 0 {
		policy.MaxAttempts = uint64(d.Config.LLM.MaxAttempts)
	}
	if d.Config.LLM.InitialBackoff > 0 {
		policy.InitialBackoff = d.Config.LLM.InitialBackoff
	}
	if d.Config.LLM.AttemptTimeout > 0 {
		policy.AttemptTimeout = d.Config.LLM.AttemptTimeout
	}

	d.Recommender = recommendation.NewService(d.BookingRepo, d.Logger)
	d.Explainer = explanation.NewService(chatClient, policy, d.Logger)
	d.SessionSvc = session.NewService(d.Recommender, d.Explainer, d.Logger)

	d.Logger.Info("services initialized", "llm_model", d.Config.LLM.Model)
}

func (d *Dependencies) initHandlers() {
	store := sessions.NewCookieStore([]byte(d.Config.Session.CookieSecret))
	store.Options.HttpOnly = true

	d.SessionHandler = sessionhandler.NewSessionHandler(d.SessionSvc, store, d.Logger)
	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources.
func (d *Dependencies) Cleanup() {
	if d.Pool != nil {
		d.Pool.Close()
	}
	d.Logger.Info("cleanup completed")
}
