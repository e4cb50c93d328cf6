package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"heatpulse/api/analytics"
	"heatpulse/api/config"
	"heatpulse/api/database"
	"heatpulse/api/handlers"
	"heatpulse/api/ingest"
	"heatpulse/api/middleware"
	"heatpulse/api/observability"
	"heatpulse/api/session"
	"heatpulse/api/store"
	"heatpulse/api/utils"
)

const (
	shutdownTimeout = 5 * time.Second
	limiterIdleTTL  = time.Hour
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

// accountStores are the relational stores behind auth, sites and sessions.
type accountStores struct {
	users    store.UserStore
	sites    store.SiteStore
	sessions store.SessionStore
	close    func()
}

func openAccountStores(cfg config.PostgresConfig) (*accountStores, error) {
	if cfg.URL == "" {
		log.Warn().Msg("postgres url is empty, keeping users, sites and sessions in memory")
		return &accountStores{
			users:    store.NewMemoryUserStore(),
			sites:    store.NewMemorySiteStore(),
			sessions: store.NewMemorySessionStore(),
			close:    func() {},
		}, nil
	}

	dbClient, err := database.NewPostgresDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL database: %w", err)
	}
	return &accountStores{
		users:    store.NewPostgresUserStore(dbClient.DB),
		sites:    store.NewPostgresSiteStore(dbClient.DB),
		sessions: store.NewPostgresSessionStore(dbClient.DB),
		close:    dbClient.Close,
	}, nil
}

func openEventStore(cfg *config.Config) (store.EventStore, func(), error) {
	switch cfg.EventStore.Backend {
	case "clickhouse":
		chClient, err := database.NewClickHouseDB(cfg.ClickHouse)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize ClickHouse database: %w", err)
		}
		return store.NewClickHouseEventStore(chClient), chClient.Close, nil
	case "sqlite":
		sqliteClient, err := database.NewSQLiteDB(cfg.EventStore.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite database: %w", err)
		}
		return store.NewSQLiteEventStore(sqliteClient), func() {
			if err := sqliteClient.Close(); err != nil {
				log.Error().Err(err).Msg("error closing SQLite database")
			}
		}, nil
	case "memory":
		log.Warn().Msg("events are kept in memory and lost on restart")
		return store.NewMemoryEventStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown event store backend %q", cfg.EventStore.Backend)
	}
}

func serve(cfg *config.Config) error {
	setupLogger(cfg.Server.LogLevel, cfg.Server.GinMode)
	gin.SetMode(cfg.Server.GinMode)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	events, closeEvents, err := openEventStore(cfg)
	if err != nil {
		return err
	}
	defer closeEvents()

	accounts, err := openAccountStores(cfg.Postgres)
	if err != nil {
		return err
	}
	defer accounts.close()

	tracker := session.NewTracker(session.Config{TTL: cfg.Session.TTL}, accounts.sessions, metrics)
	deps := &handlers.RouterDeps{
		RateLimit:  cfg.RateLimit,
		JWTManager: utils.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Ingester:   ingest.NewIngester(ingest.NewValidator(ingest.Config{MaxEvents: cfg.Ingest.MaxEvents}), events, metrics),
		Tracker:    tracker,
		Engine:     analytics.NewEngine(events, metrics),
		UserStore:  accounts.users,
		SiteStore:  accounts.sites,
		Metrics:    metrics,
		Gatherer:   reg,
	}
	router := handlers.NewRouter(deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go tracker.RunSweeper(ctx, cfg.Session.SweepInterval)
	go pruneLimiters(ctx, deps)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("event_store", cfg.EventStore.Backend).Msg("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed to start: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exiting")
	return nil
}

// pruneLimiters drops rate-limit buckets of clients that went quiet.
func pruneLimiters(ctx context.Context, deps *handlers.RouterDeps) {
	if deps.EventsLimiter == nil && deps.GeneralLimiter == nil {
		return
	}
	ticker := time.NewTicker(limiterIdleTTL / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, rl := range []*middleware.RateLimiter{deps.EventsLimiter, deps.GeneralLimiter} {
				if rl != nil {
					rl.Prune(limiterIdleTTL)
				}
			}
		}
	}
}
