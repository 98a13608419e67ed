package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cardforge/cardforge-api/internal/config"
	"github.com/cardforge/cardforge-api/internal/gateway"
	"github.com/cardforge/cardforge-api/internal/generation"
	"github.com/cardforge/cardforge-api/internal/limiter"
	"github.com/cardforge/cardforge-api/internal/orchestrator"
	"github.com/cardforge/cardforge-api/internal/platform/gemini"
	"github.com/cardforge/cardforge-api/internal/platform/logger"
	"github.com/cardforge/cardforge-api/internal/platform/postgres"
	"github.com/cardforge/cardforge-api/internal/service/auth"
	"github.com/cardforge/cardforge-api/internal/store"
	"github.com/cardforge/cardforge-api/internal/sweeper"
)

const shutdownTimeout = 15 * time.Second

// application holds the wired dependency graph for the server process.
type application struct {
	config       *config.Config
	logger       *slog.Logger
	db           *sql.DB
	sessionStore store.SessionStore
	auditStore   store.AuditStore
	engine       generation.Engine
	verifier     auth.Verifier
	limiter      *limiter.Limiter
	gateway      *gateway.Gateway
	orchestrator *orchestrator.Orchestrator
	sweeper      *sweeper.Sweeper
}

// initializeApp loads configuration and wires every component together.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("model", cfg.Generation.ModelName))

	db, err := openDatabase(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	sessionStore := postgres.NewSessionStore(db, log)
	auditStore := postgres.NewAuditStore(db, log)

	engine, err := gemini.NewEngine(context.Background(), log, cfg.Generation, auditStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation engine: %w", err)
	}

	verifier, err := auth.NewJWTVerifier(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}
	lim := limiter.New(cfg.Limits)

	gw := gateway.New(log, cfg.Gateway, verifier)
	orch := orchestrator.New(log, sessionStore, engine, lim, gw, cfg.Generation.SessionTimeout)
	gw.SetHandler(orch)

	return &application{
		config:       cfg,
		logger:       log,
		db:           db,
		sessionStore: sessionStore,
		auditStore:   auditStore,
		engine:       engine,
		verifier:     verifier,
		limiter:      lim,
		gateway:      gw,
		orchestrator: orch,
		sweeper:      sweeper.New(log, sessionStore, cfg.Sweeper),
	}, nil
}

// openDatabase opens and verifies the postgres connection pool.
func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// run starts the background workers and the HTTP server, then blocks until
// a shutdown signal arrives and everything has drained.
func (app *application) run() error {
	app.sweeper.Start()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("server listening", slog.Int("port", app.config.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdownCh:
		app.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		app.logger.Error("server failed", slog.String("error", err.Error()))
		return err
	}

	return app.shutdown(server)
}

// shutdown drains the server in dependency order: stop accepting HTTP
// traffic, fail active generations, close realtime connections, stop the
// sweeper, close the pool.
func (app *application) shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		app.logger.Error("http server shutdown failed", slog.String("error", err.Error()))
	}

	if err := app.orchestrator.Shutdown(ctx); err != nil {
		app.logger.Error("orchestrator shutdown incomplete", slog.String("error", err.Error()))
	}

	app.gateway.Close()
	app.sweeper.Stop()

	if err := app.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	app.logger.Info("shutdown complete")
	return nil
}
