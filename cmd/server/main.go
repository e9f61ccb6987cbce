package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/franckalain/grpmnutrition/internal/advisor"
	"github.com/franckalain/grpmnutrition/internal/auth"
	"github.com/franckalain/grpmnutrition/internal/config"
	"github.com/franckalain/grpmnutrition/internal/database"
	"github.com/franckalain/grpmnutrition/internal/grpm"
	"github.com/franckalain/grpmnutrition/internal/logging"
	"github.com/franckalain/grpmnutrition/internal/scoring"
	"github.com/franckalain/grpmnutrition/internal/server"
	"github.com/franckalain/grpmnutrition/internal/service"
	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	ctx := context.Background()

	// A missing or malformed index degrades scoring instead of stopping startup.
	index, indexErr := grpm.NewLoader(cfg.GRPM.IndexPath, logger).LoadOrEmpty()
	if indexErr != nil {
		logger.Warn("scoring is degraded until the GRPM index is fixed", "path", cfg.GRPM.IndexPath)
	}

	engine, err := scoring.New(index,
		scoring.WithBaseline(cfg.Scoring.Baseline),
		scoring.WithThresholds(scoring.Thresholds{
			Excellent: cfg.Scoring.Excellent,
			Good:      cfg.Scoring.Good,
			Fair:      cfg.Scoring.Fair,
		}),
	)
	if err != nil {
		logger.Error("failed to create scoring engine", "error", err)
		os.Exit(1)
	}

	db, err := database.NewSQLiteDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	adv := buildAdvisor(ctx, logger, cfg.Advisor)
	if c, ok := adv.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				logger.Warn("closing advisor failed", "error", err)
			}
		}()
	}

	secret := cfg.Auth.TokenSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("no token secret configured, sessions will not survive a restart")
	}
	issuer, err := auth.NewIssuer(secret, cfg.Auth.TokenTTL.Std())
	if err != nil {
		logger.Error("failed to create token issuer", "error", err)
		os.Exit(1)
	}

	tracker, err := service.NewTracker(service.Options{
		DB:       db,
		Engine:   engine,
		Advisor:  adv,
		Issuer:   issuer,
		IndexErr: indexErr,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create tracker", "error", err)
		os.Exit(1)
	}

	srv := server.New(logger, cfg.Server, tracker)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// buildAdvisor falls back to local advice when the configured advisor cannot load.
func buildAdvisor(ctx context.Context, logger *slog.Logger, cfg config.AdvisorConfig) advisor.Advisor {
	adv, err := advisor.New(cfg)
	if err == nil {
		err = adv.Load(ctx)
	}
	if err != nil {
		logger.Warn("advisor unavailable, using local advice", "type", cfg.Type, "error", err)
		return advisor.NewLocal()
	}
	logger.Info("advisor ready", "type", cfg.Type)
	return adv
}
