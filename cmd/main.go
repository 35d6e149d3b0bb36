package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PocketPalCo/receipts-service/config"
	"github.com/PocketPalCo/receipts-service/internal/app"
	"github.com/PocketPalCo/receipts-service/internal/infra/postgres"
	"github.com/PocketPalCo/receipts-service/internal/infra/server"
	"github.com/PocketPalCo/receipts-service/pkg/logger"
)

func main() {
	mainContext, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defaultLogger := logger.NewLogger(&cfg)
	var loggerProvider interface{ Shutdown(context.Context) error }
	if cfg.OtlpEndpoint != "" {
		observable, provider, err := logger.NewObservableLogger(&cfg)
		if err != nil {
			defaultLogger.Warn("OTLP log export disabled", "error", err)
		} else {
			defaultLogger = observable
			loggerProvider = provider
		}
	}
	slog.SetDefault(defaultLogger)

	var conn *pgxpool.Pool
	if cfg.DbEnabled {
		conn, err = postgres.Init(cfg)
		if err != nil {
			slog.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	srv, err := server.New(mainContext, &cfg, conn)
	if err != nil {
		slog.Error("failed to initialize server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if loggerProvider != nil {
		srv.SetLoggerProvider(loggerProvider)
	}

	db := srv.DB()
	if db != nil {
		if err := postgres.EnsureSchema(mainContext, db); err != nil {
			slog.Error("failed to prepare database schema", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	components, err := app.Build(mainContext, cfg, db, defaultLogger)
	if err != nil {
		slog.Error("failed to build receipt pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer components.Close()

	srv.Start(components.Service)

	<-mainContext.Done()
	srv.Shutdown()
}
