package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/motorlot/marketplace-api/internal/config"
	"github.com/motorlot/marketplace-api/internal/events"
	"github.com/motorlot/marketplace-api/internal/http/router"
	"github.com/motorlot/marketplace-api/internal/inflight"
	"github.com/motorlot/marketplace-api/internal/listings"
	"github.com/motorlot/marketplace-api/internal/observability"
	"github.com/motorlot/marketplace-api/internal/platform/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.New(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	deps := router.Dependencies{
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	if cfg.DatabaseURL != "" {
		db, err := listings.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		store := listings.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		deps.Store = store
		logger.Info("listing store ready", slog.String("backend", "postgres"))
	}

	if cfg.RedisAddr != "" {
		client, err := inflight.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Guard = inflight.NewRedisGuard(client, cfg.InFlightTTL)
		logger.Info("in-flight guard ready", slog.String("backend", "redis"))
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			MaxAttempts:  3,
			WriteTimeout: 5 * time.Second,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("close kafka publisher", slog.Any("error", err))
			}
		}()
		deps.Publisher = publisher
		logger.Info("transition publisher ready", slog.String("backend", "kafka"), slog.String("topic", cfg.KafkaTopic))
	}

	handler, err := router.New(cfg, deps)
	if err != nil {
		return err
	}

	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("api listening", slog.String("addr", addr), slog.String("env", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("api shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
