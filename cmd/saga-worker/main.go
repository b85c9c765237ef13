// The saga worker runs the booking saga handlers against a Kafka bus,
// separately from the HTTP server. Useful when step processing should
// scale independently of the API.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ticketd/internal/app"
	"ticketd/pkg/config"
	"ticketd/pkg/logger"
	"ticketd/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// An in-process bus cannot be shared across binaries, so a separate
	// worker only makes sense against Kafka.
	if cfg.Store.BusBackend != config.BusBackendKafka {
		log.Fatalf("saga worker requires STORE_BUS_BACKEND=kafka, got %q", cfg.Store.BusBackend)
	}

	logCfg := &logger.Config{
		Level:       "info",
		ServiceName: cfg.App.Name + "-worker",
		Development: cfg.IsDevelopment(),
	}
	if cfg.App.Debug {
		logCfg.Level = "debug"
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("starting saga worker",
		zap.String("store_backend", cfg.Store.Backend),
		zap.Strings("brokers", cfg.Kafka.Brokers))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName + "-worker",
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Fatal("failed to initialize telemetry", zap.Error(err))
	}

	components, err := app.Build(ctx, cfg)
	if err != nil {
		appLog.Fatal("failed to build components", zap.Error(err))
	}
	defer components.Close()

	if err := components.Bus.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		appLog.Error("bus stopped", zap.Error(err))
		os.Exit(1)
	}
	appLog.Info("saga worker stopped")
}
