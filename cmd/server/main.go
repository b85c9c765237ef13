package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ticketd/internal/app"
	"ticketd/internal/handler"
	"ticketd/internal/service"
	"ticketd/internal/worker"
	"ticketd/pkg/config"
	"ticketd/pkg/logger"
	"ticketd/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       "info",
		ServiceName: cfg.App.Name,
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
	appLog.Info("starting ticketd server",
		zap.String("version", cfg.App.Version),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("bus_backend", cfg.Store.BusBackend))

	ctx := context.Background()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
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

	busCtx, stopBus := context.WithCancel(ctx)
	defer stopBus()
	go func() {
		if err := components.Bus.Start(busCtx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("bus stopped", zap.Error(err))
		}
	}()

	bookingService := service.NewBookingService(
		components.Bookings, components.Events, components.Inventory,
		components.Bus, cfg.Booking.HoldTTL, nil)
	eventService := service.NewEventService(components.Events, components.Inventory, nil)
	adminService := service.NewAdminService(components.Bookings)

	var sweeper *worker.HoldSweeper
	if cfg.Booking.SweepEnabled {
		sweeper = worker.NewHoldSweeper(components.Inventory, components.Events, cfg.Booking.SweepInterval)
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware(cfg.OTel.ServiceName))
	}

	handler.RegisterRoutes(router, &handler.RouterConfig{
		Events:   handler.NewEventHandler(eventService),
		Bookings: handler.NewBookingHandler(bookingService),
		Admin:    handler.NewAdminHandler(adminService),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLog.Info(fmt.Sprintf("HTTP server listening on %s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("server shutdown failed", zap.Error(err))
	}
	stopBus()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Error("telemetry shutdown failed", zap.Error(err))
	}
	appLog.Info("server stopped")
}
