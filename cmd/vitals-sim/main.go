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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/logger"
	"github.com/smukkama/matricare/internal/timer"
	"github.com/smukkama/matricare/internal/vitals"
	"github.com/smukkama/matricare/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "matricare-vitals-sim")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	rows, err := vitals.LoadCSVFile(cfg.Simulator.CSVPath)
	if err != nil {
		zapLogger.Fatal("Failed to load vitals CSV", zap.String("path", cfg.Simulator.CSVPath), zap.Error(err))
	}
	if len(rows) == 0 {
		zapLogger.Warn("No vitals rows loaded, /api/data will answer 404", zap.String("path", cfg.Simulator.CSVPath))
	}

	sim := vitals.NewSimulator(rows, nil, zapLogger)
	sim.Randomize()

	scheduler := timer.NewScheduler(func(id string, recovered any) {
		zapLogger.Error("Simulator task panicked", zap.String("task", id), zap.Any("panic", recovered))
	})
	scheduler.Start()
	defer scheduler.Stop()

	if err := scheduler.Every("randomize-vitals", cfg.Simulator.UpdateInterval, sim.Randomize); err != nil {
		zapLogger.Fatal("Failed to schedule updates", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/api/data", sim.ServeData)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Simulator.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Simulator server failed", zap.Error(err))
		}
	}()

	zapLogger.Info("Vitals simulator is running",
		zap.Int("port", cfg.Simulator.Port),
		zap.Int("rows", len(rows)),
		zap.Duration("update_interval", cfg.Simulator.UpdateInterval),
	)

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLogger.Info("Shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		zapLogger.Error("Simulator shutdown failed", zap.Error(err))
	}
}
