// cmd/librarydesk/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"librarydesk/internal/circulation"
	"librarydesk/internal/config"
	"librarydesk/internal/demo"
	"librarydesk/internal/journal"
	"librarydesk/internal/telemetry"

	"golang.org/x/time/rate"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := context.Background()
	providers, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("Failed to shut down telemetry: %v", err)
		}
	}()

	logger := telemetry.NewLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	j := journal.New(journal.WithTracerProvider(providers.TracerProvider))
	opts := []circulation.Option{
		circulation.WithLogger(logger),
		circulation.WithJournal(j),
		circulation.WithTracerProvider(providers.TracerProvider),
		circulation.WithMeterProvider(providers.MeterProvider),
	}
	if cfg.RegistrationsPerMinute > 0 {
		limit := rate.Limit(float64(cfg.RegistrationsPerMinute) / 60)
		opts = append(opts, circulation.WithRegistrationLimiter(rate.NewLimiter(limit, cfg.RegistrationBurst)))
	}
	svc := circulation.NewService(opts...)

	if err := demo.Seed(ctx, svc); err != nil {
		return err
	}

	fmt.Println("=== LIBRARY CIRCULATION DESK ===")
	if err := demo.Run(ctx, svc, os.Stdout); err != nil {
		return fmt.Errorf("demo failed: %w", err)
	}

	counters, err := providers.Counters(ctx)
	if err != nil {
		logger.Warn("could not read metrics", slog.Any("error", err))
		return nil
	}
	logger.Info("demo finished",
		slog.Int("journal_events", j.Len()),
		slog.Float64("loans_opened", counters["loans.opened"]),
		slog.Float64("loans_closed", counters["loans.closed"]),
		slog.Float64("borrow_rejected", counters["borrow.rejected"]),
		slog.Float64("fines_charged", counters["fines.charged"]),
	)
	return nil
}
