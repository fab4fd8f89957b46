package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"ai-report-be/internal/bootstrap"
	"ai-report-be/internal/config"
	"ai-report-be/internal/pkg/logger"
	"ai-report-be/internal/server"
	"ai-report-be/internal/service"
	"ai-report-be/internal/tracer"
	"ai-report-be/pkg/database"
	"ai-report-be/pkg/events"

	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load configuration
	cfg := config.Load()

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	defer sysLogger.Sync()

	// 2. Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer(sysLogger)
	defer shutdownTracer(context.Background())

	// 3. Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.App.Environment != "production")
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 4. Dependencies
	container, err := bootstrap.NewContainer(gormDB, cfg, sysLogger)
	if err != nil {
		log.Panicf("Unable to build container: %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, container)
	g, gctx := errgroup.WithContext(ctx)

	// 5. Background workers
	g.Go(func() error {
		return container.ConsumerService.Consume(gctx)
	})
	if container.NatsSubscriber != nil {
		g.Go(func() error {
			err := container.NatsSubscriber.Subscribe(
				gctx,
				events.Subject(events.ReportRequested),
				"report-service",
				service.NewReportRequestHandler(container.ReportService, sysLogger),
			)
			if err != nil {
				// Event-driven runs are optional; the HTTP API keeps working.
				sysLogger.Warn("MAIN", "Report request subscription failed", map[string]interface{}{"error": err.Error()})
			}
			return nil
		})
	}

	// 6. HTTP server
	g.Go(func() error {
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		sysLogger.Error("MAIN", "Server stopped with error", map[string]interface{}{"error": err.Error()})
	}
	sysLogger.Info("MAIN", "Server stopped", nil)
}
