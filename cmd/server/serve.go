package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jengzang/safety-backend-go/internal/analysis/risk"
	"github.com/jengzang/safety-backend-go/internal/api"
	"github.com/jengzang/safety-backend-go/internal/config"
	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/graph"
	"github.com/jengzang/safety-backend-go/internal/handler"
	"github.com/jengzang/safety-backend-go/internal/observability"
	"github.com/jengzang/safety-backend-go/internal/repository"
	"github.com/jengzang/safety-backend-go/internal/routing"
	"github.com/jengzang/safety-backend-go/internal/service"
)

const version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signalContext()
	defer stop()

	shutdownTracing, err := observability.Init(ctx, observability.Config{
		ServiceName:    "safety-backend",
		ServiceVersion: version,
		TraceExporter:  cfg.TraceExporter,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("[Tracing] Shutdown failed: %v", err)
		}
	}()

	scores := repository.NewRiskScoreRepository(db)
	incidents := repository.NewIncidentRepository(db)
	signals := repository.NewSignalRepository(db)
	alerts := repository.NewAlertRepository(db)
	runs := repository.NewJobRunRepository(db)

	aggregation := service.NewAggregationService(db, runs, risk.JobName, cfg.AggregationWorkers)
	handlers := api.Handlers{
		Safety: handler.NewSafetyHandler(
			service.NewScoreService(scores),
			service.NewHeatmapService(scores),
			service.NewContextService(incidents, signals, alerts),
			service.NewAlertService(alerts),
		),
		Route: handler.NewRouteHandler(service.NewRouteService(
			routing.NewEngine(newGraphProvider(cfg), scores, routingConfig(cfg)),
		)),
		Admin: handler.NewAdminHandler(aggregation),
	}

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           api.SetupRouter(cfg, handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.AggregationInterval > 0 {
		go scheduleAggregation(ctx, aggregation, cfg.AggregationInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newGraphProvider(cfg *config.Config) graph.Provider {
	var provider graph.Provider = graph.NewOverpassProvider(cfg.OverpassURL, &http.Client{Timeout: cfg.GraphTimeout})
	if cfg.GraphCacheTTL > 0 {
		provider = graph.NewCachingProvider(provider, cfg.GraphCacheTTL, cfg.GraphCacheSize, cfg.GraphTimeout)
	}
	return provider
}

func routingConfig(cfg *config.Config) routing.Config {
	rc := routing.DefaultConfig()
	rc.MaxDeltaDeg = cfg.MaxRouteDelta
	rc.MaxBBoxSpanDeg = cfg.MaxRouteDelta
	rc.MaxBBoxAreaKm2 = cfg.MaxBBoxAreaKm2
	rc.GraphTimeout = cfg.GraphTimeout
	rc.Alpha = cfg.RouteAlpha
	rc.DefaultRisk = cfg.RouteDefaultRisk
	return rc
}

// scheduleAggregation runs an aggregation pass every interval until ctx is done.
// A tick that finds a pass still running is skipped.
func scheduleAggregation(ctx context.Context, svc *service.AggregationService, interval time.Duration) {
	log.Printf("[Aggregation] Scheduled every %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Run(ctx); err != nil {
				if errors.Is(err, service.ErrJobRunning) {
					log.Printf("[Aggregation] Previous pass still running, skipping tick")
					continue
				}
				log.Printf("[Aggregation] Scheduled pass failed: %v", err)
			}
		}
	}
}
