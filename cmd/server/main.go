package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/api"
	"github.com/andresuchdata/autopo-replenish/internal/cache"
	"github.com/andresuchdata/autopo-replenish/internal/config"
	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/metrics"
	"github.com/andresuchdata/autopo-replenish/internal/repository/postgres"
	"github.com/andresuchdata/autopo-replenish/internal/scheduler"
	"github.com/andresuchdata/autopo-replenish/internal/service"
	"github.com/andresuchdata/autopo-replenish/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	logger.Configure(cfg.Log.Format, cfg.Log.Level)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	coverageCfg, err := cfg.CoverageConfig()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid forecast configuration")
	}

	db, err := postgres.NewDB(&cfg.Database, postgres.DriverPQ)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	coverageCache, err := cache.NewCoverageCache(cfg.Cache)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialise coverage cache")
	}

	m := metrics.New()
	history := postgres.NewHistoryRepository(db)
	svc, err := service.NewReplenishmentService(history, coverageCache, coverageCfg,
		service.WithWriter(history),
		service.WithCoverageStore(postgres.NewCoverageStore(db)),
		service.WithMetrics(m),
		service.WithDefaults(cfg.RequirementConfig()),
	)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to build replenishment service")
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(logger.Log, time.Duration(cfg.Batch.TimeoutSeconds)*time.Second)
		job := scheduler.NewCoverageRefreshJob(svc, domain.ProductFilter{}, cfg.Batch.MaxConcurrency)
		if err := sched.AddJob(cfg.Scheduler.RefreshSpec, job); err != nil {
			logger.Log.Fatal().Err(err).Str("schedule", cfg.Scheduler.RefreshSpec).Msg("Invalid refresh schedule")
		}
		sched.Start()
	}

	router := api.NewRouter(&api.Services{Replenishment: svc, Metrics: m}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}

	// in-flight batches get as long as a batch may run, capped at 30s
	grace := min(time.Duration(cfg.Batch.TimeoutSeconds)*time.Second, 30*time.Second)
	if grace <= 0 {
		grace = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
