package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog/log"

	"syncq/adapters"
	"syncq/api"
	"syncq/configs"
	"syncq/db"
	"syncq/jobs/cleanup"
	"syncq/jobs/dispatch"
	"syncq/jobs/maintenance"
	jobsmetrics "syncq/jobs/metrics"
	"syncq/metrics"
	"syncq/ratelimit"
	"syncq/services"
	"syncq/utils"
)

func main() {
	authSecret := getAuthSecret()
	if authSecret == "" {
		log.Fatal().Msg("auth secret is not provided: either set SYNCQ_AUTH_SECRET environment variable or pass it as a command line argument --auth-secret")
		panic("auth secret is not provided: either set SYNCQ_AUTH_SECRET environment variable or pass it as a command line argument --auth-secret")
	}

	dbPath, err := utils.GetOrCreateDefaultDBPath()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get or create default database path")
		panic(err)
	}

	runMigrations(dbPath)

	appConfigs := configs.NewAppConfig()

	syncRepo, err := db.NewSQLiteRepo(dbPath, appConfigs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create SQLite repository")
		panic(err)
	}
	defer syncRepo.Close()

	metricsService := metrics.NewMetricsService(appConfigs.MetricsEnabled)

	limiter := ratelimit.NewLimiter(appConfigs.RateLimit)
	defer limiter.Close()

	registry := adapters.NewRegistry(appConfigs, limiter)

	queueService := services.NewQueueService(syncRepo, registry, appConfigs, metricsService)
	ingestService := services.NewIngestService(queueService, syncRepo, appConfigs)
	activityService := services.NewActivityService(syncRepo, appConfigs, metricsService)
	mappingsService := services.NewMappingsService(syncRepo)
	monitoringService := services.NewMonitoringService(syncRepo)
	testService := services.NewTestService(registry)

	queueDispatchJob := dispatch.NewQueueDispatchJob(queueService, appConfigs)
	defer queueDispatchJob.Close()
	staleItemsReclaimJob := cleanup.NewStaleItemsReclaimJob(queueService, appConfigs.JobsIntervals.StaleItemsReclaimMs)
	defer staleItemsReclaimJob.Close()
	terminalItemsPurgeJob := cleanup.NewTerminalItemsPurgeJob(queueService, appConfigs.JobsIntervals.TerminalItemsPurgeMs)
	defer terminalItemsPurgeJob.Close()
	logsPurgeJob := cleanup.NewLogsPurgeJob(activityService, appConfigs.JobsIntervals.LogsPurgeMs)
	defer logsPurgeJob.Close()
	dbOptimizationJob := maintenance.NewDbOptimizationJob(syncRepo, appConfigs.JobsIntervals.DbOptimizationMs, appConfigs.JobsIntervals.DbOptimizationMs-1000)
	defer dbOptimizationJob.Close()

	if appConfigs.MetricsEnabled {
		queueDepthMetricsJob := jobsmetrics.NewQueueDepthMetricsJob(metricsService, syncRepo, appConfigs.JobsIntervals.QueueDepthMetricsMs)
		defer queueDepthMetricsJob.Close()
	}

	shutdownCh := make(chan struct{})

	syncRouter := api.NewRouter(queueService, ingestService, activityService, mappingsService, monitoringService, testService, appConfigs, authSecret)

	syncServer := &http.Server{
		Addr:              appConfigs.ServerConfig.Addr,
		Handler:           http.TimeoutHandler(syncRouter.NewRouter(), appConfigs.ServerConfig.Timeouts.Handle, "timeout"),
		WriteTimeout:      appConfigs.ServerConfig.Timeouts.Write,
		ReadTimeout:       appConfigs.ServerConfig.Timeouts.Read,
		ReadHeaderTimeout: appConfigs.ServerConfig.Timeouts.ReadHeader,
		IdleTimeout:       appConfigs.ServerConfig.Timeouts.Idle,
	}

	go func() {
		err := syncServer.ListenAndServe()
		if err != nil {
			close(shutdownCh)
			if errors.Is(err, http.ErrServerClosed) {
				log.Info().Msg("server shutdown")
			} else {
				log.Warn().Err(err).Msg("server failed")
			}
		}
	}()

	for range shutdownCh {
		log.Info().Msg("server shutdown requested")
		err := syncServer.Shutdown(context.Background())
		if err != nil {
			err := syncServer.Close()
			if err != nil {
				log.Warn().Err(err).Msg("failed to close server")
				return
			}
		}
	}
}

func getAuthSecret() string {
	authSecret := os.Getenv("SYNCQ_AUTH_SECRET")
	if authSecret != "" {
		return authSecret
	}

	var flagAuthSecret string
	flag.StringVar(&flagAuthSecret, "auth-secret", "", "Authentication secret")
	flag.Parse()

	return flagAuthSecret
}

func runMigrations(dbPath string) {
	// x-no-tx-wrap=true to disable transaction wrapping for PRAGMA statements, as otherwise it fails:
	// https://github.com/golang-migrate/migrate/issues/346
	dbURL := fmt.Sprintf("sqlite3://file:%s?cache=shared&mode=rwc&x-no-tx-wrap=true", dbPath)

	m, err := migrate.New("file://db/migrations", dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migration instance")
		panic(err)
	}

	err = m.Up()
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no migrations to run")
			return
		}
		log.Fatal().Err(err).Msg("failed to run migrations")
		panic(fmt.Errorf("failed to run migrations: %w", err))
	} else {
		log.Info().Msg("migrations applied successfully")
	}
}
