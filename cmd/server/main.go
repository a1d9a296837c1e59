// Package main provides the API server entry point for the paper trading agent.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paper-trader/internal/api"
	"github.com/paper-trader/internal/config"
	"github.com/paper-trader/internal/gateway"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/pricing"
	"github.com/paper-trader/internal/reporting"
	"github.com/paper-trader/internal/service"
	"github.com/paper-trader/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer func() {
		_ = redis.Close() // nolint:errcheck // cleanup in defer
	}()

	// ClickHouse holds valuation history only; the agent stays functional
	// without it.
	var valuationHistory service.ValuationHistory
	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Warn("ClickHouse unavailable, valuation history disabled")
	} else {
		defer func() {
			_ = clickhouse.Close() // nolint:errcheck // cleanup in defer
		}()
		valuationHistory = storage.NewValuationHistoryRepository(clickhouse)
	}

	logger.Info("Database connections established")

	// Repositories
	positionRepo := storage.NewPositionRepository(postgres)
	tradeRepo := storage.NewTradeRepository(postgres)
	allocationRepo := storage.NewAllocationRepository(postgres)
	noteRepo := storage.NewNoteRepository(postgres)

	// Venue gateway, token registry and price resolver
	venue := gateway.NewClient(&cfg.Gateway)
	registry := gateway.NewTokenRegistry(venue, redis, cfg.Pricing.RegistryTTL)
	resolver := pricing.NewResolver(&cfg.Pricing, venue, registry, nil)

	reporter := reporting.NewClient(&cfg.Reporting)
	gate := service.NewFreshnessGate(nil)

	// Services
	logger.Info("Initializing services...")

	portfolioService := service.NewPortfolioService(
		positionRepo,
		tradeRepo,
		noteRepo,
		cfg.Portfolio.BaseToken,
		cfg.Portfolio.SeedBalance,
	)

	tradeService := service.NewTradeService(
		positionRepo,
		resolver,
		registry,
		noteRepo,
		reporter,
		gate,
		cfg.Portfolio.BaseToken,
	)

	pnlService := service.NewPnLService(
		positionRepo,
		resolver,
		valuationHistory,
		reporter,
		gate,
		cfg.Portfolio.BaseToken,
		nil,
	)

	allocationService := service.NewAllocationService(allocationRepo, noteRepo, pnlService)

	// Seed the ledger on first run.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := portfolioService.Initialize(startupCtx); err != nil {
		cancelStartup()
		logger.WithError(err).Fatal("Failed to seed portfolio")
	}
	cancelStartup()

	logger.Info("Services initialized")

	serverConfig := api.DefaultServerConfig(cfg.Server.Host, cfg.Server.Port)
	server := api.NewServer(
		serverConfig,
		tradeService,
		pnlService,
		allocationService,
		portfolioService,
		resolver,
		venue,
	)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
