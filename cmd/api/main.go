package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/protardio/treasury-swap/internal/api/middleware"
	"github.com/protardio/treasury-swap/internal/api/server"
	"github.com/protardio/treasury-swap/internal/config"
	"github.com/protardio/treasury-swap/internal/domain"
	"github.com/protardio/treasury-swap/internal/engine"
	"github.com/protardio/treasury-swap/internal/fee"
	"github.com/protardio/treasury-swap/internal/logger"
	"github.com/protardio/treasury-swap/internal/rarity"
	"github.com/protardio/treasury-swap/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create shutdown context with timeout
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "api-server",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Treasury Swap API")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Run schema migrations
	if err := store.AutoMigrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to migrate database schema", zap.Error(err))
	}

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Build the fee calculator from the configured schedule
	feeConfig := fee.Config{
		BaseFeeEth: cfg.Swap.BaseFeeEth,
		TierValues: map[domain.RarityTier]float64{
			domain.TierCommon:    cfg.Swap.TierValueCommon,
			domain.TierUncommon:  cfg.Swap.TierValueUncommon,
			domain.TierRare:      cfg.Swap.TierValueRare,
			domain.TierLegendary: cfg.Swap.TierValueLegendary,
		},
		Policy: fee.Policy(cfg.Swap.FeePolicy),
	}

	rarityParams := rarity.Params{
		TotalSupply:     cfg.Rarity.TotalSupply,
		ScaleDivisor:    cfg.Rarity.ScaleDivisor,
		ScaleMultiplier: cfg.Rarity.ScaleMultiplier,
	}

	// Initialize the swap engine
	swapEngine := engine.New(dataStore, fee.NewCalculator(feeConfig), rarityParams, engine.Config{
		IntentTTL:       cfg.Swap.IntentTTL,
		RateLimitMax:    cfg.Swap.RateLimitMax,
		RateLimitWindow: cfg.Swap.RateLimitWindow,
	})

	// Create server config
	serverConfig := server.Config{
		Debug:           cfg.Debug,
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:     time.Duration(cfg.Server.IdleTimeout) * time.Second,
		DefaultPageSize: cfg.Swap.DefaultPageSize,
		MaxPageSize:     cfg.Swap.MaxPageSize,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}

	// Create and start server
	srv := server.New(serverConfig, swapEngine, dataStore)

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	// Shutdown server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("API server stopped")
}
