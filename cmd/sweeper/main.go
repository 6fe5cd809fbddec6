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

	"github.com/protardio/treasury-swap/internal/adapter"
	"github.com/protardio/treasury-swap/internal/config"
	"github.com/protardio/treasury-swap/internal/domain"
	"github.com/protardio/treasury-swap/internal/engine"
	"github.com/protardio/treasury-swap/internal/fee"
	"github.com/protardio/treasury-swap/internal/logger"
	"github.com/protardio/treasury-swap/internal/rarity"
	"github.com/protardio/treasury-swap/internal/store"
	"github.com/protardio/treasury-swap/internal/sweeper"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadSweeperConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "sweeper",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Treasury Swap Sweeper")

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

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize clock adapter
	clock := adapter.NewClock()

	// The expiry sweeper drives the engine's expiry pass, so it needs the
	// same fee and rarity wiring the API server uses
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

	swapEngine := engine.New(dataStore, fee.NewCalculator(feeConfig), rarity.Params{
		TotalSupply:     cfg.Rarity.TotalSupply,
		ScaleDivisor:    cfg.Rarity.ScaleDivisor,
		ScaleMultiplier: cfg.Rarity.ScaleMultiplier,
	}, engine.Config{
		IntentTTL:       cfg.Swap.IntentTTL,
		RateLimitMax:    cfg.Swap.RateLimitMax,
		RateLimitWindow: cfg.Swap.RateLimitWindow,
	})

	// Initialize sweepers
	expirySweeper := sweeper.NewExpirySweeper(&sweeper.ExpirySweeperConfig{
		Interval: cfg.ExpirySweeper.Interval,
	}, swapEngine, dataStore, clock)

	rescoreSweeper := sweeper.NewRescoreSweeper(&sweeper.RescoreSweeperConfig{
		Interval:       cfg.RescoreSweep.Interval,
		BatchSize:      cfg.RescoreSweep.BatchSize,
		WorkerPoolSize: cfg.RescoreSweep.WorkerPoolSize,
		Params: rarity.Params{
			TotalSupply:     cfg.Rarity.TotalSupply,
			ScaleDivisor:    cfg.Rarity.ScaleDivisor,
			ScaleMultiplier: cfg.Rarity.ScaleMultiplier,
		},
	}, dataStore, clock)

	sweepers := []sweeper.Sweeper{expirySweeper, rescoreSweeper}

	logger.InfoCtx(ctx, "Initialized sweepers",
		zap.Duration("expiry_interval", cfg.ExpirySweeper.Interval),
		zap.Duration("rescore_interval", cfg.RescoreSweep.Interval),
		zap.Int("rescore_batch_size", cfg.RescoreSweep.BatchSize),
	)

	// Start the sweepers in goroutines
	errChan := make(chan error, len(sweepers))
	for _, sw := range sweepers {
		go func(sw sweeper.Sweeper) {
			if err := sw.Start(ctx); err != nil {
				errChan <- fmt.Errorf("%s: %w", sw.Name(), err)
			}
		}(sw)
	}

	// Wait for interrupt signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	// Cancel context to stop the sweepers
	cancel()

	// Give the sweepers time to shut down gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()

	for _, sw := range sweepers {
		if err := sw.Stop(shutdownCtx); err != nil {
			logger.ErrorCtx(shutdownCtx, err, zap.String("sweeper", sw.Name()))
		}
	}

	logger.InfoCtx(shutdownCtx, "Sweeper stopped")
}
