package sweeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/protardio/treasury-swap/internal/adapter"
	"github.com/protardio/treasury-swap/internal/domain"
	"github.com/protardio/treasury-swap/internal/logger"
	"github.com/protardio/treasury-swap/internal/rarity"
	"github.com/protardio/treasury-swap/internal/store"
	"github.com/protardio/treasury-swap/internal/store/schema"
)

// RarityStore is the slice of the store the rescore sweeper needs
type RarityStore interface {
	ListTreasuryItems(ctx context.Context, filter store.TreasuryFilter) ([]schema.TreasuryItem, int64, error)
	UpsertRarityScores(ctx context.Context, scores []schema.RarityScore) error
	UpdateTreasuryRarity(ctx context.Context, tokenID int64, score float64, tier domain.RarityTier) error
}

// RescoreSweeperConfig holds configuration for the rarity rescore sweeper
type RescoreSweeperConfig struct {
	// Interval is the pause between rescore cycles
	Interval time.Duration
	// BatchSize is the number of tokens scored and written per batch
	BatchSize int
	// WorkerPoolSize is the number of concurrent scoring workers
	WorkerPoolSize int
	// Params are the scoring constants
	Params rarity.Params
}

// rescoreSweeper periodically rebuilds the trait-frequency table from the
// treasury inventory and recomputes every rarity row against it. Frequencies
// drift as tokens enter and leave the treasury, so cached scores go stale
// without this pass.
type rescoreSweeper struct {
	config    *RescoreSweeperConfig
	store     RarityStore
	clock     adapter.Clock
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewRescoreSweeper creates a new rarity rescore sweeper
func NewRescoreSweeper(config *RescoreSweeperConfig, st RarityStore, clock adapter.Clock) Sweeper {
	return &rescoreSweeper{
		config:    config,
		store:     st,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *rescoreSweeper) Name() string {
	return "rarity-rescore-sweeper"
}

// Start begins the sweeper's main loop
func (s *rescoreSweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting rarity rescore sweeper",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Rarity rescore sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Rarity rescore sweeper stop requested")
			return nil
		default:
			if err := s.runRescoreCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
			}
			if !s.sleep(ctx, s.config.Interval) {
				return nil
			}
		}
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *rescoreSweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping rarity rescore sweeper")
	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Rarity rescore sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Rarity rescore sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runRescoreCycle rebuilds the frequency table and rescores the inventory
func (s *rescoreSweeper) runRescoreCycle(ctx context.Context) error {
	startTime := s.clock.Now()

	items, err := s.loadInventory(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	allTraits := make([][]domain.Trait, 0, len(items))
	for i := range items {
		allTraits = append(allTraits, items[i].Attributes)
	}
	table := rarity.BuildFrequencyTable(allTraits)

	pool := pond.NewPool(s.config.WorkerPoolSize, pond.WithContext(ctx))
	var scored, writeErrors atomic.Int32

	batchSize := s.config.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))
		batch := items[start:end]

		pool.Submit(func() {
			if err := s.rescoreBatch(ctx, batch, table); err != nil {
				writeErrors.Add(1)
				logger.ErrorCtx(ctx, err, zap.Int("batch_size", len(batch)))
				return
			}
			scored.Add(int32(len(batch)))
		})
	}

	pool.StopAndWait()

	logger.InfoCtx(ctx, "Rescore cycle completed",
		zap.Duration("duration", s.clock.Since(startTime)),
		zap.Int("inventory_size", len(items)),
		zap.Int32("scored", scored.Load()),
		zap.Int32("batch_errors", writeErrors.Load()),
	)

	if writeErrors.Load() > 0 {
		return fmt.Errorf("rescore cycle finished with %d failed batches", writeErrors.Load())
	}
	return nil
}

// loadInventory pages through the full treasury inventory
func (s *rescoreSweeper) loadInventory(ctx context.Context) ([]schema.TreasuryItem, error) {
	const pageSize = 500

	var items []schema.TreasuryItem
	for page := 1; ; page++ {
		batch, _, err := s.store.ListTreasuryItems(ctx, store.TreasuryFilter{
			Sort:     store.TreasurySortTokenAsc,
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load treasury inventory: %w", err)
		}
		items = append(items, batch...)
		if len(batch) < pageSize {
			return items, nil
		}
	}
}

// rescoreBatch scores a slice of items against the frequency snapshot and
// writes both the rarity rows and the denormalized inventory columns
func (s *rescoreSweeper) rescoreBatch(ctx context.Context, batch []schema.TreasuryItem, table rarity.FrequencyTable) error {
	now := s.clock.Now().UTC()
	rows := make([]schema.RarityScore, 0, len(batch))

	for i := range batch {
		item := &batch[i]
		result := rarity.Score(item.Attributes, table, s.config.Params)

		traitScores, err := json.Marshal(result.TraitScores)
		if err != nil {
			return fmt.Errorf("failed to encode trait scores for token %d: %w", item.TokenID, err)
		}

		percentile := result.Percentile
		rows = append(rows, schema.RarityScore{
			TokenID:      item.TokenID,
			TraitScores:  datatypes.JSON(traitScores),
			RarityScore:  result.Score,
			RarityTier:   result.Tier,
			Percentile:   &percentile,
			CalculatedAt: now,
		})

		if result.Score != item.RarityScore || result.Tier != item.RarityTier {
			if err := s.store.UpdateTreasuryRarity(ctx, item.TokenID, result.Score, result.Tier); err != nil {
				return err
			}
		}
	}

	return s.store.UpsertRarityScores(ctx, rows)
}

// sleep sleeps for the given duration but can be interrupted by context
// cancellation or a stop request
func (s *rescoreSweeper) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	}
}
