package sweeper

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protardio/treasury-swap/internal/adapter"
	"github.com/protardio/treasury-swap/internal/domain"
	"github.com/protardio/treasury-swap/internal/logger"
	"github.com/protardio/treasury-swap/internal/rarity"
	"github.com/protardio/treasury-swap/internal/store"
	"github.com/protardio/treasury-swap/internal/store/schema"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(err)
	}
	m.Run()
}

// stubExpirer counts sweep invocations
type stubExpirer struct {
	calls atomic.Int32
}

func (s *stubExpirer) ExpireStale(_ context.Context, _ time.Time) (int, int, error) {
	s.calls.Add(1)
	return 1, 0, nil
}

// stubJanitor counts lapsed-reservation releases
type stubJanitor struct {
	calls atomic.Int32
}

func (s *stubJanitor) ReleaseLapsedReservations(_ context.Context, _ time.Time) (int64, error) {
	s.calls.Add(1)
	return 0, nil
}

func TestExpirySweeper(t *testing.T) {
	t.Run("runs sweep cycles until stopped", func(t *testing.T) {
		expirer := &stubExpirer{}
		janitor := &stubJanitor{}
		sw := NewExpirySweeper(
			&ExpirySweeperConfig{Interval: 10 * time.Millisecond},
			expirer, janitor, adapter.NewClock(),
		)

		ctx := context.Background()
		done := make(chan error, 1)
		go func() { done <- sw.Start(ctx) }()

		require.Eventually(t, func() bool {
			return expirer.calls.Load() >= 2
		}, 2*time.Second, 5*time.Millisecond)

		require.NoError(t, sw.Stop(ctx))
		require.NoError(t, <-done)
		assert.GreaterOrEqual(t, janitor.calls.Load(), int32(1))
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		sw := NewExpirySweeper(
			&ExpirySweeperConfig{Interval: time.Hour},
			&stubExpirer{}, &stubJanitor{}, adapter.NewClock(),
		)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- sw.Start(ctx) }()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("sweeper did not stop after context cancellation")
		}
	})

	t.Run("stopping an idle sweeper is a no-op", func(t *testing.T) {
		sw := NewExpirySweeper(
			&ExpirySweeperConfig{Interval: time.Hour},
			&stubExpirer{}, &stubJanitor{}, adapter.NewClock(),
		)
		assert.NoError(t, sw.Stop(context.Background()))
	})
}

// stubRarityStore is an in-memory RarityStore for rescore tests
type stubRarityStore struct {
	mu       sync.Mutex
	items    []schema.TreasuryItem
	upserted []schema.RarityScore
	updated  map[int64]domain.RarityTier
}

func (s *stubRarityStore) ListTreasuryItems(_ context.Context, filter store.TreasuryFilter) ([]schema.TreasuryItem, int64, error) {
	if filter.Page > 1 {
		return nil, int64(len(s.items)), nil
	}
	return s.items, int64(len(s.items)), nil
}

func (s *stubRarityStore) UpsertRarityScores(_ context.Context, scores []schema.RarityScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, scores...)
	return nil
}

func (s *stubRarityStore) UpdateTreasuryRarity(_ context.Context, tokenID int64, _ float64, tier domain.RarityTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updated == nil {
		s.updated = map[int64]domain.RarityTier{}
	}
	s.updated[tokenID] = tier
	return nil
}

func TestRescoreSweeper(t *testing.T) {
	t.Run("rebuilds frequencies and rewrites rarity rows", func(t *testing.T) {
		common := []domain.Trait{{TraitType: "Background", Value: "Blue"}}
		st := &stubRarityStore{
			items: []schema.TreasuryItem{
				{TokenID: 1, Attributes: common, RarityTier: domain.TierCommon},
				{TokenID: 2, Attributes: common, RarityTier: domain.TierCommon},
				{TokenID: 3, Attributes: []domain.Trait{{TraitType: "Background", Value: "Gold"}}, RarityTier: domain.TierCommon},
			},
		}

		// A supply matching the tiny inventory keeps scores off the 100 clamp
		sw := NewRescoreSweeper(&RescoreSweeperConfig{
			Interval:       time.Hour,
			BatchSize:      2,
			WorkerPoolSize: 2,
			Params:         rarity.Params{TotalSupply: 3, ScaleDivisor: 5, ScaleMultiplier: 10},
		}, st, adapter.NewClock()).(*rescoreSweeper)

		require.NoError(t, sw.runRescoreCycle(context.Background()))

		require.Len(t, st.upserted, 3)

		byToken := map[int64]schema.RarityScore{}
		for _, row := range st.upserted {
			byToken[row.TokenID] = row
		}
		// Gold is a 1-of-1; it outranks the shared Blue background
		assert.Greater(t, byToken[3].RarityScore, byToken[1].RarityScore)
		assert.Equal(t, byToken[1].RarityScore, byToken[2].RarityScore)

		// All three items changed tier or score, so the inventory columns follow
		assert.Len(t, st.updated, 3)
	})

	t.Run("empty inventory is a quiet no-op", func(t *testing.T) {
		sw := NewRescoreSweeper(&RescoreSweeperConfig{
			Interval:       time.Hour,
			BatchSize:      10,
			WorkerPoolSize: 1,
			Params:         rarity.DefaultParams(),
		}, &stubRarityStore{}, adapter.NewClock()).(*rescoreSweeper)

		require.NoError(t, sw.runRescoreCycle(context.Background()))
	})
}
