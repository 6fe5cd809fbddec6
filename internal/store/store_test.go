package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protardio/treasury-swap/internal/domain"
	"github.com/protardio/treasury-swap/internal/store/schema"
)

// =============================================================================
// Test Data Builders
// =============================================================================

// buildTestTreasuryItem creates a treasury inventory row for tests
func buildTestTreasuryItem(tokenID int64, tier domain.RarityTier, score float64) *schema.TreasuryItem {
	name := fmt.Sprintf("Protardio #%d", tokenID)
	now := time.Now().UTC()
	return &schema.TreasuryItem{
		TokenID: tokenID,
		Name:    &name,
		Attributes: schema.Traits{
			{TraitType: "Background", Value: "Blue"},
			{TraitType: "Hat", Value: "Crown"},
		},
		RarityTier:   tier,
		RarityScore:  score,
		IsAvailable:  true,
		AddedAt:      now,
		LastSyncedAt: now,
	}
}

// buildTestIntent creates a swap intent row for tests
func buildTestIntent(id string, fid int64, treasuryTokenID int64, status domain.SwapStatus, expiresAt time.Time) *schema.SwapIntent {
	return &schema.SwapIntent{
		ID:                 id,
		UserFID:            fid,
		UserAddress:        "0x1234567890123456789012345678901234567890",
		UserTokenID:        treasuryTokenID + 1000,
		TreasuryTokenID:    treasuryTokenID,
		UserRarityTier:     domain.TierCommon,
		TreasuryRarityTier: domain.TierRare,
		FeeAmountWei:       "2000000000000000",
		FeeAmountEth:       "0.002",
		Status:             status,
		CreatedAt:          time.Now().UTC(),
		ExpiresAt:          expiresAt,
	}
}

// buildTestRefund creates a refund row for tests
func buildTestRefund(intentID, address string, refundType domain.RefundType, reason domain.RefundReason) *schema.Refund {
	tokenID := int64(42)
	return &schema.Refund{
		IntentID:    intentID,
		RefundType:  refundType,
		NFTTokenID:  &tokenID,
		UserAddress: address,
		Status:      domain.RefundStatusPending,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	}
}

// =============================================================================
// Test: Treasury Inventory
// =============================================================================

func testTreasuryInventory(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("upsert and get round-trips metadata", func(t *testing.T) {
		item := buildTestTreasuryItem(1, domain.TierRare, 65.5)
		require.NoError(t, store.UpsertTreasuryItem(ctx, item))

		got, err := store.GetTreasuryItem(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.TokenID)
		assert.Equal(t, domain.TierRare, got.RarityTier)
		assert.Equal(t, 65.5, got.RarityScore)
		assert.True(t, got.IsAvailable)
		require.Len(t, got.Attributes, 2)
		assert.Equal(t, "Background", got.Attributes[0].TraitType)
	})

	t.Run("upsert refreshes metadata without touching reservation state", func(t *testing.T) {
		item := buildTestTreasuryItem(2, domain.TierCommon, 10)
		require.NoError(t, store.UpsertTreasuryItem(ctx, item))

		reserved, err := store.ReserveTreasuryItem(ctx, 2, "intent-keep", time.Now().Add(time.Minute))
		require.NoError(t, err)
		require.True(t, reserved)

		// A sync upsert for the same token must not resurrect availability
		refreshed := buildTestTreasuryItem(2, domain.TierUncommon, 45)
		require.NoError(t, store.UpsertTreasuryItem(ctx, refreshed))

		got, err := store.GetTreasuryItem(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, domain.TierUncommon, got.RarityTier)
		assert.False(t, got.IsAvailable)
		require.NotNil(t, got.ReservedForIntentID)
		assert.Equal(t, "intent-keep", *got.ReservedForIntentID)
	})

	t.Run("get missing item returns not found", func(t *testing.T) {
		_, err := store.GetTreasuryItem(ctx, 999999)
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("list filters by tier and availability with total count", func(t *testing.T) {
		require.NoError(t, store.UpsertTreasuryItem(ctx, buildTestTreasuryItem(10, domain.TierLegendary, 92)))
		require.NoError(t, store.UpsertTreasuryItem(ctx, buildTestTreasuryItem(11, domain.TierLegendary, 85)))
		require.NoError(t, store.UpsertTreasuryItem(ctx, buildTestTreasuryItem(12, domain.TierCommon, 5)))

		tier := domain.TierLegendary
		items, total, err := store.ListTreasuryItems(ctx, TreasuryFilter{
			Tier:          &tier,
			AvailableOnly: true,
			Page:          1,
			PageSize:      50,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, items, 2)
		// Default sort is rarity descending
		assert.Equal(t, int64(10), items[0].TokenID)
		assert.Equal(t, int64(11), items[1].TokenID)
	})

	t.Run("list paginates", func(t *testing.T) {
		for i := int64(20); i < 25; i++ {
			require.NoError(t, store.UpsertTreasuryItem(ctx, buildTestTreasuryItem(i, domain.TierCommon, float64(i))))
		}

		items, total, err := store.ListTreasuryItems(ctx, TreasuryFilter{
			Sort:     TreasurySortTokenAsc,
			Page:     2,
			PageSize: 3,
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, total, int64(5))
		assert.NotEmpty(t, items)
	})

	t.Run("list sorts by token id descending", func(t *testing.T) {
		require.NoError(t, store.UpsertTreasuryItem(ctx, buildTestTreasuryItem(40, domain.TierCommon, 1)))
		require.NoError(t, store.UpsertTreasuryItem(ctx, buildTestTreasuryItem(41, domain.TierCommon, 2)))

		items, _, err := store.ListTreasuryItems(ctx, TreasuryFilter{
			Sort:     TreasurySortTokenDesc,
			Page:     1,
			PageSize: 50,
		})
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(items), 2)
		for i := 1; i < len(items); i++ {
			assert.Greater(t, items[i-1].TokenID, items[i].TokenID)
		}
	})

	t.Run("stats count tiers and availability", func(t *testing.T) {
		stats, err := store.GetTreasuryStats(ctx)
		require.NoError(t, err)
		assert.Greater(t, stats.TotalItems, int64(0))
		assert.Greater(t, stats.AvailableItems, int64(0))
		assert.NotEmpty(t, stats.ByTier)
		require.NotNil(t, stats.LastSyncedAt)
	})

	t.Run("remove deletes the row", func(t *testing.T) {
		require.NoError(t, store.UpsertTreasuryItem(ctx, buildTestTreasuryItem(30, domain.TierCommon, 1)))
		require.NoError(t, store.RemoveTreasuryItem(ctx, 30))

		_, err := store.GetTreasuryItem(ctx, 30)
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})
}

// =============================================================================
// Test: Reservations
// =============================================================================

func testReservations(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("only the first reservation wins", func(t *testing.T) {
		require.NoError(t, store.UpsertTreasuryItem(ctx, buildTestTreasuryItem(100, domain.TierRare, 70)))

		until := time.Now().Add(time.Minute)
		first, err := store.ReserveTreasuryItem(ctx, 100, "intent-a", until)
		require.NoError(t, err)
		assert.True(t, first)

		second, err := store.ReserveTreasuryItem(ctx, 100, "intent-b", until)
		require.NoError(t, err)
		assert.False(t, second)

		got, err := store.GetTreasuryItem(ctx, 100)
		require.NoError(t, err)
		require.NotNil(t, got.ReservedForIntentID)
		assert.Equal(t, "intent-a", *got.ReservedForIntentID)
	})

	t.Run("release makes the item reservable again", func(t *testing.T) {
		require.NoError(t, store.UpsertTreasuryItem(ctx, buildTestTreasuryItem(101, domain.TierRare, 70)))

		ok, err := store.ReserveTreasuryItem(ctx, 101, "intent-a", time.Now().Add(time.Minute))
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, store.ReleaseTreasuryItem(ctx, 101, "intent-a"))

		got, err := store.GetTreasuryItem(ctx, 101)
		require.NoError(t, err)
		assert.True(t, got.IsAvailable)
		assert.Nil(t, got.ReservedForIntentID)
		assert.Nil(t, got.ReservedUntil)

		ok, err = store.ReserveTreasuryItem(ctx, 101, "intent-b", time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("release on an available item is a no-op", func(t *testing.T) {
		require.NoError(t, store.UpsertTreasuryItem(ctx, buildTestTreasuryItem(102, domain.TierCommon, 3)))
		require.NoError(t, store.ReleaseTreasuryItem(ctx, 102, "intent-x"))

		got, err := store.GetTreasuryItem(ctx, 102)
		require.NoError(t, err)
		assert.True(t, got.IsAvailable)
	})

	t.Run("release by a stale holder leaves the reservation intact", func(t *testing.T) {
		require.NoError(t, store.UpsertTreasuryItem(ctx, buildTestTreasuryItem(105, domain.TierRare, 60)))

		ok, err := store.ReserveTreasuryItem(ctx, 105, "intent-old", time.Now().Add(time.Minute))
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, store.ReleaseTreasuryItem(ctx, 105, "intent-old"))

		ok, err = store.ReserveTreasuryItem(ctx, 105, "intent-new", time.Now().Add(time.Minute))
		require.NoError(t, err)
		require.True(t, ok)

		// The old holder retries its release after the item changed hands
		require.NoError(t, store.ReleaseTreasuryItem(ctx, 105, "intent-old"))

		got, err := store.GetTreasuryItem(ctx, 105)
		require.NoError(t, err)
		assert.False(t, got.IsAvailable)
		require.NotNil(t, got.ReservedForIntentID)
		assert.Equal(t, "intent-new", *got.ReservedForIntentID)
	})

	t.Run("reserving a missing token reports no winner", func(t *testing.T) {
		ok, err := store.ReserveTreasuryItem(ctx, 888888, "intent-x", time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("lapsed reservations are released in bulk", func(t *testing.T) {
		require.NoError(t, store.UpsertTreasuryItem(ctx, buildTestTreasuryItem(103, domain.TierCommon, 2)))
		require.NoError(t, store.UpsertTreasuryItem(ctx, buildTestTreasuryItem(104, domain.TierCommon, 2)))

		past := time.Now().Add(-time.Minute)
		ok, err := store.ReserveTreasuryItem(ctx, 103, "intent-old", past)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = store.ReserveTreasuryItem(ctx, 104, "intent-live", time.Now().Add(time.Hour))
		require.NoError(t, err)
		require.True(t, ok)

		freed, err := store.ReleaseLapsedReservations(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(1), freed)

		got, err := store.GetTreasuryItem(ctx, 103)
		require.NoError(t, err)
		assert.True(t, got.IsAvailable)

		got, err = store.GetTreasuryItem(ctx, 104)
		require.NoError(t, err)
		assert.False(t, got.IsAvailable)
	})
}

// =============================================================================
// Test: Rarity Scores
// =============================================================================

func testRarityScores(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("upsert then get", func(t *testing.T) {
		scores := []schema.RarityScore{
			{
				TokenID:      200,
				RarityScore:  88.5,
				RarityTier:   domain.TierLegendary,
				TraitScores:  []byte(`{"Background": 10, "Hat": 1000}`),
				CalculatedAt: time.Now().UTC(),
			},
		}
		require.NoError(t, store.UpsertRarityScores(ctx, scores))

		got, err := store.GetRarityScore(ctx, 200)
		require.NoError(t, err)
		assert.Equal(t, 88.5, got.RarityScore)
		assert.Equal(t, domain.TierLegendary, got.RarityTier)
	})

	t.Run("upsert replaces on token id conflict", func(t *testing.T) {
		first := []schema.RarityScore{{TokenID: 201, RarityScore: 20, RarityTier: domain.TierCommon, CalculatedAt: time.Now().UTC()}}
		require.NoError(t, store.UpsertRarityScores(ctx, first))

		second := []schema.RarityScore{{TokenID: 201, RarityScore: 61, RarityTier: domain.TierRare, CalculatedAt: time.Now().UTC()}}
		require.NoError(t, store.UpsertRarityScores(ctx, second))

		got, err := store.GetRarityScore(ctx, 201)
		require.NoError(t, err)
		assert.Equal(t, 61.0, got.RarityScore)
		assert.Equal(t, domain.TierRare, got.RarityTier)
	})

	t.Run("unknown token reports rarity unknown", func(t *testing.T) {
		_, err := store.GetRarityScore(ctx, 777777)
		assert.ErrorIs(t, err, domain.ErrRarityUnknown)
	})
}

// =============================================================================
// Test: Swap Intents
// =============================================================================

func testSwapIntents(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		intent := buildTestIntent("01TESTINTENT0001", 42, 300, domain.SwapStatusPending, time.Now().Add(30*time.Minute))
		require.NoError(t, store.CreateSwapIntent(ctx, intent))

		got, err := store.GetSwapIntent(ctx, "01TESTINTENT0001")
		require.NoError(t, err)
		assert.Equal(t, int64(42), got.UserFID)
		assert.Equal(t, domain.SwapStatusPending, got.Status)
		assert.Equal(t, "2000000000000000", got.FeeAmountWei)
	})

	t.Run("get missing intent returns not found", func(t *testing.T) {
		_, err := store.GetSwapIntent(ctx, "01NOSUCHINTENT00")
		assert.ErrorIs(t, err, domain.ErrIntentNotFound)
	})

	t.Run("transition writes milestone columns", func(t *testing.T) {
		intent := buildTestIntent("01TESTINTENT0002", 42, 301, domain.SwapStatusPending, time.Now().Add(30*time.Minute))
		require.NoError(t, store.CreateSwapIntent(ctx, intent))

		txHash := "0xabc"
		receivedAt := time.Now().UTC()
		ok, err := store.TransitionIntent(ctx, intent.ID,
			[]domain.SwapStatus{domain.SwapStatusPending},
			domain.SwapStatusNFTReceived,
			IntentUpdate{UserNFTTxHash: &txHash, NFTReceivedAt: &receivedAt},
		)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := store.GetSwapIntent(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SwapStatusNFTReceived, got.Status)
		require.NotNil(t, got.UserNFTTxHash)
		assert.Equal(t, "0xabc", *got.UserNFTTxHash)
		require.NotNil(t, got.NFTReceivedAt)
	})

	t.Run("transition from a disallowed status affects nothing", func(t *testing.T) {
		intent := buildTestIntent("01TESTINTENT0003", 42, 302, domain.SwapStatusCompleted, time.Now().Add(30*time.Minute))
		require.NoError(t, store.CreateSwapIntent(ctx, intent))

		ok, err := store.TransitionIntent(ctx, intent.ID,
			[]domain.SwapStatus{domain.SwapStatusPending},
			domain.SwapStatusNFTReceived,
			IntentUpdate{},
		)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := store.GetSwapIntent(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SwapStatusCompleted, got.Status)
	})

	t.Run("replayed transition is rejected by the source check", func(t *testing.T) {
		intent := buildTestIntent("01TESTINTENT0004", 42, 303, domain.SwapStatusPending, time.Now().Add(30*time.Minute))
		require.NoError(t, store.CreateSwapIntent(ctx, intent))

		from := []domain.SwapStatus{domain.SwapStatusPending}
		ok, err := store.TransitionIntent(ctx, intent.ID, from, domain.SwapStatusExpired, IntentUpdate{})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.TransitionIntent(ctx, intent.ID, from, domain.SwapStatusExpired, IntentUpdate{})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("count recent intents by fid", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			intent := buildTestIntent(fmt.Sprintf("01TESTRATE%06d", i), 77, int64(400+i), domain.SwapStatusPending, time.Now().Add(30*time.Minute))
			require.NoError(t, store.CreateSwapIntent(ctx, intent))
		}

		count, err := store.CountRecentIntentsByFID(ctx, 77, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)

		count, err = store.CountRecentIntentsByFID(ctx, 77, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("list expired intents honors status filter", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		require.NoError(t, store.CreateSwapIntent(ctx, buildTestIntent("01TESTEXP0000001", 88, 500, domain.SwapStatusPending, past)))
		require.NoError(t, store.CreateSwapIntent(ctx, buildTestIntent("01TESTEXP0000002", 88, 501, domain.SwapStatusNFTReceived, past)))
		require.NoError(t, store.CreateSwapIntent(ctx, buildTestIntent("01TESTEXP0000003", 88, 502, domain.SwapStatusPending, time.Now().Add(time.Hour))))

		expired, err := store.ListExpiredIntents(ctx, time.Now(), []domain.SwapStatus{domain.SwapStatusPending})
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, "01TESTEXP0000001", expired[0].ID)

		expired, err = store.ListExpiredIntents(ctx, time.Now(), []domain.SwapStatus{domain.SwapStatusPending, domain.SwapStatusNFTReceived})
		require.NoError(t, err)
		assert.Len(t, expired, 2)
	})
}

// =============================================================================
// Test: Completed Swaps
// =============================================================================

func testCompletedSwaps(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("create then list by fid", func(t *testing.T) {
		now := time.Now().UTC()
		swap := &schema.CompletedSwap{
			IntentID:           "01TESTDONE000001",
			UserFID:            55,
			UserAddress:        "0x1234567890123456789012345678901234567890",
			UserTokenID:        1,
			TreasuryTokenID:    2,
			UserRarityTier:     domain.TierCommon,
			TreasuryRarityTier: domain.TierRare,
			FeeAmountEth:       "0.002",
			UserNFTTxHash:      "0xaaa",
			TreasurySendTxHash: "0xbbb",
			CreatedAt:          now.Add(-time.Minute),
			CompletedAt:        now,
		}
		require.NoError(t, store.CreateCompletedSwap(ctx, swap))

		swaps, total, err := store.ListCompletedSwapsByFID(ctx, 55, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, swaps, 1)
		assert.Equal(t, "01TESTDONE000001", swaps[0].IntentID)
	})

	t.Run("replayed settlement does not duplicate the ledger row", func(t *testing.T) {
		now := time.Now().UTC()
		swap := &schema.CompletedSwap{
			IntentID:           "01TESTDONE000002",
			UserFID:            56,
			UserAddress:        "0x1234567890123456789012345678901234567890",
			UserTokenID:        3,
			TreasuryTokenID:    4,
			UserRarityTier:     domain.TierCommon,
			TreasuryRarityTier: domain.TierCommon,
			FeeAmountEth:       "0.002",
			UserNFTTxHash:      "0xccc",
			TreasurySendTxHash: "0xddd",
			CreatedAt:          now,
			CompletedAt:        now,
		}
		require.NoError(t, store.CreateCompletedSwap(ctx, swap))

		replay := *swap
		replay.ID = ""
		require.NoError(t, store.CreateCompletedSwap(ctx, &replay))

		_, total, err := store.ListCompletedSwapsByFID(ctx, 56, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})
}

// =============================================================================
// Test: Refunds
// =============================================================================

func testRefunds(t *testing.T, store Store) {
	ctx := context.Background()
	address := "0xrefund567890123456789012345678901234567890"

	t.Run("create then list by address and intent", func(t *testing.T) {
		refund := buildTestRefund("01TESTREFUND0001", address, domain.RefundTypeNFT, domain.RefundReasonWrongAsset)
		require.NoError(t, store.CreateRefund(ctx, refund))

		byAddress, err := store.ListRefundsByAddress(ctx, address)
		require.NoError(t, err)
		require.Len(t, byAddress, 1)
		assert.Equal(t, domain.RefundReasonWrongAsset, byAddress[0].Reason)

		byIntent, err := store.ListRefundsByIntent(ctx, "01TESTREFUND0001")
		require.NoError(t, err)
		assert.Len(t, byIntent, 1)
	})

	t.Run("advance moves pending to processing to completed", func(t *testing.T) {
		refund := buildTestRefund("01TESTREFUND0002", address, domain.RefundTypeBoth, domain.RefundReasonSniped)
		require.NoError(t, store.CreateRefund(ctx, refund))

		ok, err := store.AdvanceRefund(ctx, refund.ID, domain.RefundStatusPending, domain.RefundStatusProcessing, nil)
		require.NoError(t, err)
		assert.True(t, ok)

		txHash := "0xrefundtx"
		ok, err = store.AdvanceRefund(ctx, refund.ID, domain.RefundStatusProcessing, domain.RefundStatusCompleted, &txHash)
		require.NoError(t, err)
		assert.True(t, ok)

		refunds, err := store.ListRefundsByIntent(ctx, "01TESTREFUND0002")
		require.NoError(t, err)
		require.Len(t, refunds, 1)
		assert.Equal(t, domain.RefundStatusCompleted, refunds[0].Status)
		require.NotNil(t, refunds[0].RefundTxHash)
		assert.Equal(t, "0xrefundtx", *refunds[0].RefundTxHash)
		require.NotNil(t, refunds[0].CompletedAt)
	})

	t.Run("advance from a stale status affects nothing", func(t *testing.T) {
		refund := buildTestRefund("01TESTREFUND0003", address, domain.RefundTypeFee, domain.RefundReasonInsufficientFee)
		require.NoError(t, store.CreateRefund(ctx, refund))

		ok, err := store.AdvanceRefund(ctx, refund.ID, domain.RefundStatusProcessing, domain.RefundStatusCompleted, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

// RunStoreTests runs the shared store test suite against an implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"TreasuryInventory", testTreasuryInventory},
		{"Reservations", testReservations},
		{"RarityScores", testRarityScores},
		{"SwapIntents", testSwapIntents},
		{"CompletedSwaps", testCompletedSwaps},
		{"Refunds", testRefunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
