package store

import (
	"context"
	"time"

	"github.com/protardio/treasury-swap/internal/domain"
	"github.com/protardio/treasury-swap/internal/store/schema"
)

// TreasurySort determines the ordering of treasury inventory listings
type TreasurySort string

const (
	// TreasurySortRarityDesc orders by rarity score, rarest first (default)
	TreasurySortRarityDesc TreasurySort = "rarity-desc"
	// TreasurySortRarityAsc orders by rarity score, most common first
	TreasurySortRarityAsc TreasurySort = "rarity-asc"
	// TreasurySortTokenAsc orders by on-chain token id ascending
	TreasurySortTokenAsc TreasurySort = "token-asc"
	// TreasurySortTokenDesc orders by on-chain token id descending
	TreasurySortTokenDesc TreasurySort = "token-desc"
)

// Valid reports whether s is a recognized sort order
func (s TreasurySort) Valid() bool {
	switch s {
	case TreasurySortRarityDesc, TreasurySortRarityAsc, TreasurySortTokenAsc, TreasurySortTokenDesc:
		return true
	}
	return false
}

// TreasuryFilter narrows and orders a treasury inventory listing
type TreasuryFilter struct {
	// Tier restricts results to a single rarity tier when set
	Tier *domain.RarityTier
	// AvailableOnly excludes reserved and departed items
	AvailableOnly bool
	// Sort is the ordering; zero value falls back to rarity-desc
	Sort TreasurySort
	// Page is 1-based
	Page int
	// PageSize is the number of rows per page
	PageSize int
}

// TreasuryStats summarizes the treasury inventory
type TreasuryStats struct {
	TotalItems     int64
	AvailableItems int64
	ByTier         map[domain.RarityTier]int64
	LastSyncedAt   *time.Time
}

// IntentUpdate carries the optional column writes that accompany a status
// transition. Nil fields are left untouched.
type IntentUpdate struct {
	UserNFTTxHash      *string
	UserFeeTxHash      *string
	TreasurySendTxHash *string
	NFTReceivedAt      *time.Time
	FeeReceivedAt      *time.Time
	CompletedAt        *time.Time
}

// Store defines the interface for database operations
type Store interface {
	// GetTreasuryItem retrieves a treasury item by on-chain token id
	GetTreasuryItem(ctx context.Context, tokenID int64) (*schema.TreasuryItem, error)
	// ListTreasuryItems returns a page of treasury items plus the total
	// count matching the filter. A missing inventory table yields an
	// empty page, not an error.
	ListTreasuryItems(ctx context.Context, filter TreasuryFilter) ([]schema.TreasuryItem, int64, error)
	// GetTreasuryStats summarizes inventory size and tier distribution
	GetTreasuryStats(ctx context.Context) (*TreasuryStats, error)
	// UpsertTreasuryItem inserts or refreshes an inventory row keyed by token id
	UpsertTreasuryItem(ctx context.Context, item *schema.TreasuryItem) error
	// ReserveTreasuryItem atomically claims an available item for an
	// intent. Returns false without error when the item was already
	// reserved or gone.
	ReserveTreasuryItem(ctx context.Context, tokenID int64, intentID string, until time.Time) (bool, error)
	// ReleaseTreasuryItem returns a reserved item to the available pool,
	// but only while the reservation still belongs to the given intent.
	// A stale release against an item another intent has since claimed
	// is a no-op, as is releasing an item that is not reserved.
	ReleaseTreasuryItem(ctx context.Context, tokenID int64, intentID string) error
	// RemoveTreasuryItem deletes an item that has left treasury custody
	RemoveTreasuryItem(ctx context.Context, tokenID int64) error
	// ReleaseLapsedReservations frees items whose reservation window has
	// passed and returns how many were freed
	ReleaseLapsedReservations(ctx context.Context, now time.Time) (int64, error)
	// UpdateTreasuryRarity writes recomputed rarity columns onto an inventory row
	UpdateTreasuryRarity(ctx context.Context, tokenID int64, score float64, tier domain.RarityTier) error

	// GetRarityScore retrieves the cached rarity row for a token id
	GetRarityScore(ctx context.Context, tokenID int64) (*schema.RarityScore, error)
	// UpsertRarityScores inserts or refreshes rarity rows keyed by token id
	UpsertRarityScores(ctx context.Context, scores []schema.RarityScore) error

	// CreateSwapIntent persists a new intent row
	CreateSwapIntent(ctx context.Context, intent *schema.SwapIntent) error
	// GetSwapIntent retrieves an intent by id
	GetSwapIntent(ctx context.Context, id string) (*schema.SwapIntent, error)
	// TransitionIntent conditionally moves an intent from one of the
	// given statuses to the target status, applying the update in the
	// same statement. Returns false without error when the row was not
	// in an allowed source status (lost race or replayed call).
	TransitionIntent(ctx context.Context, id string, from []domain.SwapStatus, to domain.SwapStatus, update IntentUpdate) (bool, error)
	// CountRecentIntentsByFID counts intents a user created since the given time
	CountRecentIntentsByFID(ctx context.Context, fid int64, since time.Time) (int64, error)
	// ListExpiredIntents returns non-terminal intents whose deadline has
	// passed, limited to the given statuses
	ListExpiredIntents(ctx context.Context, now time.Time, statuses []domain.SwapStatus) ([]schema.SwapIntent, error)
	// ListIntentsByFID returns a user's intents, newest first
	ListIntentsByFID(ctx context.Context, fid int64, limit int) ([]schema.SwapIntent, error)

	// CreateCompletedSwap appends a settled swap to the audit ledger
	CreateCompletedSwap(ctx context.Context, swap *schema.CompletedSwap) error
	// ListCompletedSwapsByFID returns a page of a user's settled swaps,
	// newest first, plus the total count
	ListCompletedSwapsByFID(ctx context.Context, fid int64, limit, offset int) ([]schema.CompletedSwap, int64, error)

	// CreateRefund appends a refund to the ledger
	CreateRefund(ctx context.Context, refund *schema.Refund) error
	// ListRefundsByAddress returns refunds destined for an address, newest first
	ListRefundsByAddress(ctx context.Context, address string) ([]schema.Refund, error)
	// ListRefundsByIntent returns refunds raised against an intent
	ListRefundsByIntent(ctx context.Context, intentID string) ([]schema.Refund, error)
	// AdvanceRefund conditionally moves a refund between settlement
	// states, recording the tx hash when provided. Returns false without
	// error when the refund was not in the expected source status.
	AdvanceRefund(ctx context.Context, id string, from, to domain.RefundStatus, txHash *string) (bool, error)
}
