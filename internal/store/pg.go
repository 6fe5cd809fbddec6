package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/protardio/treasury-swap/internal/domain"
	"github.com/protardio/treasury-swap/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// AutoMigrate creates or updates the swap engine tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.TreasuryItem{},
		&schema.RarityScore{},
		&schema.SwapIntent{},
		&schema.CompletedSwap{},
		&schema.Refund{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// If any of the pool settings are 0 or empty, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// isUndefinedTable reports whether err is PostgreSQL's "relation does not
// exist" (SQLSTATE 42P01). Read paths treat a missing inventory table as an
// empty inventory so a fresh deployment serves before its first sync.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// =============================================================================
// Treasury Inventory Operations
// =============================================================================

// GetTreasuryItem retrieves a treasury item by on-chain token id
func (s *pgStore) GetTreasuryItem(ctx context.Context, tokenID int64) (*schema.TreasuryItem, error) {
	var item schema.TreasuryItem

	err := s.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isUndefinedTable(err) {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get treasury item: %w", err)
	}

	return &item, nil
}

// ListTreasuryItems returns a page of treasury items plus the total count
// matching the filter
func (s *pgStore) ListTreasuryItems(ctx context.Context, filter TreasuryFilter) ([]schema.TreasuryItem, int64, error) {
	query := s.db.WithContext(ctx).Model(&schema.TreasuryItem{})

	if filter.Tier != nil {
		query = query.Where("rarity_tier = ?", *filter.Tier)
	}
	if filter.AvailableOnly {
		query = query.Where("is_available = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		if isUndefinedTable(err) {
			return []schema.TreasuryItem{}, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to count treasury items: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var order string
	switch filter.Sort {
	case TreasurySortRarityAsc:
		order = "rarity_score ASC, token_id ASC"
	case TreasurySortTokenAsc:
		order = "token_id ASC"
	case TreasurySortTokenDesc:
		order = "token_id DESC"
	default:
		order = "rarity_score DESC, token_id ASC"
	}

	var items []schema.TreasuryItem
	err := query.
		Order(order).
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list treasury items: %w", err)
	}

	return items, total, nil
}

// GetTreasuryStats summarizes inventory size and tier distribution
func (s *pgStore) GetTreasuryStats(ctx context.Context) (*TreasuryStats, error) {
	stats := &TreasuryStats{
		ByTier: make(map[domain.RarityTier]int64),
	}

	err := s.db.WithContext(ctx).
		Model(&schema.TreasuryItem{}).
		Count(&stats.TotalItems).Error
	if err != nil {
		if isUndefinedTable(err) {
			return stats, nil
		}
		return nil, fmt.Errorf("failed to count treasury items: %w", err)
	}

	err = s.db.WithContext(ctx).
		Model(&schema.TreasuryItem{}).
		Where("is_available = ?", true).
		Count(&stats.AvailableItems).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count available items: %w", err)
	}

	var tierCounts []struct {
		RarityTier domain.RarityTier
		Count      int64
	}
	err = s.db.WithContext(ctx).
		Model(&schema.TreasuryItem{}).
		Select("rarity_tier, COUNT(*) AS count").
		Group("rarity_tier").
		Find(&tierCounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count items by tier: %w", err)
	}
	for _, tc := range tierCounts {
		stats.ByTier[tc.RarityTier] = tc.Count
	}

	var lastSynced sql.NullTime
	err = s.db.WithContext(ctx).
		Model(&schema.TreasuryItem{}).
		Select("MAX(last_synced_at)").
		Scan(&lastSynced).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get last sync time: %w", err)
	}
	if lastSynced.Valid {
		stats.LastSyncedAt = &lastSynced.Time
	}

	return stats, nil
}

// UpsertTreasuryItem inserts or refreshes an inventory row keyed by token id.
// Conflicting upserts refresh metadata only; reservation state is owned by the
// reserve and release paths and never touched here.
func (s *pgStore) UpsertTreasuryItem(ctx context.Context, item *schema.TreasuryItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "token_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "image_url", "thumbnail_url", "attributes",
				"rarity_tier", "rarity_score", "last_synced_at",
			}),
		}).
		Create(item).Error
	if err != nil {
		return fmt.Errorf("failed to upsert treasury item: %w", err)
	}

	return nil
}

// ReserveTreasuryItem atomically claims an available item for an intent.
// The availability check and the claim happen in a single conditional UPDATE,
// so among any number of concurrent callers exactly one sees true.
func (s *pgStore) ReserveTreasuryItem(ctx context.Context, tokenID int64, intentID string, until time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&schema.TreasuryItem{}).
		Where("token_id = ? AND is_available = ?", tokenID, true).
		Updates(map[string]interface{}{
			"is_available":           false,
			"reserved_for_intent_id": intentID,
			"reserved_until":         until,
		})

	if result.Error != nil {
		return false, fmt.Errorf("failed to reserve treasury item: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

// ReleaseTreasuryItem returns a reserved item to the available pool. The
// holder check keeps a stale release from freeing a reservation the item
// has since been handed to another intent.
func (s *pgStore) ReleaseTreasuryItem(ctx context.Context, tokenID int64, intentID string) error {
	err := s.db.WithContext(ctx).
		Model(&schema.TreasuryItem{}).
		Where("token_id = ? AND is_available = ? AND reserved_for_intent_id = ?", tokenID, false, intentID).
		Updates(map[string]interface{}{
			"is_available":           true,
			"reserved_for_intent_id": nil,
			"reserved_until":         nil,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to release treasury item: %w", err)
	}

	return nil
}

// RemoveTreasuryItem deletes an item that has left treasury custody
func (s *pgStore) RemoveTreasuryItem(ctx context.Context, tokenID int64) error {
	err := s.db.WithContext(ctx).
		Where("token_id = ?", tokenID).
		Delete(&schema.TreasuryItem{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove treasury item: %w", err)
	}

	return nil
}

// ReleaseLapsedReservations frees items whose reservation window has passed
func (s *pgStore) ReleaseLapsedReservations(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&schema.TreasuryItem{}).
		Where("is_available = ? AND reserved_until IS NOT NULL AND reserved_until < ?", false, now).
		Updates(map[string]interface{}{
			"is_available":           true,
			"reserved_for_intent_id": nil,
			"reserved_until":         nil,
		})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to release lapsed reservations: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// UpdateTreasuryRarity writes recomputed rarity columns onto an inventory row
func (s *pgStore) UpdateTreasuryRarity(ctx context.Context, tokenID int64, score float64, tier domain.RarityTier) error {
	err := s.db.WithContext(ctx).
		Model(&schema.TreasuryItem{}).
		Where("token_id = ?", tokenID).
		Updates(map[string]interface{}{
			"rarity_score": score,
			"rarity_tier":  tier,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update treasury rarity: %w", err)
	}

	return nil
}

// =============================================================================
// Rarity Score Operations
// =============================================================================

// GetRarityScore retrieves the cached rarity row for a token id
func (s *pgStore) GetRarityScore(ctx context.Context, tokenID int64) (*schema.RarityScore, error) {
	var score schema.RarityScore

	err := s.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&score).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isUndefinedTable(err) {
			return nil, domain.ErrRarityUnknown
		}
		return nil, fmt.Errorf("failed to get rarity score: %w", err)
	}

	return &score, nil
}

// UpsertRarityScores inserts or refreshes rarity rows keyed by token id
func (s *pgStore) UpsertRarityScores(ctx context.Context, scores []schema.RarityScore) error {
	if len(scores) == 0 {
		return nil
	}

	for i := range scores {
		if scores[i].ID == "" {
			scores[i].ID = uuid.NewString()
		}
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "token_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"trait_scores", "rarity_score", "rarity_tier",
				"percentile", "calculated_at",
			}),
		}).
		CreateInBatches(scores, 500).Error
	if err != nil {
		return fmt.Errorf("failed to upsert rarity scores: %w", err)
	}

	return nil
}

// =============================================================================
// Swap Intent Operations
// =============================================================================

// CreateSwapIntent persists a new intent row
func (s *pgStore) CreateSwapIntent(ctx context.Context, intent *schema.SwapIntent) error {
	err := s.db.WithContext(ctx).Create(intent).Error
	if err != nil {
		return fmt.Errorf("failed to create swap intent: %w", err)
	}

	return nil
}

// GetSwapIntent retrieves an intent by id
func (s *pgStore) GetSwapIntent(ctx context.Context, id string) (*schema.SwapIntent, error) {
	var intent schema.SwapIntent

	err := s.db.WithContext(ctx).Where("id = ?", id).First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to get swap intent: %w", err)
	}

	return &intent, nil
}

// TransitionIntent conditionally moves an intent between statuses. The source
// status check and the write happen in a single conditional UPDATE, making the
// state machine monotonic under concurrent callbacks: a replayed or racing
// transition simply affects zero rows.
func (s *pgStore) TransitionIntent(ctx context.Context, id string, from []domain.SwapStatus, to domain.SwapStatus, update IntentUpdate) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition requires at least one source status")
	}

	updates := map[string]interface{}{
		"status": to,
	}
	if update.UserNFTTxHash != nil {
		updates["user_nft_tx_hash"] = *update.UserNFTTxHash
	}
	if update.UserFeeTxHash != nil {
		updates["user_fee_tx_hash"] = *update.UserFeeTxHash
	}
	if update.TreasurySendTxHash != nil {
		updates["treasury_send_tx_hash"] = *update.TreasurySendTxHash
	}
	if update.NFTReceivedAt != nil {
		updates["nft_received_at"] = *update.NFTReceivedAt
	}
	if update.FeeReceivedAt != nil {
		updates["fee_received_at"] = *update.FeeReceivedAt
	}
	if update.CompletedAt != nil {
		updates["completed_at"] = *update.CompletedAt
	}

	result := s.db.WithContext(ctx).
		Model(&schema.SwapIntent{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)

	if result.Error != nil {
		return false, fmt.Errorf("failed to transition intent: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

// CountRecentIntentsByFID counts intents a user created since the given time
func (s *pgStore) CountRecentIntentsByFID(ctx context.Context, fid int64, since time.Time) (int64, error) {
	var count int64

	err := s.db.WithContext(ctx).
		Model(&schema.SwapIntent{}).
		Where("user_fid = ? AND created_at >= ?", fid, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recent intents: %w", err)
	}

	return count, nil
}

// ListExpiredIntents returns non-terminal intents whose deadline has passed
func (s *pgStore) ListExpiredIntents(ctx context.Context, now time.Time, statuses []domain.SwapStatus) ([]schema.SwapIntent, error) {
	var intents []schema.SwapIntent

	err := s.db.WithContext(ctx).
		Where("status IN ? AND expires_at < ?", statuses, now).
		Order("expires_at ASC").
		Find(&intents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired intents: %w", err)
	}

	return intents, nil
}

// ListIntentsByFID returns a user's intents, newest first
func (s *pgStore) ListIntentsByFID(ctx context.Context, fid int64, limit int) ([]schema.SwapIntent, error) {
	if limit < 1 {
		limit = 20
	}

	var intents []schema.SwapIntent
	err := s.db.WithContext(ctx).
		Where("user_fid = ?", fid).
		Order("created_at DESC").
		Limit(limit).
		Find(&intents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list intents: %w", err)
	}

	return intents, nil
}

// =============================================================================
// Completed Swap Operations
// =============================================================================

// CreateCompletedSwap appends a settled swap to the audit ledger
func (s *pgStore) CreateCompletedSwap(ctx context.Context, swap *schema.CompletedSwap) error {
	if swap.ID == "" {
		swap.ID = uuid.NewString()
	}

	// Settlement callbacks can replay; the intent_id unique index plus
	// DoNothing keeps the ledger append-once.
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "intent_id"}},
			DoNothing: true,
		}).
		Create(swap).Error
	if err != nil {
		return fmt.Errorf("failed to create completed swap: %w", err)
	}

	return nil
}

// ListCompletedSwapsByFID returns a page of a user's settled swaps
func (s *pgStore) ListCompletedSwapsByFID(ctx context.Context, fid int64, limit, offset int) ([]schema.CompletedSwap, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&schema.CompletedSwap{}).
		Where("user_fid = ?", fid)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		if isUndefinedTable(err) {
			return []schema.CompletedSwap{}, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to count completed swaps: %w", err)
	}

	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var swaps []schema.CompletedSwap
	err := query.
		Order("completed_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&swaps).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list completed swaps: %w", err)
	}

	return swaps, total, nil
}

// =============================================================================
// Refund Operations
// =============================================================================

// CreateRefund appends a refund to the ledger
func (s *pgStore) CreateRefund(ctx context.Context, refund *schema.Refund) error {
	if refund.ID == "" {
		refund.ID = uuid.NewString()
	}

	err := s.db.WithContext(ctx).Create(refund).Error
	if err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}

	return nil
}

// ListRefundsByAddress returns refunds destined for an address, newest first
func (s *pgStore) ListRefundsByAddress(ctx context.Context, address string) ([]schema.Refund, error) {
	var refunds []schema.Refund

	err := s.db.WithContext(ctx).
		Where("user_address = ?", address).
		Order("created_at DESC").
		Find(&refunds).Error
	if err != nil {
		if isUndefinedTable(err) {
			return []schema.Refund{}, nil
		}
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}

	return refunds, nil
}

// ListRefundsByIntent returns refunds raised against an intent
func (s *pgStore) ListRefundsByIntent(ctx context.Context, intentID string) ([]schema.Refund, error) {
	var refunds []schema.Refund

	err := s.db.WithContext(ctx).
		Where("intent_id = ?", intentID).
		Order("created_at ASC").
		Find(&refunds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds for intent: %w", err)
	}

	return refunds, nil
}

// AdvanceRefund conditionally moves a refund between settlement states
func (s *pgStore) AdvanceRefund(ctx context.Context, id string, from, to domain.RefundStatus, txHash *string) (bool, error) {
	updates := map[string]interface{}{
		"status": to,
	}
	if txHash != nil {
		updates["refund_tx_hash"] = *txHash
	}
	if to == domain.RefundStatusCompleted {
		updates["completed_at"] = time.Now()
	}

	result := s.db.WithContext(ctx).
		Model(&schema.Refund{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)

	if result.Error != nil {
		return false, fmt.Errorf("failed to advance refund: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}
