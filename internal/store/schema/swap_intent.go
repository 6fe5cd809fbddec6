package schema

import (
	"time"

	"github.com/protardio/treasury-swap/internal/domain"
)

// SwapIntent represents the swap_intents table - the working row for one
// attempted swap. Status moves monotonically along the state machine graph;
// terminal rows are never mutated again. Both parties' rarity tiers are
// frozen at creation time and never recomputed.
type SwapIntent struct {
	// ID is an opaque unique intent token (ULID, time-ordered)
	ID string `gorm:"column:id;primaryKey;type:text"`
	// UserFID is the initiating user's social-graph account id
	UserFID int64 `gorm:"column:user_fid;not null;index:idx_swap_intents_fid"`
	// UserAddress is the wallet the user swaps from (and refunds return to)
	UserAddress string `gorm:"column:user_address;not null;type:text"`
	// UserUsername is denormalized for display only
	UserUsername *string `gorm:"column:user_username;type:text"`
	// UserTokenID is the token the user offered
	UserTokenID int64 `gorm:"column:user_token_id;not null"`
	// TreasuryTokenID is the treasury token being claimed
	TreasuryTokenID int64 `gorm:"column:treasury_token_id;not null;index:idx_swap_intents_treasury_token"`
	// UserRarityTier is the user token's tier frozen at intent creation
	UserRarityTier domain.RarityTier `gorm:"column:user_rarity_tier;not null;type:text"`
	// TreasuryRarityTier is the treasury token's tier frozen at intent creation
	TreasuryRarityTier domain.RarityTier `gorm:"column:treasury_rarity_tier;not null;type:text"`
	// FeeAmountWei is the quoted fee in wei (string to avoid precision loss)
	FeeAmountWei string `gorm:"column:fee_amount_wei;not null;type:text"`
	// FeeAmountEth is the quoted fee as a decimal ETH string for display
	FeeAmountEth string `gorm:"column:fee_amount_eth;not null;type:text"`
	// Status is the current state machine position
	Status domain.SwapStatus `gorm:"column:status;not null;type:text;index:idx_swap_intents_status"`
	// UserNFTTxHash records the user's NFT send once observed
	UserNFTTxHash *string `gorm:"column:user_nft_tx_hash;type:text"`
	// UserFeeTxHash records the user's fee send once observed
	UserFeeTxHash *string `gorm:"column:user_fee_tx_hash;type:text"`
	// TreasurySendTxHash records the treasury's outgoing send once observed
	TreasurySendTxHash *string `gorm:"column:treasury_send_tx_hash;type:text"`
	// CreatedAt is the intent creation milestone
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// NFTReceivedAt is the nft_received milestone timestamp
	NFTReceivedAt *time.Time `gorm:"column:nft_received_at;type:timestamptz"`
	// FeeReceivedAt is the fee_received milestone timestamp
	FeeReceivedAt *time.Time `gorm:"column:fee_received_at;type:timestamptz"`
	// CompletedAt is the completion milestone timestamp
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz"`
	// ExpiresAt bounds how long the intent may stay pending
	ExpiresAt time.Time `gorm:"column:expires_at;not null;type:timestamptz;index:idx_swap_intents_expires_at"`
}

// TableName specifies the table name for the SwapIntent model
func (SwapIntent) TableName() string {
	return "swap_intents"
}
