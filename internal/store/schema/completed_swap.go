package schema

import (
	"time"

	"github.com/protardio/treasury-swap/internal/domain"
)

// CompletedSwap represents the swaps table - the append-only audit ledger of
// finished swaps. Intents are a working table; a completed swap is copied out
// here at settlement and never modified.
type CompletedSwap struct {
	// ID is the internal database primary key
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// IntentID references the swap intent this record settles
	IntentID string `gorm:"column:intent_id;not null;uniqueIndex;type:text"`
	// UserFID is the user's social-graph account id
	UserFID int64 `gorm:"column:user_fid;not null;index:idx_swaps_fid"`
	// UserAddress is the wallet that received the treasury token
	UserAddress string `gorm:"column:user_address;not null;type:text"`
	// UserUsername is denormalized for display only
	UserUsername *string `gorm:"column:user_username;type:text"`
	// UserTokenID is the token the user gave up
	UserTokenID int64 `gorm:"column:user_token_id;not null"`
	// TreasuryTokenID is the token the user received
	TreasuryTokenID int64 `gorm:"column:treasury_token_id;not null"`
	// UserRarityTier is the user token's tier at intent creation
	UserRarityTier domain.RarityTier `gorm:"column:user_rarity_tier;not null;type:text"`
	// TreasuryRarityTier is the treasury token's tier at intent creation
	TreasuryRarityTier domain.RarityTier `gorm:"column:treasury_rarity_tier;not null;type:text"`
	// FeeAmountEth is the fee paid as a decimal ETH string
	FeeAmountEth string `gorm:"column:fee_amount_eth;not null;type:text"`
	// UserNFTTxHash is the confirmed user NFT send
	UserNFTTxHash string `gorm:"column:user_nft_tx_hash;not null;type:text"`
	// TreasurySendTxHash is the confirmed treasury send
	TreasurySendTxHash string `gorm:"column:treasury_send_tx_hash;not null;type:text"`
	// CreatedAt is when the originating intent was created
	CreatedAt time.Time `gorm:"column:created_at;not null;type:timestamptz"`
	// CompletedAt is when the treasury send confirmed
	CompletedAt time.Time `gorm:"column:completed_at;not null;type:timestamptz"`
}

// TableName specifies the table name for the CompletedSwap model
func (CompletedSwap) TableName() string {
	return "swaps"
}
