package schema

import (
	"time"

	"github.com/protardio/treasury-swap/internal/domain"
)

// Refund represents the refunds table - one row per compensating action taken
// when an intent cannot complete cleanly. The ledger records requested vs.
// confirmed state; the external settlement layer moves the actual assets.
type Refund struct {
	// ID is the internal database primary key
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// IntentID references the originating swap intent
	IntentID string `gorm:"column:intent_id;not null;index:idx_refunds_intent_id;type:text"`
	// RefundType identifies which assets are returned (nft, fee, both)
	RefundType domain.RefundType `gorm:"column:refund_type;not null;type:text"`
	// NFTTokenID is the token being returned (nil for fee-only refunds)
	NFTTokenID *int64 `gorm:"column:nft_token_id"`
	// FeeAmountEth is the fee being returned (nil for nft-only refunds)
	FeeAmountEth *string `gorm:"column:fee_amount_eth;type:text"`
	// UserAddress is the refund destination
	UserAddress string `gorm:"column:user_address;not null;type:text;index:idx_refunds_user_address"`
	// RefundTxHash records the outgoing refund send once observed
	RefundTxHash *string `gorm:"column:refund_tx_hash;type:text"`
	// Status is the refund settlement state
	Status domain.RefundStatus `gorm:"column:status;not null;type:text"`
	// Reason is drawn from the fixed refund taxonomy
	Reason domain.RefundReason `gorm:"column:reason;not null;type:text"`
	// CreatedAt is when the refund was requested
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// CompletedAt is when the refund confirmed on-chain
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz"`
}

// TableName specifies the table name for the Refund model
func (Refund) TableName() string {
	return "refunds"
}
