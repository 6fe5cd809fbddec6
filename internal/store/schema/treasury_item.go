package schema

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/protardio/treasury-swap/internal/domain"
)

// Traits is a trait list stored as JSONB in PostgreSQL
type Traits []domain.Trait

// Scan implements the sql.Scanner interface for reading from database
func (t *Traits) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, t)
}

// Value implements the driver.Valuer interface for writing to database
func (t Traits) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

// TreasuryItem represents the treasury_inventory table - one row per token
// custodied by the treasury wallet.
//
// Availability invariant: is_available is false iff reserved_for_intent_id is
// set with reserved_until in the future, or the item has left custody. The
// flag is only ever mutated through the conditional reserve and unconditional
// release paths so the store enforces the invariant, not application code.
type TreasuryItem struct {
	// ID is the internal database primary key
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// TokenID is the on-chain token id within the collection contract
	TokenID int64 `gorm:"column:token_id;not null;uniqueIndex"`
	// Name is the token's display name (nil until synced)
	Name *string `gorm:"column:name;type:text"`
	// ImageURL is the direct URL to the token's image
	ImageURL *string `gorm:"column:image_url;type:text"`
	// ThumbnailURL is the URL to a smaller rendition for gallery views
	ThumbnailURL *string `gorm:"column:thumbnail_url;type:text"`
	// Attributes is the token's trait list (nil until synced)
	Attributes Traits `gorm:"column:attributes;type:jsonb"`
	// RarityTier is the bucket derived from RarityScore
	RarityTier domain.RarityTier `gorm:"column:rarity_tier;not null;type:text;index:idx_treasury_rarity_tier"`
	// RarityScore is the normalized 0-100 rarity score
	RarityScore float64 `gorm:"column:rarity_score;not null;default:0"`
	// IsAvailable indicates whether the item can be reserved for a swap
	IsAvailable bool `gorm:"column:is_available;not null;default:true;index:idx_treasury_available"`
	// ReservedForIntentID references the swap intent holding the reservation
	ReservedForIntentID *string `gorm:"column:reserved_for_intent_id;type:text"`
	// ReservedUntil is when the reservation lapses
	ReservedUntil *time.Time `gorm:"column:reserved_until;type:timestamptz"`
	// AddedAt is when the token entered the treasury wallet
	AddedAt time.Time `gorm:"column:added_at;not null;default:now();type:timestamptz"`
	// LastSyncedAt is when metadata was last refreshed from the chain
	LastSyncedAt time.Time `gorm:"column:last_synced_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the TreasuryItem model
func (TreasuryItem) TableName() string {
	return "treasury_inventory"
}
