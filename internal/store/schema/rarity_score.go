package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/protardio/treasury-swap/internal/domain"
)

// RarityScore represents the rarity_scores table - derived rarity data for
// any token id, treasury-held or externally owned. Rows are upserted keyed by
// token_id; a stale row is acceptable because calculated_at makes staleness
// observable.
type RarityScore struct {
	// ID is the internal database primary key
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// TokenID is the on-chain token id (unique, upsert key)
	TokenID int64 `gorm:"column:token_id;not null;uniqueIndex"`
	// TraitScores is the per-trait-type rarity contribution map
	TraitScores datatypes.JSON `gorm:"column:trait_scores;type:jsonb"`
	// RarityScore is the normalized 0-100 aggregate score
	RarityScore float64 `gorm:"column:rarity_score;not null"`
	// RarityTier must agree with RarityScore under the thresholds at calculation time
	RarityTier domain.RarityTier `gorm:"column:rarity_tier;not null;type:text"`
	// Percentile is the approximate population rank (nil when not computed)
	Percentile *float64 `gorm:"column:percentile"`
	// CalculatedAt is when this row was (re)computed
	CalculatedAt time.Time `gorm:"column:calculated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the RarityScore model
func (RarityScore) TableName() string {
	return "rarity_scores"
}
