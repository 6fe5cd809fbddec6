package rarity

import (
	"math"

	"github.com/protardio/treasury-swap/internal/domain"
)

// Tier thresholds for the 0-100 normalized score, evaluated top-down so a
// score sitting exactly on a boundary resolves to the higher tier.
const (
	ThresholdLegendary = 80.0
	ThresholdRare      = 60.0
	ThresholdUncommon  = 40.0
)

// Params holds the tunable scoring constants. The scale divisor/multiplier
// pair is a tuning placeholder inherited from the collection launch data and
// must be recalibrated per collection; it does not produce a true percentile
// distribution.
type Params struct {
	// TotalSupply is the collection size used as the rarity ceiling
	TotalSupply float64
	// ScaleDivisor and ScaleMultiplier rescale the mean trait rarity into a 0-100 band
	ScaleDivisor    float64
	ScaleMultiplier float64
}

// DefaultParams returns the scoring constants for the launch collection
func DefaultParams() Params {
	return Params{
		TotalSupply:     5000,
		ScaleDivisor:    5,
		ScaleMultiplier: 10,
	}
}

// FrequencyTable maps trait type -> trait value -> occurrence count across the
// collection. Tables are built once and passed as immutable snapshots so
// scoring stays reproducible; callers must not mutate a table after sharing it.
type FrequencyTable map[string]map[string]int

// Frequency returns the occurrence count for a trait value, or 0 when unseen
func (ft FrequencyTable) Frequency(traitType, value string) int {
	return ft[traitType][value]
}

// Result is the outcome of scoring one token's trait list
type Result struct {
	// Score is the normalized rarity score in [0, 100]
	Score float64
	// Tier is the bucket derived from Score via the threshold ladder
	Tier domain.RarityTier
	// Percentile approximates population rank (100 = most common)
	Percentile float64
	// TraitScores holds the per-trait-type rarity contribution
	TraitScores map[string]float64
}

// TierFromScore assigns a tier by walking the threshold ladder from the top
func TierFromScore(score float64) domain.RarityTier {
	switch {
	case score >= ThresholdLegendary:
		return domain.TierLegendary
	case score >= ThresholdRare:
		return domain.TierRare
	case score >= ThresholdUncommon:
		return domain.TierUncommon
	default:
		return domain.TierCommon
	}
}

// TraitRarity computes the statistical rarity of a single trait value:
// totalSupply / frequency. An unseen trait value is treated as a 1-of-1.
func TraitRarity(table FrequencyTable, traitType, value string, params Params) float64 {
	freq := table.Frequency(traitType, value)
	if freq <= 0 {
		return params.TotalSupply
	}
	return params.TotalSupply / float64(freq)
}

// Score converts a token's trait list plus a frequency snapshot into a
// normalized rarity result. A missing or empty trait list yields score 0,
// tier common, percentile 100: the most-common end of the scale, not an error.
func Score(traits []domain.Trait, table FrequencyTable, params Params) Result {
	if len(traits) == 0 {
		return Result{
			Score:       0,
			Tier:        domain.TierCommon,
			Percentile:  100,
			TraitScores: map[string]float64{},
		}
	}

	traitScores := make(map[string]float64, len(traits))
	var total float64
	for _, trait := range traits {
		s := TraitRarity(table, trait.TraitType, trait.Value, params)
		traitScores[trait.TraitType] = s
		total += s
	}

	mean := total / float64(len(traits))
	normalized := (mean / params.ScaleDivisor) * params.ScaleMultiplier
	normalized = math.Min(100, math.Max(0, normalized))
	// Round to 2 decimals for stable display and storage
	normalized = math.Round(normalized*100) / 100

	return Result{
		Score:       normalized,
		Tier:        TierFromScore(normalized),
		Percentile:  Percentile(normalized),
		TraitScores: traitScores,
	}
}

// ScoreBatch scores many tokens against one frequency snapshot in a single
// pass, keyed by token id
func ScoreBatch(tokens map[int64][]domain.Trait, table FrequencyTable, params Params) map[int64]Result {
	results := make(map[int64]Result, len(tokens))
	for tokenID, traits := range tokens {
		results[tokenID] = Score(traits, table, params)
	}
	return results
}

// BuildFrequencyTable counts trait value occurrences across all trait lists
func BuildFrequencyTable(allTraits [][]domain.Trait) FrequencyTable {
	table := FrequencyTable{}
	for _, traits := range allTraits {
		for _, trait := range traits {
			values, ok := table[trait.TraitType]
			if !ok {
				values = map[string]int{}
				table[trait.TraitType] = values
			}
			values[trait.Value]++
		}
	}
	return table
}

// Percentile maps a normalized score to an approximate population percentile
// (100 = most common). This is a linear heuristic over the tier thresholds,
// not a measured distribution, and is deliberately independent of the score
// rescaling above.
func Percentile(score float64) float64 {
	switch {
	case score >= ThresholdLegendary:
		// Top 5%
		return 5 - ((score-ThresholdLegendary)/20)*5
	case score >= ThresholdRare:
		// 5-20%
		return 5 + ((ThresholdLegendary-score)/20)*15
	case score >= ThresholdUncommon:
		// 20-50%
		return 20 + ((ThresholdRare-score)/20)*30
	default:
		// 50-100%
		return 50 + ((ThresholdUncommon-score)/40)*50
	}
}
