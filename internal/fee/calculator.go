package fee

import (
	"math"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/params"

	"github.com/protardio/treasury-swap/internal/domain"
	"github.com/protardio/treasury-swap/internal/rarity"
)

// Policy selects how the rarity differential contributes to the fee.
type Policy string

const (
	// PolicyFlat charges the base fee regardless of rarity (Phase 1, active)
	PolicyFlat Policy = "flat"
	// PolicyTiered adds a premium when trading up in tier (Phase 2, dormant)
	PolicyTiered Policy = "tiered"
)

// Config holds fee amounts in decimal ETH
type Config struct {
	// BaseFeeEth is the flat component charged on every swap
	BaseFeeEth float64
	// TierValues maps each tier to its premium contribution in ETH
	TierValues map[domain.RarityTier]float64
	// Policy picks the active premium rule
	Policy Policy
}

// DefaultConfig returns the launch fee schedule: flat 0.002 ETH, with the
// Phase 2 tier values already present but inactive
func DefaultConfig() Config {
	return Config{
		BaseFeeEth: 0.002,
		TierValues: map[domain.RarityTier]float64{
			domain.TierCommon:    0,
			domain.TierUncommon:  0.0005,
			domain.TierRare:      0.001,
			domain.TierLegendary: 0.002,
		},
		Policy: PolicyFlat,
	}
}

// Breakdown itemizes the fee so the tiered policy's shape stays visible to
// callers even while the premium is pinned to zero
type Breakdown struct {
	BaseFee       string `json:"baseFee"`
	RarityPremium string `json:"rarityPremium"`
	TotalFee      string `json:"totalFee"`
}

// TierInfo is the rarity summary echoed back in a fee calculation
type TierInfo struct {
	Tier  domain.RarityTier `json:"tier"`
	Score float64           `json:"score"`
}

// Calculation is the full fee quote for one user/treasury token pair
type Calculation struct {
	UserRarity     TierInfo  `json:"userRarity"`
	TreasuryRarity TierInfo  `json:"treasuryRarity"`
	FeeAmountWei   string    `json:"feeAmountWei"`
	FeeAmountEth   string    `json:"feeAmountEth"`
	Breakdown      Breakdown `json:"breakdown"`
}

// Calculator computes swap fees from two rarity results
type Calculator struct {
	config Config
}

// NewCalculator creates a fee calculator with the given schedule
func NewCalculator(config Config) *Calculator {
	return &Calculator{config: config}
}

// Premium returns the rarity premium in ETH under the active policy.
// The tiered rule only charges extra when trading up in tier; trading down
// never produces a rebate.
func (c *Calculator) Premium(userTier, treasuryTier domain.RarityTier) float64 {
	if c.config.Policy != PolicyTiered {
		return 0
	}
	diff := c.config.TierValues[treasuryTier] - c.config.TierValues[userTier]
	return math.Max(0, diff)
}

// Calculate produces a fee quote with its itemized breakdown
func (c *Calculator) Calculate(userRarity, treasuryRarity rarity.Result) Calculation {
	premium := c.Premium(userRarity.Tier, treasuryRarity.Tier)
	totalEth := c.config.BaseFeeEth + premium

	return Calculation{
		UserRarity:     TierInfo{Tier: userRarity.Tier, Score: userRarity.Score},
		TreasuryRarity: TierInfo{Tier: treasuryRarity.Tier, Score: treasuryRarity.Score},
		FeeAmountWei:   EthToWei(totalEth).String(),
		FeeAmountEth:   FormatEth(totalEth),
		Breakdown: Breakdown{
			BaseFee:       FormatEth(c.config.BaseFeeEth),
			RarityPremium: FormatEth(premium),
			TotalFee:      FormatEth(totalEth),
		},
	}
}

// BaseFeeWei returns the flat fee component in wei
func (c *Calculator) BaseFeeWei() *big.Int {
	return EthToWei(c.config.BaseFeeEth)
}

// EthToWei converts a decimal ETH amount to wei. Fee amounts are quantized to
// gwei resolution first so float representation noise cannot leak into the
// wei string.
func EthToWei(eth float64) *big.Int {
	gwei := int64(math.Round(eth * 1e9))
	return new(big.Int).Mul(big.NewInt(gwei), big.NewInt(params.GWei))
}

// FormatEth renders a decimal ETH amount without trailing zeros, quantized to
// gwei resolution like EthToWei
func FormatEth(eth float64) string {
	quantized := math.Round(eth*1e9) / 1e9
	return strconv.FormatFloat(quantized, 'f', -1, 64)
}

// FormatWeiAsEth renders an arbitrary wei amount as a decimal ETH string.
// Used for refund amounts, which echo whatever the user actually sent.
func FormatWeiAsEth(wei *big.Int) string {
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(params.Ether))
	return f.Text('f', -1)
}
