package domain

// RarityTier represents one of the four ordered rarity buckets
type RarityTier string

const (
	// TierCommon is the lowest rarity tier (score < 40)
	TierCommon RarityTier = "common"
	// TierUncommon represents scores in [40, 60)
	TierUncommon RarityTier = "uncommon"
	// TierRare represents scores in [60, 80)
	TierRare RarityTier = "rare"
	// TierLegendary is the highest rarity tier (score >= 80)
	TierLegendary RarityTier = "legendary"
)

// tierOrder maps tiers to their ordering value (common < uncommon < rare < legendary)
var tierOrder = map[RarityTier]int{
	TierCommon:    0,
	TierUncommon:  1,
	TierRare:      2,
	TierLegendary: 3,
}

// Valid reports whether the tier is one of the four known tiers
func (t RarityTier) Valid() bool {
	_, ok := tierOrder[t]
	return ok
}

// Compare returns -1, 0, or 1 as t orders before, equal to, or after other
func (t RarityTier) Compare(other RarityTier) int {
	a, b := tierOrder[t], tierOrder[other]
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// AllTiers returns the four tiers in ascending rarity order
func AllTiers() []RarityTier {
	return []RarityTier{TierCommon, TierUncommon, TierRare, TierLegendary}
}

// Trait is a single trait type/value pair from token metadata
type Trait struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// SwapStatus represents the state of a swap intent in its lifecycle
type SwapStatus string

const (
	// SwapStatusPending means the intent is created and the treasury reservation is held
	SwapStatusPending SwapStatus = "pending"
	// SwapStatusNFTReceived means the user's offered NFT arrived at the swap address
	SwapStatusNFTReceived SwapStatus = "nft_received"
	// SwapStatusFeeReceived means the required fee also arrived
	SwapStatusFeeReceived SwapStatus = "fee_received"
	// SwapStatusExecuting means the treasury send is being attempted
	SwapStatusExecuting SwapStatus = "executing"
	// SwapStatusCompleted means the treasury send confirmed (terminal)
	SwapStatusCompleted SwapStatus = "completed"
	// SwapStatusFailed means the intent could not complete (terminal)
	SwapStatusFailed SwapStatus = "failed"
	// SwapStatusExpired means a pending intent timed out with nothing received (terminal)
	SwapStatusExpired SwapStatus = "expired"
	// SwapStatusRefunded means received assets were returned to the user (terminal)
	SwapStatusRefunded SwapStatus = "refunded"
)

// Terminal reports whether the status is a terminal state
func (s SwapStatus) Terminal() bool {
	switch s {
	case SwapStatusCompleted, SwapStatusFailed, SwapStatusExpired, SwapStatusRefunded:
		return true
	}
	return false
}

// Valid reports whether the status is a known state
func (s SwapStatus) Valid() bool {
	switch s {
	case SwapStatusPending, SwapStatusNFTReceived, SwapStatusFeeReceived,
		SwapStatusExecuting, SwapStatusCompleted, SwapStatusFailed,
		SwapStatusExpired, SwapStatusRefunded:
		return true
	}
	return false
}

// transitions is the swap intent state machine graph.
// pending -> nft_received -> fee_received -> executing -> completed,
// pending -> expired, and any non-terminal state -> failed/refunded.
var transitions = map[SwapStatus][]SwapStatus{
	SwapStatusPending:     {SwapStatusNFTReceived, SwapStatusExpired, SwapStatusFailed, SwapStatusRefunded},
	SwapStatusNFTReceived: {SwapStatusFeeReceived, SwapStatusFailed, SwapStatusRefunded},
	SwapStatusFeeReceived: {SwapStatusExecuting, SwapStatusFailed, SwapStatusRefunded},
	SwapStatusExecuting:   {SwapStatusCompleted, SwapStatusFailed, SwapStatusRefunded},
}

// CanTransition reports whether the state machine allows moving from s to next
func (s SwapStatus) CanTransition(next SwapStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RefundType identifies which assets a refund returns
type RefundType string

const (
	// RefundTypeNFT returns only the user's NFT
	RefundTypeNFT RefundType = "nft"
	// RefundTypeFee returns only the fee payment
	RefundTypeFee RefundType = "fee"
	// RefundTypeBoth returns the NFT and the fee
	RefundTypeBoth RefundType = "both"
)

// RefundStatus represents the settlement state of a refund
type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusFailed     RefundStatus = "failed"
)

// RefundReason is a fixed taxonomy of refund causes so user-facing messaging
// can be generated mechanically rather than from free text
type RefundReason string

const (
	// RefundReasonSniped means the treasury item became unavailable despite an active reservation
	RefundReasonSniped RefundReason = "sniped"
	// RefundReasonWrongAsset means the user sent a different NFT than the intent promised
	RefundReasonWrongAsset RefundReason = "wrong-asset-sent"
	// RefundReasonInsufficientFee means the fee received was below the quoted amount
	RefundReasonInsufficientFee RefundReason = "insufficient-fee"
	// RefundReasonNotOwner means the user did not own the NFT they offered
	RefundReasonNotOwner RefundReason = "not-owner"
	// RefundReasonItemUnavailable means the treasury item was unavailable at settlement
	RefundReasonItemUnavailable RefundReason = "treasury-item-unavailable"
	// RefundReasonExpiredAfterReceipt means the intent timed out after assets were received
	RefundReasonExpiredAfterReceipt RefundReason = "intent-expired-after-receipt"
	// RefundReasonRateLimited means the intent was rejected by the rate limiter
	RefundReasonRateLimited RefundReason = "rate-limited"
)

// Valid reports whether the reason belongs to the taxonomy
func (r RefundReason) Valid() bool {
	switch r {
	case RefundReasonSniped, RefundReasonWrongAsset, RefundReasonInsufficientFee,
		RefundReasonNotOwner, RefundReasonItemUnavailable,
		RefundReasonExpiredAfterReceipt, RefundReasonRateLimited:
		return true
	}
	return false
}
