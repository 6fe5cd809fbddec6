package dto

import (
	"time"

	"github.com/protardio/treasury-swap/internal/domain"
)

// TreasuryItem represents a treasury token on the wire
type TreasuryItem struct {
	TokenID       int64             `json:"tokenId"`
	Name          *string           `json:"name,omitempty"`
	ImageURL      *string           `json:"imageUrl,omitempty"`
	ThumbnailURL  *string           `json:"thumbnailUrl,omitempty"`
	Attributes    []domain.Trait    `json:"attributes"`
	RarityTier    domain.RarityTier `json:"rarityTier"`
	RarityScore   float64           `json:"rarityScore"`
	IsAvailable   bool              `json:"isAvailable"`
	ReservedUntil *time.Time        `json:"reservedUntil,omitempty"`
}

// TreasuryListResponse is a page of treasury inventory
type TreasuryListResponse struct {
	Items        []TreasuryItem `json:"items"`
	Total        int64          `json:"total"`
	Page         int            `json:"page"`
	PageSize     int            `json:"pageSize"`
	TotalPages   int64          `json:"totalPages"`
	HasMore      bool           `json:"hasMore"`
	LastSyncedAt *time.Time     `json:"lastSyncedAt,omitempty"`
}

// TreasuryStatsResponse summarizes the treasury inventory
type TreasuryStatsResponse struct {
	TotalItems     int64                       `json:"totalItems"`
	AvailableItems int64                       `json:"availableItems"`
	ByTier         map[domain.RarityTier]int64 `json:"byTier"`
	LastSyncedAt   *time.Time                  `json:"lastSyncedAt,omitempty"`
}

// SwapIntent represents a swap intent on the wire
type SwapIntent struct {
	ID                 string            `json:"id"`
	UserFID            int64             `json:"userFid"`
	UserAddress        string            `json:"userAddress"`
	UserUsername       *string           `json:"userUsername,omitempty"`
	UserTokenID        int64             `json:"userTokenId"`
	TreasuryTokenID    int64             `json:"treasuryTokenId"`
	UserRarityTier     domain.RarityTier `json:"userRarityTier"`
	TreasuryRarityTier domain.RarityTier `json:"treasuryRarityTier"`
	FeeAmountWei       string            `json:"feeAmountWei"`
	FeeAmountEth       string            `json:"feeAmountEth"`
	Status             domain.SwapStatus `json:"status"`
	UserNFTTxHash      *string           `json:"userNftTxHash,omitempty"`
	UserFeeTxHash      *string           `json:"userFeeTxHash,omitempty"`
	TreasurySendTxHash *string           `json:"treasurySendTxHash,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	NFTReceivedAt      *time.Time        `json:"nftReceivedAt,omitempty"`
	FeeReceivedAt      *time.Time        `json:"feeReceivedAt,omitempty"`
	CompletedAt        *time.Time        `json:"completedAt,omitempty"`
	ExpiresAt          time.Time         `json:"expiresAt"`
}

// Refund represents a refund obligation on the wire
type Refund struct {
	ID           string              `json:"id"`
	IntentID     string              `json:"intentId"`
	RefundType   domain.RefundType   `json:"refundType"`
	NFTTokenID   *int64              `json:"nftTokenId,omitempty"`
	FeeAmountEth *string             `json:"feeAmountEth,omitempty"`
	UserAddress  string              `json:"userAddress"`
	RefundTxHash *string             `json:"refundTxHash,omitempty"`
	Status       domain.RefundStatus `json:"status"`
	Reason       domain.RefundReason `json:"reason"`
	CreatedAt    time.Time           `json:"createdAt"`
	CompletedAt  *time.Time          `json:"completedAt,omitempty"`
}

// CompletedSwap represents a settled swap on the wire
type CompletedSwap struct {
	IntentID           string            `json:"intentId"`
	UserFID            int64             `json:"userFid"`
	UserAddress        string            `json:"userAddress"`
	UserUsername       *string           `json:"userUsername,omitempty"`
	UserTokenID        int64             `json:"userTokenId"`
	TreasuryTokenID    int64             `json:"treasuryTokenId"`
	UserRarityTier     domain.RarityTier `json:"userRarityTier"`
	TreasuryRarityTier domain.RarityTier `json:"treasuryRarityTier"`
	FeeAmountEth       string            `json:"feeAmountEth"`
	UserNFTTxHash      string            `json:"userNftTxHash"`
	TreasurySendTxHash string            `json:"treasurySendTxHash"`
	CreatedAt          time.Time         `json:"createdAt"`
	CompletedAt        time.Time         `json:"completedAt"`
}

// IntentStatusResponse bundles an intent with any refunds raised against it
type IntentStatusResponse struct {
	Intent  SwapIntent `json:"intent"`
	Refunds []Refund   `json:"refunds"`
}

// SwapHistoryResponse bundles a user's settled swaps and open intents
type SwapHistoryResponse struct {
	Swaps       []CompletedSwap `json:"swaps"`
	TotalSwaps  int64           `json:"totalSwaps"`
	OpenIntents []SwapIntent    `json:"openIntents"`
}
