// Package types converts persistence rows into wire representations.
package types

import (
	"github.com/protardio/treasury-swap/internal/api/rest/dto"
	"github.com/protardio/treasury-swap/internal/store/schema"
)

// TreasuryItemToDTO converts a treasury inventory row to its wire form.
// Reservation ownership stays internal: only the deadline is exposed so
// clients can show when an unavailable item frees up.
func TreasuryItemToDTO(item *schema.TreasuryItem) dto.TreasuryItem {
	return dto.TreasuryItem{
		TokenID:       item.TokenID,
		Name:          item.Name,
		ImageURL:      item.ImageURL,
		ThumbnailURL:  item.ThumbnailURL,
		Attributes:    item.Attributes,
		RarityTier:    item.RarityTier,
		RarityScore:   item.RarityScore,
		IsAvailable:   item.IsAvailable,
		ReservedUntil: item.ReservedUntil,
	}
}

// TreasuryItemsToDTO converts a page of treasury inventory rows
func TreasuryItemsToDTO(items []schema.TreasuryItem) []dto.TreasuryItem {
	out := make([]dto.TreasuryItem, 0, len(items))
	for i := range items {
		out = append(out, TreasuryItemToDTO(&items[i]))
	}
	return out
}

// SwapIntentToDTO converts a swap intent row to its wire form
func SwapIntentToDTO(intent *schema.SwapIntent) dto.SwapIntent {
	return dto.SwapIntent{
		ID:                 intent.ID,
		UserFID:            intent.UserFID,
		UserAddress:        intent.UserAddress,
		UserUsername:       intent.UserUsername,
		UserTokenID:        intent.UserTokenID,
		TreasuryTokenID:    intent.TreasuryTokenID,
		UserRarityTier:     intent.UserRarityTier,
		TreasuryRarityTier: intent.TreasuryRarityTier,
		FeeAmountWei:       intent.FeeAmountWei,
		FeeAmountEth:       intent.FeeAmountEth,
		Status:             intent.Status,
		UserNFTTxHash:      intent.UserNFTTxHash,
		UserFeeTxHash:      intent.UserFeeTxHash,
		TreasurySendTxHash: intent.TreasurySendTxHash,
		CreatedAt:          intent.CreatedAt,
		NFTReceivedAt:      intent.NFTReceivedAt,
		FeeReceivedAt:      intent.FeeReceivedAt,
		CompletedAt:        intent.CompletedAt,
		ExpiresAt:          intent.ExpiresAt,
	}
}

// SwapIntentsToDTO converts a slice of swap intent rows
func SwapIntentsToDTO(intents []schema.SwapIntent) []dto.SwapIntent {
	out := make([]dto.SwapIntent, 0, len(intents))
	for i := range intents {
		out = append(out, SwapIntentToDTO(&intents[i]))
	}
	return out
}

// RefundToDTO converts a refund row to its wire form
func RefundToDTO(refund *schema.Refund) dto.Refund {
	return dto.Refund{
		ID:           refund.ID,
		IntentID:     refund.IntentID,
		RefundType:   refund.RefundType,
		NFTTokenID:   refund.NFTTokenID,
		FeeAmountEth: refund.FeeAmountEth,
		UserAddress:  refund.UserAddress,
		RefundTxHash: refund.RefundTxHash,
		Status:       refund.Status,
		Reason:       refund.Reason,
		CreatedAt:    refund.CreatedAt,
		CompletedAt:  refund.CompletedAt,
	}
}

// RefundsToDTO converts a slice of refund rows
func RefundsToDTO(refunds []schema.Refund) []dto.Refund {
	out := make([]dto.Refund, 0, len(refunds))
	for i := range refunds {
		out = append(out, RefundToDTO(&refunds[i]))
	}
	return out
}

// CompletedSwapToDTO converts a settled swap row to its wire form
func CompletedSwapToDTO(swap *schema.CompletedSwap) dto.CompletedSwap {
	return dto.CompletedSwap{
		IntentID:           swap.IntentID,
		UserFID:            swap.UserFID,
		UserAddress:        swap.UserAddress,
		UserUsername:       swap.UserUsername,
		UserTokenID:        swap.UserTokenID,
		TreasuryTokenID:    swap.TreasuryTokenID,
		UserRarityTier:     swap.UserRarityTier,
		TreasuryRarityTier: swap.TreasuryRarityTier,
		FeeAmountEth:       swap.FeeAmountEth,
		UserNFTTxHash:      swap.UserNFTTxHash,
		TreasurySendTxHash: swap.TreasurySendTxHash,
		CreatedAt:          swap.CreatedAt,
		CompletedAt:        swap.CompletedAt,
	}
}

// CompletedSwapsToDTO converts a slice of settled swap rows
func CompletedSwapsToDTO(swaps []schema.CompletedSwap) []dto.CompletedSwap {
	out := make([]dto.CompletedSwap, 0, len(swaps))
	for i := range swaps {
		out = append(out, CompletedSwapToDTO(&swaps[i]))
	}
	return out
}
