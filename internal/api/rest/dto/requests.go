package dto

import (
	"errors"
	"strings"
)

// QuoteRequest prices a prospective swap
type QuoteRequest struct {
	UserTokenID     int64 `json:"userTokenId" binding:"required"`
	TreasuryTokenID int64 `json:"treasuryTokenId" binding:"required"`
}

// CreateIntentRequest opens a new swap intent
type CreateIntentRequest struct {
	UserFID         int64   `json:"userFid" binding:"required"`
	UserAddress     string  `json:"userAddress" binding:"required"`
	UserUsername    *string `json:"userUsername,omitempty"`
	UserTokenID     int64   `json:"userTokenId" binding:"required"`
	TreasuryTokenID int64   `json:"treasuryTokenId" binding:"required"`
}

// NFTReceivedRequest reports the arrival of the user's NFT in the vault
type NFTReceivedRequest struct {
	TokenID int64  `json:"tokenId" binding:"required"`
	TxHash  string `json:"txHash" binding:"required"`
}

// Validate checks the request body
func (r *NFTReceivedRequest) Validate() error {
	if strings.TrimSpace(r.TxHash) == "" {
		return errors.New("txHash is required")
	}
	return nil
}

// FeeReceivedRequest reports the arrival of the fee payment
type FeeReceivedRequest struct {
	AmountWei string `json:"amountWei" binding:"required"`
	TxHash    string `json:"txHash" binding:"required"`
}

// Validate checks the request body
func (r *FeeReceivedRequest) Validate() error {
	if strings.TrimSpace(r.AmountWei) == "" {
		return errors.New("amountWei is required")
	}
	if strings.TrimSpace(r.TxHash) == "" {
		return errors.New("txHash is required")
	}
	return nil
}

// CompleteRequest reports the confirmed treasury send
type CompleteRequest struct {
	TxHash string `json:"txHash" binding:"required"`
}

// Validate checks the request body
func (r *CompleteRequest) Validate() error {
	if strings.TrimSpace(r.TxHash) == "" {
		return errors.New("txHash is required")
	}
	return nil
}

// FailRequest closes an intent with a refund reason
type FailRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Validate checks the request body
func (r *FailRequest) Validate() error {
	if strings.TrimSpace(r.Reason) == "" {
		return errors.New("reason is required")
	}
	return nil
}
