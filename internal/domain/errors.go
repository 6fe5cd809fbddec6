package domain

import "errors"

// Validation errors: caller mistakes, surfaced synchronously with a specific message.
var (
	// ErrSelfSwap is returned when both token ids of a quote or intent are identical
	ErrSelfSwap = errors.New("Cannot swap NFT with itself")

	// ErrInvalidTokenID is returned when a token id is missing or not a positive integer
	ErrInvalidTokenID = errors.New("invalid token id")

	// ErrInvalidAddress is returned when a wallet address is not a valid hex address
	ErrInvalidAddress = errors.New("invalid wallet address")

	// ErrInvalidTier is returned for an unknown rarity tier value
	ErrInvalidTier = errors.New("invalid rarity tier")

	// ErrInvalidSort is returned for an unknown sort key
	ErrInvalidSort = errors.New("invalid sort key")
)

// Resource-state errors: the caller may legitimately retry with a different token.
var (
	// ErrItemNotFound is returned when a treasury item does not exist
	ErrItemNotFound = errors.New("treasury item not found")

	// ErrItemNotAvailable is returned when a treasury item cannot be reserved
	ErrItemNotAvailable = errors.New("treasury item not available")

	// ErrIntentNotFound is returned when a swap intent does not exist
	ErrIntentNotFound = errors.New("swap intent not found")

	// ErrIntentTerminal is returned when an operation targets an intent already in a terminal state
	ErrIntentTerminal = errors.New("swap intent already in a terminal state")

	// ErrInvalidTransition is returned when a status change violates the state machine
	ErrInvalidTransition = errors.New("invalid swap status transition")

	// ErrRateLimited is returned when a user exceeds the intent creation rate limit
	ErrRateLimited = errors.New("too many swap attempts")

	// ErrRarityUnknown is returned when no rarity score exists for a token
	ErrRarityUnknown = errors.New("no rarity score recorded for token")
)
