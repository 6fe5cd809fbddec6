package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/protardio/treasury-swap/internal/domain"
	"github.com/protardio/treasury-swap/internal/fee"
	"github.com/protardio/treasury-swap/internal/logger"
	"github.com/protardio/treasury-swap/internal/rarity"
	"github.com/protardio/treasury-swap/internal/store"
	"github.com/protardio/treasury-swap/internal/store/schema"
)

// Config holds the swap engine's operational limits
type Config struct {
	// IntentTTL bounds how long an intent may wait for assets
	IntentTTL time.Duration
	// RateLimitMax is the number of intents a user may create per window
	RateLimitMax int64
	// RateLimitWindow is the sliding window for the rate limit
	RateLimitWindow time.Duration
}

// DefaultConfig returns the launch limits: 30 minute intents, 5 per user per hour
func DefaultConfig() Config {
	return Config{
		IntentTTL:       30 * time.Minute,
		RateLimitMax:    5,
		RateLimitWindow: time.Hour,
	}
}

// Engine orchestrates the swap intent lifecycle over the store. It holds no
// mutable in-process state: every concurrency decision is delegated to the
// store's conditional writes, so any number of engine instances can run
// against the same database.
type Engine struct {
	store  store.Store
	fees   *fee.Calculator
	params rarity.Params
	config Config
}

// New creates a swap engine
func New(s store.Store, fees *fee.Calculator, params rarity.Params, config Config) *Engine {
	if config.IntentTTL <= 0 {
		config.IntentTTL = 30 * time.Minute
	}
	if config.RateLimitMax <= 0 {
		config.RateLimitMax = 5
	}
	if config.RateLimitWindow <= 0 {
		config.RateLimitWindow = time.Hour
	}
	return &Engine{store: s, fees: fees, params: params, config: config}
}

// CreateIntentInput carries the parameters for a new swap intent
type CreateIntentInput struct {
	UserFID         int64
	UserAddress     string
	UserUsername    *string
	UserTokenID     int64
	TreasuryTokenID int64
}

// resolveRarity returns the rarity of a token from the rarity_scores cache.
// A token with no cached score is treated as common with score 0 rather than
// an error: external tokens may predate the first scoring pass. Any other
// store failure surfaces to the caller instead of silently quoting the
// minimum fee.
func (e *Engine) resolveRarity(ctx context.Context, tokenID int64) (rarity.Result, error) {
	row, err := e.store.GetRarityScore(ctx, tokenID)
	if errors.Is(err, domain.ErrRarityUnknown) {
		return rarity.Result{Score: 0, Tier: domain.TierCommon, Percentile: 100}, nil
	}
	if err != nil {
		return rarity.Result{}, err
	}
	return rarity.Result{
		Score: row.RarityScore,
		Tier:  row.RarityTier,
	}, nil
}

// treasuryRarity prefers the cached score row but falls back to the rarity
// columns frozen on the inventory row itself when no score exists yet
func (e *Engine) treasuryRarity(ctx context.Context, item *schema.TreasuryItem) (rarity.Result, error) {
	row, err := e.store.GetRarityScore(ctx, item.TokenID)
	if errors.Is(err, domain.ErrRarityUnknown) {
		return rarity.Result{Score: item.RarityScore, Tier: item.RarityTier}, nil
	}
	if err != nil {
		return rarity.Result{}, err
	}
	return rarity.Result{Score: row.RarityScore, Tier: row.RarityTier}, nil
}

// Quote prices a prospective swap without creating an intent or holding a
// reservation
func (e *Engine) Quote(ctx context.Context, userTokenID, treasuryTokenID int64) (*fee.Calculation, error) {
	if userTokenID <= 0 || treasuryTokenID <= 0 {
		return nil, domain.ErrInvalidTokenID
	}
	if userTokenID == treasuryTokenID {
		return nil, domain.ErrSelfSwap
	}

	item, err := e.store.GetTreasuryItem(ctx, treasuryTokenID)
	if err != nil {
		return nil, err
	}

	userRarity, err := e.resolveRarity(ctx, userTokenID)
	if err != nil {
		return nil, err
	}
	itemRarity, err := e.treasuryRarity(ctx, item)
	if err != nil {
		return nil, err
	}

	calc := e.fees.Calculate(userRarity, itemRarity)
	return &calc, nil
}

// CreateIntent validates, rate-limits, reserves the treasury item, and
// persists a new intent. The reservation is taken before the intent row is
// written and rolled back if the write fails, so a reserved item always has a
// live intent behind it.
func (e *Engine) CreateIntent(ctx context.Context, input CreateIntentInput) (*schema.SwapIntent, error) {
	if input.UserTokenID <= 0 || input.TreasuryTokenID <= 0 {
		return nil, domain.ErrInvalidTokenID
	}
	if input.UserTokenID == input.TreasuryTokenID {
		return nil, domain.ErrSelfSwap
	}
	if !common.IsHexAddress(input.UserAddress) {
		return nil, domain.ErrInvalidAddress
	}

	now := time.Now().UTC()

	recent, err := e.store.CountRecentIntentsByFID(ctx, input.UserFID, now.Add(-e.config.RateLimitWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if recent >= e.config.RateLimitMax {
		return nil, domain.ErrRateLimited
	}

	item, err := e.store.GetTreasuryItem(ctx, input.TreasuryTokenID)
	if err != nil {
		return nil, err
	}
	if !item.IsAvailable {
		return nil, domain.ErrItemNotAvailable
	}

	userRarity, err := e.resolveRarity(ctx, input.UserTokenID)
	if err != nil {
		return nil, err
	}
	itemRarity, err := e.treasuryRarity(ctx, item)
	if err != nil {
		return nil, err
	}
	calc := e.fees.Calculate(userRarity, itemRarity)

	intentID := ulid.Make().String()
	expiresAt := now.Add(e.config.IntentTTL)

	reserved, err := e.store.ReserveTreasuryItem(ctx, input.TreasuryTokenID, intentID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve treasury item: %w", err)
	}
	if !reserved {
		return nil, domain.ErrItemNotAvailable
	}

	intent := &schema.SwapIntent{
		ID:                 intentID,
		UserFID:            input.UserFID,
		UserAddress:        input.UserAddress,
		UserUsername:       input.UserUsername,
		UserTokenID:        input.UserTokenID,
		TreasuryTokenID:    input.TreasuryTokenID,
		UserRarityTier:     calc.UserRarity.Tier,
		TreasuryRarityTier: calc.TreasuryRarity.Tier,
		FeeAmountWei:       calc.FeeAmountWei,
		FeeAmountEth:       calc.FeeAmountEth,
		Status:             domain.SwapStatusPending,
		CreatedAt:          now,
		ExpiresAt:          expiresAt,
	}

	if err := e.store.CreateSwapIntent(ctx, intent); err != nil {
		// Roll the reservation back so the item is not stranded behind an
		// intent that never existed.
		if relErr := e.store.ReleaseTreasuryItem(ctx, input.TreasuryTokenID, intentID); relErr != nil {
			logger.ErrorCtx(ctx, relErr,
				zap.String("intent_id", intentID),
				zap.Int64("treasury_token_id", input.TreasuryTokenID))
		}
		return nil, fmt.Errorf("failed to create swap intent: %w", err)
	}

	logger.InfoCtx(ctx, "swap intent created",
		zap.String("intent_id", intentID),
		zap.Int64("user_fid", input.UserFID),
		zap.Int64("treasury_token_id", input.TreasuryTokenID),
		zap.String("fee_eth", calc.FeeAmountEth))

	return intent, nil
}

// MarkNFTReceived records the arrival of the user's NFT. Receiving a token id
// other than the one the intent promised refunds it and closes the intent.
func (e *Engine) MarkNFTReceived(ctx context.Context, intentID string, receivedTokenID int64, txHash string) (*schema.SwapIntent, error) {
	intent, err := e.store.GetSwapIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status.Terminal() {
		return nil, domain.ErrIntentTerminal
	}

	now := time.Now().UTC()

	if receivedTokenID != intent.UserTokenID {
		moved, err := e.store.TransitionIntent(ctx, intentID,
			[]domain.SwapStatus{domain.SwapStatusPending},
			domain.SwapStatusRefunded,
			store.IntentUpdate{UserNFTTxHash: &txHash, NFTReceivedAt: &now},
		)
		if err != nil {
			return nil, err
		}
		if !moved {
			return nil, domain.ErrInvalidTransition
		}

		if err := e.createRefund(ctx, intent, domain.RefundTypeNFT, domain.RefundReasonWrongAsset, &receivedTokenID, nil); err != nil {
			return nil, err
		}
		e.releaseItem(ctx, intent)

		logger.WarnCtx(ctx, "wrong asset received, intent refunded",
			zap.String("intent_id", intentID),
			zap.Int64("expected_token_id", intent.UserTokenID),
			zap.Int64("received_token_id", receivedTokenID))

		return e.store.GetSwapIntent(ctx, intentID)
	}

	moved, err := e.store.TransitionIntent(ctx, intentID,
		[]domain.SwapStatus{domain.SwapStatusPending},
		domain.SwapStatusNFTReceived,
		store.IntentUpdate{UserNFTTxHash: &txHash, NFTReceivedAt: &now},
	)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, domain.ErrInvalidTransition
	}

	return e.store.GetSwapIntent(ctx, intentID)
}

// MarkFeeReceived records the arrival of the fee payment. An amount below the
// quote refunds everything received so far and closes the intent; overpayment
// is accepted as sent.
func (e *Engine) MarkFeeReceived(ctx context.Context, intentID string, amountWei string, txHash string) (*schema.SwapIntent, error) {
	intent, err := e.store.GetSwapIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status.Terminal() {
		return nil, domain.ErrIntentTerminal
	}

	received, ok := new(big.Int).SetString(amountWei, 10)
	if !ok {
		return nil, fmt.Errorf("unparseable fee amount: %q", amountWei)
	}
	quoted, ok := new(big.Int).SetString(intent.FeeAmountWei, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt quoted fee on intent %s: %q", intentID, intent.FeeAmountWei)
	}

	now := time.Now().UTC()

	if received.Cmp(quoted) < 0 {
		moved, err := e.store.TransitionIntent(ctx, intentID,
			[]domain.SwapStatus{domain.SwapStatusNFTReceived},
			domain.SwapStatusRefunded,
			store.IntentUpdate{UserFeeTxHash: &txHash, FeeReceivedAt: &now},
		)
		if err != nil {
			return nil, err
		}
		if !moved {
			return nil, domain.ErrInvalidTransition
		}

		receivedEth := fee.FormatWeiAsEth(received)
		if err := e.createRefund(ctx, intent, domain.RefundTypeBoth, domain.RefundReasonInsufficientFee, &intent.UserTokenID, &receivedEth); err != nil {
			return nil, err
		}
		e.releaseItem(ctx, intent)

		logger.WarnCtx(ctx, "insufficient fee received, intent refunded",
			zap.String("intent_id", intentID),
			zap.String("quoted_wei", intent.FeeAmountWei),
			zap.String("received_wei", amountWei))

		return e.store.GetSwapIntent(ctx, intentID)
	}

	moved, err := e.store.TransitionIntent(ctx, intentID,
		[]domain.SwapStatus{domain.SwapStatusNFTReceived},
		domain.SwapStatusFeeReceived,
		store.IntentUpdate{UserFeeTxHash: &txHash, FeeReceivedAt: &now},
	)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, domain.ErrInvalidTransition
	}

	return e.store.GetSwapIntent(ctx, intentID)
}

// BeginSettlement moves a fully-funded intent into executing. The treasury
// reservation is re-verified first: if the item slipped away despite the
// reservation, the intent fails and both assets are refunded.
func (e *Engine) BeginSettlement(ctx context.Context, intentID string) (*schema.SwapIntent, error) {
	intent, err := e.store.GetSwapIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status.Terminal() {
		return nil, domain.ErrIntentTerminal
	}

	item, itemErr := e.store.GetTreasuryItem(ctx, intent.TreasuryTokenID)
	holdsReservation := itemErr == nil &&
		item.ReservedForIntentID != nil &&
		*item.ReservedForIntentID == intentID

	if !holdsReservation {
		moved, err := e.store.TransitionIntent(ctx, intentID,
			[]domain.SwapStatus{domain.SwapStatusFeeReceived},
			domain.SwapStatusFailed,
			store.IntentUpdate{},
		)
		if err != nil {
			return nil, err
		}
		if !moved {
			return nil, domain.ErrInvalidTransition
		}

		if err := e.createRefund(ctx, intent, domain.RefundTypeBoth, domain.RefundReasonSniped, &intent.UserTokenID, &intent.FeeAmountEth); err != nil {
			return nil, err
		}

		logger.ErrorCtx(ctx, fmt.Errorf("treasury item lost despite reservation"),
			zap.String("intent_id", intentID),
			zap.Int64("treasury_token_id", intent.TreasuryTokenID))

		return e.store.GetSwapIntent(ctx, intentID)
	}

	moved, err := e.store.TransitionIntent(ctx, intentID,
		[]domain.SwapStatus{domain.SwapStatusFeeReceived},
		domain.SwapStatusExecuting,
		store.IntentUpdate{},
	)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, domain.ErrInvalidTransition
	}

	return e.store.GetSwapIntent(ctx, intentID)
}

// CompleteSettlement records the confirmed treasury send: the intent
// completes, the swap is appended to the audit ledger, and the inventory row
// is deleted because the token has left custody.
func (e *Engine) CompleteSettlement(ctx context.Context, intentID string, treasuryTxHash string) (*schema.SwapIntent, error) {
	intent, err := e.store.GetSwapIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status.Terminal() {
		return nil, domain.ErrIntentTerminal
	}

	now := time.Now().UTC()
	moved, err := e.store.TransitionIntent(ctx, intentID,
		[]domain.SwapStatus{domain.SwapStatusExecuting},
		domain.SwapStatusCompleted,
		store.IntentUpdate{TreasurySendTxHash: &treasuryTxHash, CompletedAt: &now},
	)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, domain.ErrInvalidTransition
	}

	var nftTxHash string
	if intent.UserNFTTxHash != nil {
		nftTxHash = *intent.UserNFTTxHash
	}
	swap := &schema.CompletedSwap{
		IntentID:           intent.ID,
		UserFID:            intent.UserFID,
		UserAddress:        intent.UserAddress,
		UserUsername:       intent.UserUsername,
		UserTokenID:        intent.UserTokenID,
		TreasuryTokenID:    intent.TreasuryTokenID,
		UserRarityTier:     intent.UserRarityTier,
		TreasuryRarityTier: intent.TreasuryRarityTier,
		FeeAmountEth:       intent.FeeAmountEth,
		UserNFTTxHash:      nftTxHash,
		TreasurySendTxHash: treasuryTxHash,
		CreatedAt:          intent.CreatedAt,
		CompletedAt:        now,
	}
	if err := e.store.CreateCompletedSwap(ctx, swap); err != nil {
		return nil, err
	}

	if err := e.store.RemoveTreasuryItem(ctx, intent.TreasuryTokenID); err != nil {
		logger.ErrorCtx(ctx, err,
			zap.String("intent_id", intentID),
			zap.Int64("treasury_token_id", intent.TreasuryTokenID))
	}

	logger.InfoCtx(ctx, "swap completed",
		zap.String("intent_id", intentID),
		zap.Int64("user_fid", intent.UserFID),
		zap.Int64("treasury_token_id", intent.TreasuryTokenID))

	return e.store.GetSwapIntent(ctx, intentID)
}

// FailSettlement fails a non-terminal intent, refunding whatever assets were
// received, and releases the reservation
func (e *Engine) FailSettlement(ctx context.Context, intentID string, reason domain.RefundReason) (*schema.SwapIntent, error) {
	if !reason.Valid() {
		return nil, fmt.Errorf("unknown refund reason: %q", reason)
	}

	intent, err := e.store.GetSwapIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status.Terminal() {
		return nil, domain.ErrIntentTerminal
	}

	moved, err := e.store.TransitionIntent(ctx, intentID,
		[]domain.SwapStatus{
			domain.SwapStatusPending, domain.SwapStatusNFTReceived,
			domain.SwapStatusFeeReceived, domain.SwapStatusExecuting,
		},
		domain.SwapStatusFailed,
		store.IntentUpdate{},
	)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, domain.ErrInvalidTransition
	}

	if err := e.refundReceivedAssets(ctx, intent, reason); err != nil {
		return nil, err
	}
	e.releaseItem(ctx, intent)

	logger.WarnCtx(ctx, "swap intent failed",
		zap.String("intent_id", intentID),
		zap.String("reason", string(reason)))

	return e.store.GetSwapIntent(ctx, intentID)
}

// ExpireStale is the sweep pass. Pending intents past their deadline expire
// quietly (nothing was received, nothing to refund); intents that already
// received assets fail with a refund instead. Conditional transitions make
// the pass idempotent under overlapping sweeps.
func (e *Engine) ExpireStale(ctx context.Context, now time.Time) (expired, failed int, err error) {
	pending, err := e.store.ListExpiredIntents(ctx, now, []domain.SwapStatus{domain.SwapStatusPending})
	if err != nil {
		return 0, 0, err
	}
	for i := range pending {
		intent := &pending[i]
		moved, err := e.store.TransitionIntent(ctx, intent.ID,
			[]domain.SwapStatus{domain.SwapStatusPending},
			domain.SwapStatusExpired,
			store.IntentUpdate{},
		)
		if err != nil {
			return expired, failed, err
		}
		if !moved {
			continue
		}
		e.releaseItem(ctx, intent)
		expired++
	}

	received, err := e.store.ListExpiredIntents(ctx, now, []domain.SwapStatus{
		domain.SwapStatusNFTReceived, domain.SwapStatusFeeReceived,
	})
	if err != nil {
		return expired, failed, err
	}
	for i := range received {
		intent := &received[i]
		moved, err := e.store.TransitionIntent(ctx, intent.ID,
			[]domain.SwapStatus{domain.SwapStatusNFTReceived, domain.SwapStatusFeeReceived},
			domain.SwapStatusFailed,
			store.IntentUpdate{},
		)
		if err != nil {
			return expired, failed, err
		}
		if !moved {
			continue
		}
		if err := e.refundReceivedAssets(ctx, intent, domain.RefundReasonExpiredAfterReceipt); err != nil {
			return expired, failed, err
		}
		e.releaseItem(ctx, intent)
		failed++
	}

	return expired, failed, nil
}

// History bundles a user's settled swaps and their open intents
type History struct {
	Swaps      []schema.CompletedSwap
	TotalSwaps int64
	Intents    []schema.SwapIntent
}

// UserHistory returns a page of a user's completed swaps plus any intents
// still in flight
func (e *Engine) UserHistory(ctx context.Context, fid int64, limit, offset int) (*History, error) {
	swaps, total, err := e.store.ListCompletedSwapsByFID(ctx, fid, limit, offset)
	if err != nil {
		return nil, err
	}

	all, err := e.store.ListIntentsByFID(ctx, fid, 50)
	if err != nil {
		return nil, err
	}
	open := make([]schema.SwapIntent, 0, len(all))
	for _, intent := range all {
		if !intent.Status.Terminal() {
			open = append(open, intent)
		}
	}

	return &History{Swaps: swaps, TotalSwaps: total, Intents: open}, nil
}

// IntentStatus returns an intent plus any refunds raised against it
func (e *Engine) IntentStatus(ctx context.Context, intentID string) (*schema.SwapIntent, []schema.Refund, error) {
	intent, err := e.store.GetSwapIntent(ctx, intentID)
	if err != nil {
		return nil, nil, err
	}

	refunds, err := e.store.ListRefundsByIntent(ctx, intentID)
	if err != nil {
		return nil, nil, err
	}

	return intent, refunds, nil
}

// RefundsFor returns the refunds destined for a wallet address
func (e *Engine) RefundsFor(ctx context.Context, address string) ([]schema.Refund, error) {
	if !common.IsHexAddress(address) {
		return nil, domain.ErrInvalidAddress
	}
	return e.store.ListRefundsByAddress(ctx, address)
}

// refundReceivedAssets raises a refund covering whatever the milestone
// timestamps say was received. An intent that received nothing gets no refund
// row.
func (e *Engine) refundReceivedAssets(ctx context.Context, intent *schema.SwapIntent, reason domain.RefundReason) error {
	gotNFT := intent.NFTReceivedAt != nil
	gotFee := intent.FeeReceivedAt != nil

	switch {
	case gotNFT && gotFee:
		return e.createRefund(ctx, intent, domain.RefundTypeBoth, reason, &intent.UserTokenID, &intent.FeeAmountEth)
	case gotNFT:
		return e.createRefund(ctx, intent, domain.RefundTypeNFT, reason, &intent.UserTokenID, nil)
	case gotFee:
		return e.createRefund(ctx, intent, domain.RefundTypeFee, reason, nil, &intent.FeeAmountEth)
	default:
		return nil
	}
}

func (e *Engine) createRefund(ctx context.Context, intent *schema.SwapIntent, typ domain.RefundType, reason domain.RefundReason, tokenID *int64, feeEth *string) error {
	refund := &schema.Refund{
		IntentID:     intent.ID,
		RefundType:   typ,
		NFTTokenID:   tokenID,
		FeeAmountEth: feeEth,
		UserAddress:  intent.UserAddress,
		Status:       domain.RefundStatusPending,
		Reason:       reason,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.CreateRefund(ctx, refund); err != nil {
		return fmt.Errorf("failed to record refund for intent %s: %w", intent.ID, err)
	}
	return nil
}

// releaseItem returns the intent's treasury reservation to the pool. The
// release only applies while the reservation still belongs to this intent,
// so an expiry racing a fresh claim cannot free the new holder's item.
// Release failures are logged, not returned: the lapsed-reservation sweep
// will pick the item up on its next pass.
func (e *Engine) releaseItem(ctx context.Context, intent *schema.SwapIntent) {
	if err := e.store.ReleaseTreasuryItem(ctx, intent.TreasuryTokenID, intent.ID); err != nil {
		logger.ErrorCtx(ctx, err,
			zap.String("intent_id", intent.ID),
			zap.Int64("treasury_token_id", intent.TreasuryTokenID))
	}
}
