package rest

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/protardio/treasury-swap/internal/api/rest/dto"
	"github.com/protardio/treasury-swap/internal/domain"
	"github.com/protardio/treasury-swap/internal/engine"
	"github.com/protardio/treasury-swap/internal/store"
	"github.com/protardio/treasury-swap/internal/types"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// GetQuote prices a prospective swap without creating an intent
	// POST /api/v1/swap/quote
	GetQuote(c *gin.Context)

	// ListTreasury retrieves a page of treasury inventory
	// GET /api/v1/swap/treasury?rarityTier=<tier>&available=<bool>&sortBy=<sort>&page=<page>&pageSize=<size>
	ListTreasury(c *gin.Context)

	// GetTreasuryStats summarizes the treasury inventory
	// GET /api/v1/swap/treasury/stats
	GetTreasuryStats(c *gin.Context)

	// CreateIntent opens a new swap intent and reserves the treasury item
	// POST /api/v1/swap/intents
	CreateIntent(c *gin.Context)

	// GetIntent retrieves an intent plus any refunds raised against it
	// GET /api/v1/swap/intents/:id
	GetIntent(c *gin.Context)

	// NFTReceived reports the arrival of the user's NFT (requires authentication)
	// POST /api/v1/swap/intents/:id/nft-received
	NFTReceived(c *gin.Context)

	// FeeReceived reports the arrival of the fee payment (requires authentication)
	// POST /api/v1/swap/intents/:id/fee-received
	FeeReceived(c *gin.Context)

	// Execute moves a fully-funded intent into settlement (requires authentication)
	// POST /api/v1/swap/intents/:id/execute
	Execute(c *gin.Context)

	// Complete records the confirmed treasury send (requires authentication)
	// POST /api/v1/swap/intents/:id/complete
	Complete(c *gin.Context)

	// Fail closes an intent with a refund reason (requires authentication)
	// POST /api/v1/swap/intents/:id/fail
	Fail(c *gin.Context)

	// GetHistory retrieves a user's completed swaps and open intents
	// GET /api/v1/swap/history?fid=<fid>&limit=<limit>&offset=<offset>
	GetHistory(c *gin.Context)

	// GetRefunds retrieves the refunds destined for a wallet address
	// GET /api/v1/swap/refunds?address=<address>
	GetRefunds(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	engine          *engine.Engine
	store           store.Store
	defaultPageSize int
	maxPageSize     int
}

// NewHandler creates a new REST API handler
func NewHandler(eng *engine.Engine, st store.Store, defaultPageSize, maxPageSize int) Handler {
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	if maxPageSize <= 0 {
		maxPageSize = 50
	}
	return &handler{
		engine:          eng,
		store:           st,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// GetQuote prices a prospective swap without creating an intent
func (h *handler) GetQuote(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	calc, err := h.engine.Quote(c.Request.Context(), req.UserTokenID, req.TreasuryTokenID)
	if err != nil {
		respondDomainError(c, err, "Failed to quote swap")
		return
	}

	respondOK(c, calc)
}

// ListTreasury retrieves a page of treasury inventory
func (h *handler) ListTreasury(c *gin.Context) {
	filter, err := ParseListTreasuryQuery(c, h.defaultPageSize, h.maxPageSize)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	items, total, err := h.store.ListTreasuryItems(c.Request.Context(), *filter)
	if err != nil {
		respondInternalError(c, err, "Failed to list treasury items")
		return
	}

	stats, err := h.store.GetTreasuryStats(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "Failed to get treasury sync time")
		return
	}

	pageSize := int64(filter.PageSize)
	totalPages := (total + pageSize - 1) / pageSize

	respondOK(c, dto.TreasuryListResponse{
		Items:        types.TreasuryItemsToDTO(items),
		Total:        total,
		Page:         filter.Page,
		PageSize:     filter.PageSize,
		TotalPages:   totalPages,
		HasMore:      int64(filter.Page)*pageSize < total,
		LastSyncedAt: stats.LastSyncedAt,
	})
}

// GetTreasuryStats summarizes the treasury inventory
func (h *handler) GetTreasuryStats(c *gin.Context) {
	stats, err := h.store.GetTreasuryStats(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "Failed to get treasury stats")
		return
	}

	respondOK(c, dto.TreasuryStatsResponse{
		TotalItems:     stats.TotalItems,
		AvailableItems: stats.AvailableItems,
		ByTier:         stats.ByTier,
		LastSyncedAt:   stats.LastSyncedAt,
	})
}

// CreateIntent opens a new swap intent and reserves the treasury item
func (h *handler) CreateIntent(c *gin.Context) {
	var req dto.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	intent, err := h.engine.CreateIntent(c.Request.Context(), engine.CreateIntentInput{
		UserFID:         req.UserFID,
		UserAddress:     req.UserAddress,
		UserUsername:    req.UserUsername,
		UserTokenID:     req.UserTokenID,
		TreasuryTokenID: req.TreasuryTokenID,
	})
	if err != nil {
		respondDomainError(c, err, "Failed to create swap intent")
		return
	}

	respondCreated(c, types.SwapIntentToDTO(intent))
}

// GetIntent retrieves an intent plus any refunds raised against it
func (h *handler) GetIntent(c *gin.Context) {
	intentID := c.Param("id")
	if intentID == "" {
		respondBadRequest(c, "Intent id is required")
		return
	}

	intent, refunds, err := h.engine.IntentStatus(c.Request.Context(), intentID)
	if err != nil {
		respondDomainError(c, err, "Failed to get swap intent")
		return
	}

	respondOK(c, dto.IntentStatusResponse{
		Intent:  types.SwapIntentToDTO(intent),
		Refunds: types.RefundsToDTO(refunds),
	})
}

// NFTReceived reports the arrival of the user's NFT
func (h *handler) NFTReceived(c *gin.Context) {
	var req dto.NFTReceivedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	intent, err := h.engine.MarkNFTReceived(c.Request.Context(), c.Param("id"), req.TokenID, req.TxHash)
	if err != nil {
		respondDomainError(c, err, "Failed to record NFT receipt")
		return
	}

	respondOK(c, types.SwapIntentToDTO(intent))
}

// FeeReceived reports the arrival of the fee payment
func (h *handler) FeeReceived(c *gin.Context) {
	var req dto.FeeReceivedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	intent, err := h.engine.MarkFeeReceived(c.Request.Context(), c.Param("id"), req.AmountWei, req.TxHash)
	if err != nil {
		respondDomainError(c, err, "Failed to record fee receipt")
		return
	}

	respondOK(c, types.SwapIntentToDTO(intent))
}

// Execute moves a fully-funded intent into settlement
func (h *handler) Execute(c *gin.Context) {
	intent, err := h.engine.BeginSettlement(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err, "Failed to begin settlement")
		return
	}

	respondOK(c, types.SwapIntentToDTO(intent))
}

// Complete records the confirmed treasury send
func (h *handler) Complete(c *gin.Context) {
	var req dto.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	intent, err := h.engine.CompleteSettlement(c.Request.Context(), c.Param("id"), req.TxHash)
	if err != nil {
		respondDomainError(c, err, "Failed to complete settlement")
		return
	}

	respondOK(c, types.SwapIntentToDTO(intent))
}

// Fail closes an intent with a refund reason
func (h *handler) Fail(c *gin.Context) {
	var req dto.FailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	reason := domain.RefundReason(req.Reason)
	if !reason.Valid() {
		respondBadRequest(c, fmt.Sprintf("Unknown refund reason: %q", req.Reason))
		return
	}

	intent, err := h.engine.FailSettlement(c.Request.Context(), c.Param("id"), reason)
	if err != nil {
		respondDomainError(c, err, "Failed to fail swap intent")
		return
	}

	respondOK(c, types.SwapIntentToDTO(intent))
}

// GetHistory retrieves a user's completed swaps and open intents
func (h *handler) GetHistory(c *gin.Context) {
	params, err := ParseHistoryQuery(c, h.defaultPageSize, h.maxPageSize)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	history, err := h.engine.UserHistory(c.Request.Context(), params.FID, params.Limit, params.Offset)
	if err != nil {
		respondInternalError(c, err, "Failed to get swap history")
		return
	}

	respondOK(c, dto.SwapHistoryResponse{
		Swaps:       types.CompletedSwapsToDTO(history.Swaps),
		TotalSwaps:  history.TotalSwaps,
		OpenIntents: types.SwapIntentsToDTO(history.Intents),
	})
}

// GetRefunds retrieves the refunds destined for a wallet address
func (h *handler) GetRefunds(c *gin.Context) {
	var params RefundsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	refunds, err := h.engine.RefundsFor(c.Request.Context(), params.Address)
	if err != nil {
		respondDomainError(c, err, "Failed to get refunds")
		return
	}

	respondOK(c, types.RefundsToDTO(refunds))
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "treasury-swap-api",
	})
}
