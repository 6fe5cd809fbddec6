package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/protardio/treasury-swap/internal/domain"
	"github.com/protardio/treasury-swap/internal/store"
)

// ListTreasuryQueryParams holds query parameters for GET /swap/treasury
type ListTreasuryQueryParams struct {
	RarityTier string `form:"rarityTier"`
	Available  bool   `form:"available"`
	SortBy     string `form:"sortBy,default=rarity-desc"`
	Page       int    `form:"page,default=1"`
	PageSize   int    `form:"pageSize"`
}

// ParseListTreasuryQuery parses and validates query parameters for the
// treasury listing
func ParseListTreasuryQuery(c *gin.Context, defaultPageSize, maxPageSize int) (*store.TreasuryFilter, error) {
	var params ListTreasuryQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	filter := store.TreasuryFilter{
		AvailableOnly: params.Available,
		Sort:          store.TreasurySort(params.SortBy),
		Page:          params.Page,
		PageSize:      params.PageSize,
	}

	if params.RarityTier != "" {
		tier := domain.RarityTier(params.RarityTier)
		if !tier.Valid() {
			return nil, domain.ErrInvalidTier
		}
		filter.Tier = &tier
	}

	if !filter.Sort.Valid() {
		return nil, domain.ErrInvalidSort
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	return &filter, nil
}

// HistoryQueryParams holds query parameters for GET /swap/history
type HistoryQueryParams struct {
	FID    int64 `form:"fid" binding:"required"`
	Limit  int   `form:"limit"`
	Offset int   `form:"offset,default=0"`
}

// ParseHistoryQuery parses and validates query parameters for swap history
func ParseHistoryQuery(c *gin.Context, defaultPageSize, maxPageSize int) (*HistoryQueryParams, error) {
	var params HistoryQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	if params.Limit < 1 {
		params.Limit = defaultPageSize
	}
	if params.Limit > maxPageSize {
		params.Limit = maxPageSize
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	return &params, nil
}

// RefundsQueryParams holds query parameters for GET /swap/refunds
type RefundsQueryParams struct {
	Address string `form:"address" binding:"required"`
}
