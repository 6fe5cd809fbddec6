package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/protardio/treasury-swap/internal/domain"
	"github.com/protardio/treasury-swap/internal/logger"
)

// response is the uniform envelope every endpoint answers with
type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// respondOK sends a 200 with the data wrapped in the success envelope
func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, response{Success: true, Data: data})
}

// respondCreated sends a 201 with the data wrapped in the success envelope
func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, response{Success: true, Data: data})
}

// respondError sends an error envelope with the given status
func respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, response{Success: false, Error: message})
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

// respondInternalError sends a generic 500 and logs the underlying error.
// Store failures never leak their detail to the client.
func respondInternalError(c *gin.Context, err error, message string) {
	logger.ErrorCtx(c.Request.Context(), err,
		zap.String("path", c.Request.URL.Path),
	)
	respondError(c, http.StatusInternalServerError, message)
}

// respondDomainError maps a domain error onto its HTTP status: validation
// failures are 400, missing resources 404, state conflicts 409, rate limiting
// 429. Anything unrecognized is treated as an internal error.
func respondDomainError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidTokenID),
		errors.Is(err, domain.ErrSelfSwap),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrInvalidTier),
		errors.Is(err, domain.ErrInvalidSort):
		respondError(c, http.StatusBadRequest, err.Error())

	case errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrIntentNotFound):
		respondError(c, http.StatusNotFound, err.Error())

	case errors.Is(err, domain.ErrItemNotAvailable),
		errors.Is(err, domain.ErrIntentTerminal),
		errors.Is(err, domain.ErrInvalidTransition):
		respondError(c, http.StatusConflict, err.Error())

	case errors.Is(err, domain.ErrRateLimited):
		respondError(c, http.StatusTooManyRequests, err.Error())

	default:
		respondInternalError(c, err, fallback)
	}
}
