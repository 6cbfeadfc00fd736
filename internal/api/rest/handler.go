package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-sync/internal/api/middleware"
	"github.com/feral-file/ff-marketplace-sync/internal/api/shared/dto"
	apierrors "github.com/feral-file/ff-marketplace-sync/internal/api/shared/errors"
	"github.com/feral-file/ff-marketplace-sync/internal/lifecycle"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// ReserveTransaction holds an asset for a buyer and creates a pending transaction
	// POST /api/v1/transactions
	ReserveTransaction(c *gin.Context)

	// AttachTransactionHash records the on-chain hash of a pending transaction
	// PUT /api/v1/transactions/:id/hash
	AttachTransactionHash(c *gin.Context)

	// CancelTransaction releases a pending transaction
	// POST /api/v1/transactions/:id/cancel
	CancelTransaction(c *gin.Context)

	// GetTransaction retrieves a transaction by ID
	// GET /api/v1/transactions/:id
	GetTransaction(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	manager lifecycle.Manager
}

// NewHandler creates a new REST API handler over the lifecycle manager
func NewHandler(manager lifecycle.Manager) Handler {
	return &handler{
		manager: manager,
	}
}

// ReserveTransaction holds an asset for a buyer.
// Wallet callers reserve for themselves; buyer_address defaults to their wallet.
func (h *handler) ReserveTransaction(c *gin.Context) {
	var req dto.ReserveTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	principal := middleware.GetPrincipal(c)
	if req.BuyerAddress == "" && principal != nil && principal.Kind == middleware.PrincipalWallet {
		req.BuyerAddress = principal.Wallet
	}
	if !validate(c, req.Validate()) {
		return
	}
	if !principal.CanActFor(req.BuyerAddress) {
		respondForbidden(c, "buyer_address does not match the authenticated wallet")
		return
	}

	tx, err := h.manager.Reserve(c.Request.Context(), lifecycle.ReserveInput{
		AssetID:         req.AssetID,
		BuyerAddress:    req.BuyerAddress,
		Price:           req.Price,
		TransactionHash: req.TransactionHash,
	})
	if err != nil {
		respondLifecycleError(c, err, zap.Uint64("asset_id", req.AssetID))
		return
	}

	c.JSON(http.StatusCreated, dto.MapTransactionToDTO(tx))
}

// AttachTransactionHash records the on-chain hash of a pending transaction
func (h *handler) AttachTransactionHash(c *gin.Context) {
	id, ok := transactionID(c)
	if !ok {
		return
	}

	var req dto.AttachTransactionHashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if !validate(c, req.Validate()) {
		return
	}
	if !h.authorizeBuyer(c, id) {
		return
	}

	tx, err := h.manager.AttachTransactionHash(c.Request.Context(), id, req.TransactionHash)
	if err != nil {
		respondLifecycleError(c, err, zap.Uint64("transaction_id", id))
		return
	}

	c.JSON(http.StatusOK, dto.MapTransactionToDTO(tx))
}

// CancelTransaction releases a pending transaction
func (h *handler) CancelTransaction(c *gin.Context) {
	id, ok := transactionID(c)
	if !ok {
		return
	}

	if !h.authorizeBuyer(c, id) {
		return
	}

	tx, err := h.manager.Cancel(c.Request.Context(), id)
	if err != nil {
		respondLifecycleError(c, err, zap.Uint64("transaction_id", id))
		return
	}

	c.JSON(http.StatusOK, dto.MapTransactionToDTO(tx))
}

// GetTransaction retrieves a transaction by ID
func (h *handler) GetTransaction(c *gin.Context) {
	id, ok := transactionID(c)
	if !ok {
		return
	}

	tx, err := h.manager.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondLifecycleError(c, err, zap.Uint64("transaction_id", id))
		return
	}

	c.JSON(http.StatusOK, dto.MapTransactionToDTO(tx))
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ff-marketplace-api",
	})
}

// authorizeBuyer lets a wallet caller change only its own transactions
func (h *handler) authorizeBuyer(c *gin.Context, id uint64) bool {
	principal := middleware.GetPrincipal(c)
	if principal == nil || principal.Kind == middleware.PrincipalOperator {
		return true
	}

	tx, err := h.manager.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondLifecycleError(c, err, zap.Uint64("transaction_id", id))
		return false
	}
	if !principal.CanActFor(tx.BuyerAddress) {
		respondForbidden(c, "Transaction belongs to another buyer")
		return false
	}
	return true
}

// transactionID parses the :id path parameter, responding with 400 when it is not a positive integer
func transactionID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(c, "Invalid transaction ID")
		return 0, false
	}
	return id, true
}

// validate responds with the validation error if there is one
func validate(c *gin.Context, err error) bool {
	if err == nil {
		return true
	}
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		c.JSON(http.StatusBadRequest, apiErr)
		return false
	}
	respondValidationError(c, err.Error())
	return false
}
