package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"bridge-backend/internal/config"
	"bridge-backend/internal/dto"
	"bridge-backend/internal/repository"
	"bridge-backend/internal/services"
	"bridge-backend/internal/types"
	"bridge-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TransferHandler serves the public transfer API
type TransferHandler struct {
	coordinator *services.TransferCoordinator
	repo        repository.TransferIntentRepository
}

// NewTransferHandler creates the transfer handler
func NewTransferHandler(coordinator *services.TransferCoordinator, repo repository.TransferIntentRepository) *TransferHandler {
	return &TransferHandler{coordinator: coordinator, repo: repo}
}

// CreateTransfer handles POST /api/bridge/transfers
func (h *TransferHandler) CreateTransfer(c *gin.Context) {
	var req dto.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	decimals := 18
	if config.AppConfig != nil {
		decimals = config.AppConfig.Bridge.Decimals
	}
	amount, err := utils.ParseDecimal(req.Amount, decimals)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid amount: " + err.Error()})
		return
	}

	intent, err := h.coordinator.CreateIntent(c.Request.Context(), &services.CreateTransferParams{
		Account:   req.Account,
		AssetFrom: req.AssetFrom,
		AssetTo:   req.AssetTo,
		Amount:    amount,
		ChainFrom: req.ChainFrom,
		ChainTo:   req.ChainTo,
	})
	if err != nil {
		var userErr *types.UserInputError
		if errors.As(err, &userErr) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": userErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to create transfer"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "transfer": dto.TransferFromModel(intent)})
}

// AttachDeposit handles POST /api/bridge/transfers/:id/deposit
func (h *TransferHandler) AttachDeposit(c *gin.Context) {
	intentID := c.Param("id")

	var req dto.AttachDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !utils.IsTxHash(req.TxHash) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "tx_hash is not a valid transaction hash"})
		return
	}

	intent, err := h.coordinator.AttachDeposit(c.Request.Context(), intentID, req.TxHash)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "transfer not found"})
		case errors.Is(err, types.ErrDuplicateSubmission):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "transfer already has a deposit"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to attach deposit"})
		}
		return
	}

	// Drive the transfer in the background; the client follows progress via
	// GET or the websocket stream.
	h.coordinator.AdvanceAsync(intent)

	c.JSON(http.StatusAccepted, gin.H{"success": true, "transfer": dto.TransferFromModel(intent)})
}

// SubmitServerDeposit handles POST /api/bridge/transfers/:id/deposit/server.
// The escrow deposit is signed with the network's depositor key, so this only
// works on networks where one is configured (dev and faucet-funded flows).
func (h *TransferHandler) SubmitServerDeposit(c *gin.Context) {
	intent, err := h.coordinator.SubmitServerDeposit(c.Request.Context(), c.Param("id"))
	if err != nil {
		var authErr *types.AuthorityError
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "transfer not found"})
		case errors.Is(err, types.ErrDuplicateSubmission):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "transfer already has a deposit"})
		case errors.As(err, &authErr):
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": authErr.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to submit deposit"})
		}
		return
	}

	h.coordinator.AdvanceAsync(intent)

	c.JSON(http.StatusAccepted, gin.H{"success": true, "transfer": dto.TransferFromModel(intent)})
}

// GetTransfer handles GET /api/bridge/transfers/:id
func (h *TransferHandler) GetTransfer(c *gin.Context) {
	intent, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "transfer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load transfer"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transfer": dto.TransferFromModel(intent)})
}

// ListTransfers handles GET /api/bridge/transfers?account=0x..&page=1&limit=20
func (h *TransferHandler) ListTransfers(c *gin.Context) {
	account := c.Query("account")
	if account == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "account query parameter is required"})
		return
	}
	normalized, err := utils.NormalizeAddress(account)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "account is not a valid address"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	intents, total, err := h.repo.FindByAccount(c.Request.Context(), normalized, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load transfers"})
		return
	}

	transfers := make([]*dto.TransferResponse, 0, len(intents))
	for _, intent := range intents {
		transfers = append(transfers, dto.TransferFromModel(intent))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result": &dto.TransferListResponse{
			Transfers: transfers,
			Total:     total,
			Page:      page,
			Limit:     limit,
		},
	})
}
