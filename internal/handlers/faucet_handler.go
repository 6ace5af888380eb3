package handlers

import (
	"math/big"
	"net/http"

	"bridge-backend/internal/config"
	"bridge-backend/internal/dto"
	"bridge-backend/internal/services"
	"bridge-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// FaucetHandler serves the testnet token dispenser
type FaucetHandler struct {
	relay *services.RelayService
}

// NewFaucetHandler creates the faucet handler
func NewFaucetHandler(relay *services.RelayService) *FaucetHandler {
	return &FaucetHandler{relay: relay}
}

// Supply handles POST /api/bridge/faucet
func (h *FaucetHandler) Supply(c *gin.Context) {
	var req dto.FaucetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.FaucetResponse{Success: false, Message: err.Error()})
		return
	}

	if len(req.Assets) == 0 || len(req.Assets) != len(req.Amounts) {
		c.JSON(http.StatusBadRequest, dto.FaucetResponse{
			Success: false, Message: "assets and amounts must be non-empty and the same length"})
		return
	}

	account, err := utils.NormalizeAddress(req.Account)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.FaucetResponse{Success: false, Message: "account is not a valid address"})
		return
	}

	decimals := 18
	if config.AppConfig != nil {
		decimals = config.AppConfig.Bridge.Decimals
	}

	amounts := make([]*big.Int, len(req.Amounts))
	for i, raw := range req.Amounts {
		amount, err := utils.ParseDecimal(raw, decimals)
		if err != nil || amount.Sign() <= 0 {
			c.JSON(http.StatusBadRequest, dto.FaucetResponse{Success: false, Message: "invalid amount " + raw})
			return
		}
		amounts[i] = amount
	}
	for _, asset := range req.Assets {
		if _, err := utils.NormalizeAddress(asset); err != nil {
			c.JSON(http.StatusBadRequest, dto.FaucetResponse{Success: false, Message: "invalid asset " + asset})
			return
		}
	}

	txHash, err := h.relay.SubmitFaucet(c.Request.Context(), req.ChainID, req.Assets, amounts, account)
	if err != nil {
		c.JSON(http.StatusBadGateway, dto.FaucetResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.FaucetResponse{Success: true, TxHash: txHash})
}
