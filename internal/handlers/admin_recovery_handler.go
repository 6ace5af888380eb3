package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"bridge-backend/internal/dto"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"
	"bridge-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AdminRecoveryHandler serves the operator API for stranded transfers
type AdminRecoveryHandler struct {
	strandedRepo repository.StrandedTransferRepository
	retryService *services.StrandedRetryService
}

// NewAdminRecoveryHandler creates the recovery handler
func NewAdminRecoveryHandler(strandedRepo repository.StrandedTransferRepository, retryService *services.StrandedRetryService) *AdminRecoveryHandler {
	return &AdminRecoveryHandler{strandedRepo: strandedRepo, retryService: retryService}
}

// ListStranded handles GET /api/admin/stranded
func (h *AdminRecoveryHandler) ListStranded(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	stranded, total, err := h.strandedRepo.FindUnresolved(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load stranded transfers"})
		return
	}

	out := make([]*dto.StrandedTransferResponse, 0, len(stranded))
	for _, st := range stranded {
		out = append(out, dto.StrandedFromModel(st))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stranded": out, "total": total})
}

// RetryStranded handles POST /api/admin/stranded/:id/retry
func (h *AdminRecoveryHandler) RetryStranded(c *gin.Context) {
	stranded, err := h.strandedRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "stranded transfer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load stranded transfer"})
		return
	}

	if stranded.Status == models.StrandedTransferStatusRecovered {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "transfer already recovered"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"stranded_id": stranded.ID,
		"intent_id":   stranded.IntentID,
	}).Info("Operator triggered stranded retry")

	if err := h.retryService.RetryOne(c.Request.Context(), stranded); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success":  false,
			"error":    err.Error(),
			"stranded": dto.StrandedFromModel(stranded),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stranded": dto.StrandedFromModel(stranded)})
}

// AbandonStranded handles POST /api/admin/stranded/:id/abandon
func (h *AdminRecoveryHandler) AbandonStranded(c *gin.Context) {
	stranded, err := h.strandedRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "stranded transfer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load stranded transfer"})
		return
	}

	if stranded.Status == models.StrandedTransferStatusRecovered {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "transfer already recovered"})
		return
	}

	if err := h.retryService.Abandon(c.Request.Context(), stranded); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to abandon transfer"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"stranded_id": stranded.ID,
		"intent_id":   stranded.IntentID,
	}).Warn("Stranded transfer abandoned; funds must be reconciled out of band")

	c.JSON(http.StatusOK, gin.H{"success": true, "stranded": dto.StrandedFromModel(stranded)})
}
