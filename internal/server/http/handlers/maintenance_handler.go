package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/invoicekeeper/internal/domain/errors"
	"github.com/polkiloo/invoicekeeper/internal/server/http/dto"
)

// MaintenanceHandler exposes administrative endpoints.
type MaintenanceHandler struct {
	facade MaintenanceFacade
}

// NewMaintenanceHandler constructs MaintenanceHandler.
func NewMaintenanceHandler(facade MaintenanceFacade) *MaintenanceHandler {
	return &MaintenanceHandler{facade: facade}
}

// CleanupExpired handles DELETE /api/invoices/cleanup-expired.
func (h *MaintenanceHandler) CleanupExpired(c *gin.Context) {
	count, err := h.facade.CleanupExpired(c.Request.Context())
	if err != nil {
		if errors.Is(err, domainErrors.ErrSweepInProgress) {
			abortWithError(c, http.StatusConflict, "Expired invoices cleanup is already running")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to cleanup expired invoices: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, dto.CleanupResponse{
		Message:   "Expired invoices cleanup completed successfully",
		Reclaimed: count,
	})
}

// Purge handles DELETE /api/invoices/order/:orderId.
func (h *MaintenanceHandler) Purge(c *gin.Context) {
	orderID, err := int64Param(c, "orderId")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.facade.PurgeInvoice(c.Request.Context(), orderID); err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "Invoice not found for order ID: "+c.Param("orderId"))
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to purge invoice: "+err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats handles GET /api/invoices/stats.
func (h *MaintenanceHandler) Stats(c *gin.Context) {
	s := h.facade.Stats()
	c.JSON(http.StatusOK, dto.StatsResponse{
		Generated:      s.Generated,
		Reused:         s.Reused,
		Dispatched:     s.Dispatched,
		DispatchFailed: s.DispatchFailed,
		Reclaimed:      s.Reclaimed,
		ReclaimFailed:  s.ReclaimFailed,
	})
}

// Health handles GET /api/health.
func (h *MaintenanceHandler) Health(c *gin.Context) {
	if err := h.facade.Health(c.Request.Context()); err != nil {
		abortWithError(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	c.Status(http.StatusOK)
}
