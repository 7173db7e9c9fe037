package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/invoicekeeper/internal/domain/errors"
	"github.com/polkiloo/invoicekeeper/internal/domain/model"
	"github.com/polkiloo/invoicekeeper/internal/server/http/dto"
)

// InvoiceHandler manages invoice generation and lookup endpoints.
type InvoiceHandler struct {
	facade        InvoiceFacade
	defaultExpire int
}

// NewInvoiceHandler constructs InvoiceHandler. defaultExpire applies when the
// request omits expireMinutes.
func NewInvoiceHandler(facade InvoiceFacade, defaultExpire int) *InvoiceHandler {
	if !model.ValidRetention(defaultExpire) {
		defaultExpire = model.DefaultExpireMinutes
	}
	return &InvoiceHandler{facade: facade, defaultExpire: defaultExpire}
}

// Generate handles POST /api/invoices/generate/:orderId.
func (h *InvoiceHandler) Generate(c *gin.Context) {
	orderID, err := int64Param(c, "orderId")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	expireMinutes := h.defaultExpire
	if raw := c.Query("expireMinutes"); raw != "" {
		expireMinutes, err = strconv.Atoi(raw)
		if err != nil || !model.ValidRetention(expireMinutes) {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("expireMinutes must be an integer between 0 and %d", model.MaxExpireMinutes))
			return
		}
	}

	async, err := strconv.ParseBool(c.DefaultQuery("async", "false"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "async must be a boolean")
		return
	}

	if async {
		if err := h.facade.GenerateInvoiceAsync(c.Request.Context(), orderID, expireMinutes); err != nil {
			h.generationFailed(c, orderID, err)
			return
		}
		c.JSON(http.StatusAccepted, dto.AcceptedResponse{Message: "Invoice generation scheduled", OrderID: orderID})
		return
	}

	inv, err := h.facade.GenerateInvoice(c.Request.Context(), orderID, expireMinutes)
	if err != nil {
		h.generationFailed(c, orderID, err)
		return
	}
	c.JSON(http.StatusCreated, dto.GenerateResponse{
		Message: "Invoice generated and sent successfully",
		Invoice: toInvoiceResponse(*inv),
	})
}

func (h *InvoiceHandler) generationFailed(c *gin.Context, orderID int64, err error) {
	switch {
	case errors.Is(err, domainErrors.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "Order not found with ID: "+strconv.FormatInt(orderID, 10))
	case errors.Is(err, domainErrors.ErrOrderNotPayable):
		abortWithError(c, http.StatusBadRequest, "Order must be paid before generating invoice: "+err.Error())
	case errors.Is(err, domainErrors.ErrInvalidRetention):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "Failed to generate invoice: "+err.Error())
	}
}

// ByOrder handles GET /api/invoices/order/:orderId.
func (h *InvoiceHandler) ByOrder(c *gin.Context) {
	orderID, err := int64Param(c, "orderId")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	inv, ok := h.facade.InvoiceByOrder(c.Request.Context(), orderID)
	if !ok {
		abortWithError(c, http.StatusNotFound, "Invoice not found for order ID: "+strconv.FormatInt(orderID, 10))
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(*inv))
}

// ByCustomer handles GET /api/invoices/customer/:customerId.
func (h *InvoiceHandler) ByCustomer(c *gin.Context) {
	customerID, err := int64Param(c, "customerId")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, toInvoiceList(h.facade.InvoicesByCustomer(c.Request.Context(), customerID)))
}

// Check handles GET /api/invoices/check/:orderId.
func (h *InvoiceHandler) Check(c *gin.Context) {
	orderID, err := int64Param(c, "orderId")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, dto.CheckResponse{
		OrderID:    orderID,
		HasInvoice: h.facade.HasInvoice(c.Request.Context(), orderID),
	})
}

// CreatedBetween handles GET /api/invoices?from=&to=. Both bounds are RFC3339.
func (h *InvoiceHandler) CreatedBetween(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "from must be an RFC3339 timestamp")
		return
	}
	to := time.Now().UTC()
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			abortWithError(c, http.StatusBadRequest, "to must be an RFC3339 timestamp")
			return
		}
	}

	invoices, err := h.facade.InvoicesCreatedBetween(c.Request.Context(), from, to)
	if err != nil {
		if errors.Is(err, domainErrors.ErrInvalidRange) {
			abortWithError(c, http.StatusBadRequest, "from must not be after to")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to list invoices: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, toInvoiceList(invoices))
}
