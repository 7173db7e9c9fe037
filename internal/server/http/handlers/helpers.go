package handlers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/invoicekeeper/internal/domain/model"
	"github.com/polkiloo/invoicekeeper/internal/server/http/dto"
)

// int64Param parses a positive numeric path parameter.
func int64Param(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, c.Param(name))
	}
	return id, nil
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: msg})
}

func toInvoiceResponse(inv model.Invoice) dto.InvoiceResponse {
	return dto.InvoiceResponse{
		ID:         inv.ID,
		OrderID:    inv.OrderID,
		CustomerID: inv.CustomerID,
		FileURL:    inv.FileURL,
		CreatedAt:  inv.CreatedAt,
		ExpireAt:   inv.ExpireAt,
	}
}

func toInvoiceList(invoices []model.Invoice) dto.InvoiceListResponse {
	out := make([]dto.InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	return dto.InvoiceListResponse{Count: len(out), Invoices: out}
}
