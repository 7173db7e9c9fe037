package handlers

import (
	"context"
	"time"

	"github.com/polkiloo/invoicekeeper/internal/domain/model"
)

// GenerationFacade triggers invoice generation for upstream orders.
type GenerationFacade interface {
	GenerateInvoice(ctx context.Context, orderID int64, expireMinutes int) (*model.Invoice, error)
	GenerateInvoiceAsync(ctx context.Context, orderID int64, expireMinutes int) error
}

// QueryFacade exposes read access to invoices.
type QueryFacade interface {
	InvoiceByOrder(ctx context.Context, orderID int64) (*model.Invoice, bool)
	InvoicesByCustomer(ctx context.Context, customerID int64) []model.Invoice
	HasInvoice(ctx context.Context, orderID int64) bool
	InvoicesCreatedBetween(ctx context.Context, from, to time.Time) ([]model.Invoice, error)
}

// MaintenanceFacade provides administrative operations.
type MaintenanceFacade interface {
	CleanupExpired(ctx context.Context) (int, error)
	PurgeInvoice(ctx context.Context, orderID int64) error
	Stats() model.InvoiceStats
	Health(ctx context.Context) error
}

// InvoiceFacade aggregates the full set of operations used across handlers.
type InvoiceFacade interface {
	GenerationFacade
	QueryFacade
	MaintenanceFacade
}
