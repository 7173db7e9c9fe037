package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/polkiloo/invoicekeeper/internal/adapter/orders"
	domainErrors "github.com/polkiloo/invoicekeeper/internal/domain/errors"
	"github.com/polkiloo/invoicekeeper/internal/domain/model"
	"github.com/polkiloo/invoicekeeper/internal/usecase"
	"github.com/polkiloo/invoicekeeper/internal/worker"
)

type OrderSource interface {
	Fetch(ctx context.Context, orderID int64) (*model.Order, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type InvoiceFacade struct {
	orders   OrderSource
	invoices *usecase.InvoiceUseCase
	sweeper  *worker.Sweeper
	health   HealthChecker
}

func NewInvoiceFacade(orders OrderSource, invoices *usecase.InvoiceUseCase, sweeper *worker.Sweeper, health HealthChecker) *InvoiceFacade {
	return &InvoiceFacade{orders: orders, invoices: invoices, sweeper: sweeper, health: health}
}

// GenerateInvoice issues the invoice of a paid order and waits for the outcome.
func (f *InvoiceFacade) GenerateInvoice(ctx context.Context, orderID int64, expireMinutes int) (*model.Invoice, error) {
	order, err := f.payableOrder(ctx, orderID, expireMinutes)
	if err != nil {
		return nil, err
	}
	return f.invoices.GenerateAndSend(ctx, *order, expireMinutes)
}

// GenerateInvoiceAsync validates the order and schedules invoice generation in the background.
func (f *InvoiceFacade) GenerateInvoiceAsync(ctx context.Context, orderID int64, expireMinutes int) error {
	order, err := f.payableOrder(ctx, orderID, expireMinutes)
	if err != nil {
		return err
	}
	f.invoices.GenerateAndSendAsync(ctx, *order, expireMinutes)
	return nil
}

func (f *InvoiceFacade) payableOrder(ctx context.Context, orderID int64, expireMinutes int) (*model.Order, error) {
	if !model.ValidRetention(expireMinutes) {
		return nil, domainErrors.ErrInvalidRetention
	}
	order, err := f.orders.Fetch(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) || errors.Is(err, domainErrors.ErrNotFound) {
			return nil, fmt.Errorf("order %d: %w", orderID, domainErrors.ErrNotFound)
		}
		return nil, fmt.Errorf("fetch order %d: %w", orderID, err)
	}
	if !order.Status.Invoiceable() {
		return nil, fmt.Errorf("order %d is %s: %w", orderID, order.Status, domainErrors.ErrOrderNotPayable)
	}
	return order, nil
}

func (f *InvoiceFacade) InvoiceByOrder(ctx context.Context, orderID int64) (*model.Invoice, bool) {
	return f.invoices.GetByOrder(ctx, orderID)
}

func (f *InvoiceFacade) InvoicesByCustomer(ctx context.Context, customerID int64) []model.Invoice {
	return f.invoices.GetByCustomer(ctx, customerID)
}

func (f *InvoiceFacade) HasInvoice(ctx context.Context, orderID int64) bool {
	return f.invoices.Exists(ctx, orderID)
}

func (f *InvoiceFacade) InvoicesCreatedBetween(ctx context.Context, from, to time.Time) ([]model.Invoice, error) {
	return f.invoices.CreatedBetween(ctx, from, to)
}

// CleanupExpired runs a sweep on demand. ErrSweepInProgress is returned when another sweep is running.
func (f *InvoiceFacade) CleanupExpired(ctx context.Context) (int, error) {
	count, ran, err := f.sweeper.RunOnce(ctx)
	if !ran {
		return 0, domainErrors.ErrSweepInProgress
	}
	return count, err
}

func (f *InvoiceFacade) PurgeInvoice(ctx context.Context, orderID int64) error {
	return f.invoices.Purge(ctx, orderID)
}

func (f *InvoiceFacade) Stats() model.InvoiceStats {
	return f.invoices.Stats()
}

func (f *InvoiceFacade) Health(ctx context.Context) error {
	return f.health.HealthCheck(ctx)
}
