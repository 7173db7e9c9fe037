package test

import (
	"context"
	"sync"
	"time"

	"github.com/polkiloo/invoicekeeper/internal/domain/model"
)

// GenerateCall records arguments passed to a generation stub.
type GenerateCall struct {
	OrderID       int64
	ExpireMinutes int
	Async         bool
}

// InvoiceFacadeStub provides controllable behaviour for HTTP endpoints.
type InvoiceFacadeStub struct {
	GenerateFn       func(context.Context, int64, int) (*model.Invoice, error)
	GenerateAsyncFn  func(context.Context, int64, int) error
	ByOrderFn        func(context.Context, int64) (*model.Invoice, bool)
	ByCustomerFn     func(context.Context, int64) []model.Invoice
	HasInvoiceFn     func(context.Context, int64) bool
	CreatedBetweenFn func(context.Context, time.Time, time.Time) ([]model.Invoice, error)
	CleanupFn        func(context.Context) (int, error)
	PurgeFn          func(context.Context, int64) error
	StatsValue       model.InvoiceStats
	HealthErr        error

	mu    sync.Mutex
	calls []GenerateCall
}

// Calls returns recorded generation requests.
func (s *InvoiceFacadeStub) Calls() []GenerateCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GenerateCall(nil), s.calls...)
}

func (s *InvoiceFacadeStub) record(call GenerateCall) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

// GenerateInvoice delegates to GenerateFn or returns an invoice for the order.
func (s *InvoiceFacadeStub) GenerateInvoice(ctx context.Context, orderID int64, expireMinutes int) (*model.Invoice, error) {
	s.record(GenerateCall{OrderID: orderID, ExpireMinutes: expireMinutes})
	if s.GenerateFn != nil {
		return s.GenerateFn(ctx, orderID, expireMinutes)
	}
	now := time.Now().UTC()
	return &model.Invoice{
		ID:        "inv-1",
		OrderID:   orderID,
		FileURL:   "/invoices/invoice.pdf",
		CreatedAt: now,
		ExpireAt:  now.Add(time.Duration(expireMinutes) * time.Minute),
	}, nil
}

// GenerateInvoiceAsync delegates to GenerateAsyncFn.
func (s *InvoiceFacadeStub) GenerateInvoiceAsync(ctx context.Context, orderID int64, expireMinutes int) error {
	s.record(GenerateCall{OrderID: orderID, ExpireMinutes: expireMinutes, Async: true})
	if s.GenerateAsyncFn != nil {
		return s.GenerateAsyncFn(ctx, orderID, expireMinutes)
	}
	return nil
}

// InvoiceByOrder delegates to ByOrderFn or reports absence.
func (s *InvoiceFacadeStub) InvoiceByOrder(ctx context.Context, orderID int64) (*model.Invoice, bool) {
	if s.ByOrderFn != nil {
		return s.ByOrderFn(ctx, orderID)
	}
	return nil, false
}

// InvoicesByCustomer delegates to ByCustomerFn or returns an empty list.
func (s *InvoiceFacadeStub) InvoicesByCustomer(ctx context.Context, customerID int64) []model.Invoice {
	if s.ByCustomerFn != nil {
		return s.ByCustomerFn(ctx, customerID)
	}
	return []model.Invoice{}
}

// HasInvoice delegates to HasInvoiceFn.
func (s *InvoiceFacadeStub) HasInvoice(ctx context.Context, orderID int64) bool {
	if s.HasInvoiceFn != nil {
		return s.HasInvoiceFn(ctx, orderID)
	}
	return false
}

// InvoicesCreatedBetween delegates to CreatedBetweenFn.
func (s *InvoiceFacadeStub) InvoicesCreatedBetween(ctx context.Context, from, to time.Time) ([]model.Invoice, error) {
	if s.CreatedBetweenFn != nil {
		return s.CreatedBetweenFn(ctx, from, to)
	}
	return []model.Invoice{}, nil
}

// CleanupExpired delegates to CleanupFn.
func (s *InvoiceFacadeStub) CleanupExpired(ctx context.Context) (int, error) {
	if s.CleanupFn != nil {
		return s.CleanupFn(ctx)
	}
	return 0, nil
}

// PurgeInvoice delegates to PurgeFn.
func (s *InvoiceFacadeStub) PurgeInvoice(ctx context.Context, orderID int64) error {
	if s.PurgeFn != nil {
		return s.PurgeFn(ctx, orderID)
	}
	return nil
}

// Stats returns StatsValue.
func (s *InvoiceFacadeStub) Stats() model.InvoiceStats {
	return s.StatsValue
}

// Health returns HealthErr.
func (s *InvoiceFacadeStub) Health(context.Context) error {
	return s.HealthErr
}
