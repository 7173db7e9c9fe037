package test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	domainErrors "github.com/polkiloo/invoicekeeper/internal/domain/errors"
	"github.com/polkiloo/invoicekeeper/internal/domain/model"
)

// ArtifactStoreStub keeps rendered artifacts in memory.
type ArtifactStoreStub struct {
	mu    sync.Mutex
	files map[string]struct{}

	RenderErr error
	RenderFn  func(context.Context, model.Order) (string, error)
	RemoveFn  func(string) error

	renders atomic.Int32
}

// Render records an artifact named after the order.
func (s *ArtifactStoreStub) Render(ctx context.Context, order model.Order) (string, error) {
	s.renders.Add(1)
	if s.RenderFn != nil {
		return s.RenderFn(ctx, order)
	}
	if s.RenderErr != nil {
		return "", s.RenderErr
	}
	path := fmt.Sprintf("/invoices/invoice-%d.pdf", order.ID)
	s.Put(path)
	return path, nil
}

// Remove drops the artifact; missing artifacts are ignored.
func (s *ArtifactStoreStub) Remove(path string) error {
	if s.RemoveFn != nil {
		if err := s.RemoveFn(path); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

// Put registers an artifact as present.
func (s *ArtifactStoreStub) Put(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = make(map[string]struct{})
	}
	s.files[path] = struct{}{}
}

// Has reports whether an artifact is present.
func (s *ArtifactStoreStub) Has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

// Renders returns the number of render calls.
func (s *ArtifactStoreStub) Renders() int {
	return int(s.renders.Load())
}

// ComposerStub builds trivial notifications.
type ComposerStub struct {
	Err error
}

// Compose addresses the notification to the order's customer.
func (s ComposerStub) Compose(order model.Order, invoice model.Invoice) (model.Notification, error) {
	if s.Err != nil {
		return model.Notification{}, s.Err
	}
	return model.Notification{
		To:             order.Customer.Email,
		Subject:        fmt.Sprintf("Invoice for order #%d", order.ID),
		HTMLBody:       "<p>invoice</p>",
		AttachmentPath: invoice.FileURL,
	}, nil
}

// NotifierStub records sent notifications.
type NotifierStub struct {
	mu   sync.Mutex
	sent []model.Notification

	Err    error
	SendFn func(context.Context, model.Notification) error
}

// Send records the notification or fails with the configured error.
func (s *NotifierStub) Send(ctx context.Context, n model.Notification) error {
	if s.SendFn != nil {
		if err := s.SendFn(ctx, n); err != nil {
			return err
		}
	} else if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

// Sent returns a copy of the delivered notifications.
func (s *NotifierStub) Sent() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, len(s.sent))
	copy(out, s.sent)
	return out
}

// OrderSourceStub serves order snapshots from a map.
type OrderSourceStub struct {
	Orders  map[int64]model.Order
	Err     error
	FetchFn func(context.Context, int64) (*model.Order, error)
}

// Fetch returns the configured order or ErrNotFound.
func (s OrderSourceStub) Fetch(ctx context.Context, orderID int64) (*model.Order, error) {
	if s.FetchFn != nil {
		return s.FetchFn(ctx, orderID)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	order, ok := s.Orders[orderID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &order, nil
}

// ReclaimerStub counts reclaim invocations.
type ReclaimerStub struct {
	ReclaimFn func(context.Context, time.Time) (int, error)
	Count     int
	Err       error

	calls atomic.Int32
}

// ReclaimExpired delegates to ReclaimFn or returns Count/Err.
func (s *ReclaimerStub) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	s.calls.Add(1)
	if s.ReclaimFn != nil {
		return s.ReclaimFn(ctx, now)
	}
	return s.Count, s.Err
}

// Calls returns the number of reclaim invocations.
func (s *ReclaimerStub) Calls() int {
	return int(s.calls.Load())
}

// HealthCheckerStub reports configured health.
type HealthCheckerStub struct {
	Err error
}

// HealthCheck returns the configured error.
func (s HealthCheckerStub) HealthCheck(context.Context) error {
	return s.Err
}
