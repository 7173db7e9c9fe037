package test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/invoicekeeper/internal/domain/errors"
	"github.com/polkiloo/invoicekeeper/internal/domain/model"
)

// InvoiceRepositoryStub stores invoices in-memory and enforces order uniqueness
// the way a real store does.
type InvoiceRepositoryStub struct {
	mu      sync.Mutex
	byID    map[string]model.Invoice
	byOrder map[int64]string

	// Err fails every operation when set.
	Err error
	// InsertErr fails Insert only.
	InsertErr error
	// FindErr fails FindByOrderID only.
	FindErr error
	// DeleteFn overrides Delete when set.
	DeleteFn func(ctx context.Context, id string) error
	// BeforeInsert runs outside the lock before every insert attempt.
	BeforeInsert func(model.Invoice)

	inserts int
}

// NewInvoiceRepositoryStub constructs an empty repository.
func NewInvoiceRepositoryStub() *InvoiceRepositoryStub {
	return &InvoiceRepositoryStub{
		byID:    make(map[string]model.Invoice),
		byOrder: make(map[int64]string),
	}
}

func (s *InvoiceRepositoryStub) init() {
	if s.byID == nil {
		s.byID = make(map[string]model.Invoice)
	}
	if s.byOrder == nil {
		s.byOrder = make(map[int64]string)
	}
}

// Seed stores a record directly, assigning an ID when missing.
func (s *InvoiceRepositoryStub) Seed(inv model.Invoice) model.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	s.byID[inv.ID] = inv
	s.byOrder[inv.OrderID] = inv.ID
	return inv
}

// Len returns the number of stored records.
func (s *InvoiceRepositoryStub) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Inserts returns the number of successful inserts.
func (s *InvoiceRepositoryStub) Inserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

// Insert stores the record unless another one exists for the same order.
func (s *InvoiceRepositoryStub) Insert(ctx context.Context, inv model.Invoice) (*model.Invoice, error) {
	if s.BeforeInsert != nil {
		s.BeforeInsert(inv)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if s.InsertErr != nil {
		return nil, s.InsertErr
	}
	s.init()
	if _, exists := s.byOrder[inv.OrderID]; exists {
		return nil, domainErrors.ErrAlreadyExists
	}
	inv.ID = uuid.NewString()
	s.byID[inv.ID] = inv
	s.byOrder[inv.OrderID] = inv.ID
	s.inserts++
	return &inv, nil
}

// GetByID fetches record by identifier.
func (s *InvoiceRepositoryStub) GetByID(ctx context.Context, id string) (*model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	inv, ok := s.byID[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &inv, nil
}

// FindByOrderID fetches record by order.
func (s *InvoiceRepositoryStub) FindByOrderID(ctx context.Context, orderID int64) (*model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	id, ok := s.byOrder[orderID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	inv := s.byID[id]
	return &inv, nil
}

// ExistsByOrderID reports presence of a record for order.
func (s *InvoiceRepositoryStub) ExistsByOrderID(ctx context.Context, orderID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.byOrder[orderID]
	return ok, nil
}

// FindByCustomerID lists records of a customer, newest first.
func (s *InvoiceRepositoryStub) FindByCustomerID(ctx context.Context, customerID int64) ([]model.Invoice, error) {
	return s.filter(func(inv model.Invoice) bool { return inv.CustomerID == customerID }, true)
}

// FindExpiredBefore lists records with ExpireAt <= ts, oldest expiration first.
func (s *InvoiceRepositoryStub) FindExpiredBefore(ctx context.Context, ts time.Time) ([]model.Invoice, error) {
	out, err := s.filter(func(inv model.Invoice) bool { return !inv.ExpireAt.After(ts) }, false)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpireAt.Before(out[j].ExpireAt) })
	return out, nil
}

// FindCreatedBetween lists records created within [from, to).
func (s *InvoiceRepositoryStub) FindCreatedBetween(ctx context.Context, from, to time.Time) ([]model.Invoice, error) {
	return s.filter(func(inv model.Invoice) bool {
		return !inv.CreatedAt.Before(from) && inv.CreatedAt.Before(to)
	}, false)
}

// Delete removes record by identifier.
func (s *InvoiceRepositoryStub) Delete(ctx context.Context, id string) error {
	if s.DeleteFn != nil {
		return s.DeleteFn(ctx, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	inv, ok := s.byID[id]
	if !ok {
		return domainErrors.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byOrder, inv.OrderID)
	return nil
}

func (s *InvoiceRepositoryStub) filter(keep func(model.Invoice) bool, newestFirst bool) ([]model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]model.Invoice, 0)
	for _, inv := range s.byID {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
