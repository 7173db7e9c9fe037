package repository

import (
	"context"
	"time"

	"github.com/polkiloo/invoicekeeper/internal/domain/model"
)

// InvoiceRepository describes persistence operations for invoice records.
// Each call is atomic on its own; there are no cross-record transactions.
type InvoiceRepository interface {
	// Insert stores the record and assigns its ID. It returns ErrAlreadyExists
	// when a live invoice for the same order is already stored.
	Insert(ctx context.Context, invoice model.Invoice) (*model.Invoice, error)
	GetByID(ctx context.Context, id string) (*model.Invoice, error)
	FindByOrderID(ctx context.Context, orderID int64) (*model.Invoice, error)
	ExistsByOrderID(ctx context.Context, orderID int64) (bool, error)
	FindByCustomerID(ctx context.Context, customerID int64) ([]model.Invoice, error)
	// FindExpiredBefore returns records with ExpireAt <= ts.
	FindExpiredBefore(ctx context.Context, ts time.Time) ([]model.Invoice, error)
	FindCreatedBetween(ctx context.Context, from, to time.Time) ([]model.Invoice, error)
	Delete(ctx context.Context, id string) error
}
