package usecase

import (
	"context"

	"github.com/polkiloo/invoicekeeper/internal/domain/model"
)

// Future is the pending result of an asynchronous invoice generation.
type Future struct {
	done    chan struct{}
	invoice *model.Invoice
	err     error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(invoice *model.Invoice, err error) {
	f.invoice = invoice
	f.err = err
	close(f.done)
}

// Done is closed once the generation finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the generation finished or ctx is done.
func (f *Future) Wait(ctx context.Context) (*model.Invoice, error) {
	select {
	case <-f.done:
		return f.invoice, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
