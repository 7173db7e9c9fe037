package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/polkiloo/invoicekeeper/internal/domain/model"
)

// Service is the slice of the invoice lifecycle the command line operates on.
type Service interface {
	ReclaimExpired(ctx context.Context, now time.Time) (int, error)
	GetByOrder(ctx context.Context, orderID int64) (*model.Invoice, bool)
	GetByCustomer(ctx context.Context, customerID int64) []model.Invoice
	CreatedBetween(ctx context.Context, from, to time.Time) ([]model.Invoice, error)
	Purge(ctx context.Context, orderID int64) error
}

// Opener builds a Service for one command invocation. The returned func
// releases whatever the service holds.
type Opener func(ctx context.Context, logs io.Writer) (Service, func(), error)

// NewRootCmd returns the invoicectl command tree backed by open.
func NewRootCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Inspect and maintain stored invoices",
		Long:          "invoicectl talks to the invoice store directly. Storage and retention settings come from the same environment variables as the server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newSweepCmd(open))
	cmd.AddCommand(newShowCmd(open))
	cmd.AddCommand(newListCmd(open))
	cmd.AddCommand(newPurgeCmd(open))
	return cmd
}

// Execute runs invoicectl against the configured store.
func Execute() error {
	return NewRootCmd(DefaultOpener).Execute()
}

// withService opens a service for the duration of fn.
func withService(cmd *cobra.Command, open Opener, fn func(Service) error) error {
	svc, closeFn, err := open(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(svc)
}
