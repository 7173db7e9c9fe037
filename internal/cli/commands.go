package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	domainErrors "github.com/polkiloo/invoicekeeper/internal/domain/errors"
	"github.com/polkiloo/invoicekeeper/internal/domain/model"
	"github.com/polkiloo/invoicekeeper/internal/logger"
	"github.com/polkiloo/invoicekeeper/internal/worker"
)

func newSweepCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Reclaim every invoice whose retention has elapsed",
		Long: "Reclaim every invoice whose retention has elapsed. The run is not coordinated with a server's scheduled sweep; " +
			"overlapping runs are safe because a missing artifact or record counts as already reclaimed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, open, func(svc Service) error {
				sweeper := worker.NewSweeper(svc, 0, logger.NewTo(cmd.ErrOrStderr(), "info"))
				count, _, err := sweeper.RunOnce(cmd.Context())
				if err != nil {
					return fmt.Errorf("sweep: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d expired invoice(s)\n", count)
				return nil
			})
		},
	}
}

func newShowCmd(open Opener) *cobra.Command {
	var (
		orderID int64
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the invoice of an order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, open, func(svc Service) error {
				inv, ok := svc.GetByOrder(cmd.Context(), orderID)
				if !ok {
					return fmt.Errorf("order %d: %w", orderID, domainErrors.ErrNotFound)
				}
				return printInvoices(cmd.OutOrStdout(), []model.Invoice{*inv}, asJSON)
			})
		},
	}
	cmd.Flags().Int64Var(&orderID, "order", 0, "order id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func newListCmd(open Opener) *cobra.Command {
	var (
		customerID int64
		from, to   string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices of a customer or created within a time range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if customerID == 0 && from == "" {
				return errors.New("either --customer or --from is required")
			}
			return withService(cmd, open, func(svc Service) error {
				invoices, err := listInvoices(cmd.Context(), svc, customerID, from, to)
				if err != nil {
					return err
				}
				return printInvoices(cmd.OutOrStdout(), invoices, asJSON)
			})
		},
	}
	cmd.Flags().Int64Var(&customerID, "customer", 0, "customer id")
	cmd.Flags().StringVar(&from, "from", "", "lower creation bound (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "upper creation bound (RFC3339), defaults to now")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.MarkFlagsMutuallyExclusive("customer", "from")
	return cmd
}

func listInvoices(ctx context.Context, svc Service, customerID int64, from, to string) ([]model.Invoice, error) {
	if customerID != 0 {
		return svc.GetByCustomer(ctx, customerID), nil
	}
	lower, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return nil, fmt.Errorf("parse --from: %w", err)
	}
	upper := time.Now().UTC()
	if to != "" {
		if upper, err = time.Parse(time.RFC3339, to); err != nil {
			return nil, fmt.Errorf("parse --to: %w", err)
		}
	}
	return svc.CreatedBetween(ctx, lower, upper)
}

func newPurgeCmd(open Opener) *cobra.Command {
	var orderID int64
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove the invoice of an order regardless of its retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, open, func(svc Service) error {
				if err := svc.Purge(cmd.Context(), orderID); err != nil {
					return fmt.Errorf("purge order %d: %w", orderID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged invoice of order %d\n", orderID)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&orderID, "order", 0, "order id")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func printInvoices(w io.Writer, invoices []model.Invoice, asJSON bool) error {
	if asJSON {
		type row struct {
			ID         string    `json:"id"`
			OrderID    int64     `json:"orderId"`
			CustomerID int64     `json:"customerId"`
			FileURL    string    `json:"fileUrl"`
			CreatedAt  time.Time `json:"createdAt"`
			ExpireAt   time.Time `json:"expireAt"`
		}
		rows := make([]row, 0, len(invoices))
		for _, inv := range invoices {
			rows = append(rows, row(inv))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tCUSTOMER\tCREATED\tEXPIRES\tFILE")
	for _, inv := range invoices {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n",
			inv.OrderID, inv.CustomerID,
			inv.CreatedAt.Format(time.RFC3339), inv.ExpireAt.Format(time.RFC3339),
			inv.FileURL)
	}
	return tw.Flush()
}
