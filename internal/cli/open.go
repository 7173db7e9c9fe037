package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/polkiloo/invoicekeeper/internal/adapter/mailer"
	"github.com/polkiloo/invoicekeeper/internal/adapter/renderer"
	"github.com/polkiloo/invoicekeeper/internal/config"
	"github.com/polkiloo/invoicekeeper/internal/logger"
	"github.com/polkiloo/invoicekeeper/internal/storage"
	"github.com/polkiloo/invoicekeeper/internal/usecase"
)

// DefaultOpener wires the invoice use case from environment configuration.
func DefaultOpener(ctx context.Context, logs io.Writer) (Service, func(), error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.NewTo(logs, cfg.LogLevel)

	backend, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	composer, err := renderer.NewComposer()
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	gateway, err := mailer.New(cfg.SMTP, log)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}

	invoices := usecase.NewInvoiceUseCase(
		backend.Invoices(),
		renderer.NewPDFRenderer(cfg.InvoiceDir, log),
		composer,
		gateway,
		cfg,
		log,
	)
	return invoices, backend.Close, nil
}
