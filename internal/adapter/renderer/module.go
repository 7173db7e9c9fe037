package renderer

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/invoicekeeper/internal/config"
)

// Module provides the PDF renderer and the email composer.
var Module = fx.Provide(
	newPDFRenderer,
	NewComposer,
)

func newPDFRenderer(cfg *config.Config, logger *slog.Logger) *PDFRenderer {
	return NewPDFRenderer(cfg.InvoiceDir, logger)
}
