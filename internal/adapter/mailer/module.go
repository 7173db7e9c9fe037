package mailer

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/invoicekeeper/internal/config"
)

// Module provides the SMTP notification gateway.
var Module = fx.Provide(newGateway)

func newGateway(cfg config.SMTP, logger *slog.Logger) (*Gateway, error) {
	return New(cfg, logger)
}
