package di

import (
	"github.com/polkiloo/invoicekeeper/internal/adapter/mailer"
	"github.com/polkiloo/invoicekeeper/internal/adapter/orders"
	"github.com/polkiloo/invoicekeeper/internal/adapter/renderer"
	"github.com/polkiloo/invoicekeeper/internal/app"
	"github.com/polkiloo/invoicekeeper/internal/config"
	"github.com/polkiloo/invoicekeeper/internal/logger"
	"github.com/polkiloo/invoicekeeper/internal/server/http/handlers"
	"github.com/polkiloo/invoicekeeper/internal/server/http/router"
	"github.com/polkiloo/invoicekeeper/internal/storage"
	"github.com/polkiloo/invoicekeeper/internal/usecase"
	"go.uber.org/fx"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		storage.Module,
		orders.Module,
		renderer.Module,
		mailer.Module,
		fx.Provide(
			func(r *renderer.PDFRenderer) usecase.ArtifactRenderer { return r },
			func(c *renderer.Composer) usecase.MessageComposer { return c },
			func(g *mailer.Gateway) usecase.Notifier { return g },
			func(c orders.Client) app.OrderSource { return c },
			func(b storage.Backend) app.HealthChecker { return b },
			func(f *app.InvoiceFacade) handlers.InvoiceFacade { return f },
		),
		usecase.Module,
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
