package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/invoicekeeper/internal/config"
	"github.com/polkiloo/invoicekeeper/internal/usecase"
	"github.com/polkiloo/invoicekeeper/internal/worker"
)

// Module wires application services, runtime components, and lifecycle hooks.
var Module = fx.Options(
	fx.Provide(
		NewInvoiceFacade,
		newHTTPServer,
		newSweeper,
	),
	fx.Invoke(registerLifecycle),
)

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

func newHTTPServer(p serverParams) *http.Server {
	return &http.Server{
		Addr:    p.Config.RunAddress,
		Handler: p.Router,
	}
}

type sweeperParams struct {
	fx.In

	Invoices *usecase.InvoiceUseCase
	Config   *config.Config
	Logger   *slog.Logger
}

func newSweeper(p sweeperParams) *worker.Sweeper {
	return worker.NewSweeper(p.Invoices, p.Config.SweepInterval, p.Logger)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Sweeper    *worker.Sweeper
	Invoices   *usecase.InvoiceUseCase
	Config     *config.Config
}

func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting invoicekeeper",
				slog.String("addr", p.Server.Addr),
				slog.Duration("sweep_interval", p.Config.SweepInterval),
			)
			p.Sweeper.Start(ctx)
			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("http server terminated", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Sweeper.Stop()

			shutdownCtx := ctx
			cancel := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, cancel = context.WithTimeout(ctx, p.Config.ShutdownTimeout)
			}
			defer cancel()

			if err := p.Server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			if err := p.Invoices.Drain(shutdownCtx); err != nil {
				p.Logger.Warn("background invoice generation still running at shutdown", slog.String("error", err.Error()))
			}
			p.Logger.Info("invoicekeeper stopped")
			return nil
		},
	})
}
