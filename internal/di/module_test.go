package di

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/polkiloo/invoicekeeper/internal/adapter/orders"
	"github.com/polkiloo/invoicekeeper/internal/app"
	"github.com/polkiloo/invoicekeeper/internal/config"
	"github.com/polkiloo/invoicekeeper/internal/domain/repository"
	"github.com/polkiloo/invoicekeeper/internal/storage"
	"github.com/polkiloo/invoicekeeper/internal/test"
	"go.uber.org/fx"
)

type backendStub struct {
	repo repository.InvoiceRepository
}

func (b backendStub) Invoices() repository.InvoiceRepository { return b.repo }
func (b backendStub) HealthCheck(context.Context) error      { return nil }
func (b backendStub) Close()                                 {}

func TestModuleComposesGraphWithReplacements(t *testing.T) {
	cfg := &config.Config{
		RunAddress:           ":0",
		StoreBackend:         config.StoreBackendPostgres,
		DatabaseURI:          "postgres://stub",
		OrdersServiceAddress: "http://localhost",
		InvoiceDir:           t.TempDir(),
		ExpireMinutes:        60,
		SweepInterval:        time.Hour,
		DispatchTimeout:      time.Second,
		ShutdownTimeout:      time.Millisecond,
		LogLevel:             "info",
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	repo := test.NewInvoiceRepositoryStub()
	ordersStub := &test.OrderSourceStub{}

	var facade *app.InvoiceFacade
	fxApp := fx.New(
		fx.NopLogger,
		fx.Supply(context.Background()),
		Module(
			fx.Replace(cfg),
			fx.Replace(logger),
			fx.Replace(fx.Annotate(backendStub{repo: repo}, fx.As(new(storage.Backend)))),
			fx.Replace(fx.Annotate(repo, fx.As(new(repository.InvoiceRepository)))),
			fx.Replace(fx.Annotate(ordersStub, fx.As(new(orders.Client)))),
		),
		fx.Populate(&facade),
	)

	if err := fxApp.Err(); err != nil {
		t.Fatalf("fx app returned error: %v", err)
	}
	t.Cleanup(func() { _ = fxApp.Stop(context.Background()) })
	if facade == nil {
		t.Fatal("expected invoice facade instance")
	}
	if err := facade.Health(context.Background()); err != nil {
		t.Fatalf("expected healthy backend, got %v", err)
	}
}
