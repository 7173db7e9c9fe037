package storage

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/invoicekeeper/internal/config"
	"github.com/polkiloo/invoicekeeper/internal/domain/repository"
	"github.com/polkiloo/invoicekeeper/internal/storage/dynamo"
	"github.com/polkiloo/invoicekeeper/internal/storage/postgres"
)

// Backend is implemented by every invoice storage engine.
type Backend interface {
	Invoices() repository.InvoiceRepository
	HealthCheck(ctx context.Context) error
	Close()
}

// Module wires the configured storage backend and its repository.
var Module = fx.Options(
	fx.Provide(newBackend),
	fx.Provide(func(b Backend) repository.InvoiceRepository { return b.Invoices() }),
	fx.Invoke(registerLifecycle),
)

type backendParams struct {
	fx.In

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

var (
	openPostgres = func(ctx context.Context, dsn string, logger *slog.Logger) (Backend, error) {
		return postgres.New(ctx, dsn, logger)
	}
	openDynamo = func(ctx context.Context, cfg config.DynamoDB, logger *slog.Logger) (Backend, error) {
		client, err := dynamo.NewClient(ctx, dynamo.ClientConfig{
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create dynamodb client: %w", err)
		}
		return dynamo.New(client, cfg.Table, logger), nil
	}
)

// Open creates the backend selected by configuration.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Backend, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		return openPostgres(ctx, cfg.DatabaseURI, logger)
	case config.StoreBackendDynamoDB:
		return openDynamo(ctx, cfg.DynamoDB, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newBackend(p backendParams) (Backend, error) {
	return Open(p.Ctx, p.Config, p.Logger)
}

func registerLifecycle(lc fx.Lifecycle, backend Backend) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			backend.Close()
			return nil
		},
	})
}
