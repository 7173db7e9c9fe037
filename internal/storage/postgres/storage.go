package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/polkiloo/invoicekeeper/internal/domain/errors"
	"github.com/polkiloo/invoicekeeper/internal/domain/model"
	"github.com/polkiloo/invoicekeeper/internal/domain/repository"
)

const uniqueViolation = "23505"

// pgxPool is the subset of *pgxpool.Pool used by the storage.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool   pgxPool
	logger *slog.Logger
	newID  func() string
}

type invoiceRepository struct {
	storage *Storage
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger, newID: uuid.NewString}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("invoice storage ready", slog.String("backend", "postgres"))

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Invoices returns the invoice repository.
func (s *Storage) Invoices() repository.InvoiceRepository {
	return &invoiceRepository{storage: s}
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS invoices (
            id TEXT PRIMARY KEY,
            order_id BIGINT NOT NULL,
            customer_id BIGINT NOT NULL,
            file_url TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            expire_at TIMESTAMPTZ NOT NULL,
            CONSTRAINT invoices_order_id_key UNIQUE (order_id),
            CONSTRAINT invoices_expiry_check CHECK (expire_at > created_at)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices(customer_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_expire_at ON invoices(expire_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

const invoiceColumns = `id, order_id, customer_id, file_url, created_at, expire_at`

func (r *invoiceRepository) Insert(ctx context.Context, invoice model.Invoice) (*model.Invoice, error) {
	const query = `INSERT INTO invoices (` + invoiceColumns + `)
                   VALUES ($1, $2, $3, $4, $5, $6)
                   ON CONFLICT (order_id) DO NOTHING
                   RETURNING id`
	invoice.ID = r.storage.newID()
	var id string
	err := r.storage.pool.QueryRow(ctx, query,
		invoice.ID, invoice.OrderID, invoice.CustomerID, invoice.FileURL, invoice.CreatedAt, invoice.ExpireAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrAlreadyExists
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domainErrors.ErrAlreadyExists
		}
		return nil, err
	}
	invoice.ID = id
	return &invoice, nil
}

func (r *invoiceRepository) GetByID(ctx context.Context, id string) (*model.Invoice, error) {
	const query = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id=$1`
	return r.one(ctx, query, id)
}

func (r *invoiceRepository) FindByOrderID(ctx context.Context, orderID int64) (*model.Invoice, error) {
	const query = `SELECT ` + invoiceColumns + ` FROM invoices WHERE order_id=$1`
	return r.one(ctx, query, orderID)
}

func (r *invoiceRepository) ExistsByOrderID(ctx context.Context, orderID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM invoices WHERE order_id=$1)`
	var exists bool
	if err := r.storage.pool.QueryRow(ctx, query, orderID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *invoiceRepository) FindByCustomerID(ctx context.Context, customerID int64) ([]model.Invoice, error) {
	const query = `SELECT ` + invoiceColumns + `
                   FROM invoices WHERE customer_id=$1 ORDER BY created_at DESC`
	return r.list(ctx, query, customerID)
}

func (r *invoiceRepository) FindExpiredBefore(ctx context.Context, ts time.Time) ([]model.Invoice, error) {
	const query = `SELECT ` + invoiceColumns + `
                   FROM invoices WHERE expire_at <= $1 ORDER BY expire_at`
	return r.list(ctx, query, ts)
}

func (r *invoiceRepository) FindCreatedBetween(ctx context.Context, from, to time.Time) ([]model.Invoice, error) {
	const query = `SELECT ` + invoiceColumns + `
                   FROM invoices WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at`
	return r.list(ctx, query, from, to)
}

func (r *invoiceRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.storage.pool.Exec(ctx, `DELETE FROM invoices WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *invoiceRepository) one(ctx context.Context, query string, arg any) (*model.Invoice, error) {
	var inv model.Invoice
	err := r.storage.pool.QueryRow(ctx, query, arg).Scan(&inv.ID, &inv.OrderID, &inv.CustomerID, &inv.FileURL, &inv.CreatedAt, &inv.ExpireAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) list(ctx context.Context, query string, args ...any) ([]model.Invoice, error) {
	rows, err := r.storage.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Invoice
	for rows.Next() {
		var inv model.Invoice
		if err := rows.Scan(&inv.ID, &inv.OrderID, &inv.CustomerID, &inv.FileURL, &inv.CreatedAt, &inv.ExpireAt); err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
