package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/polkiloo/invoicekeeper/internal/config"
	domainErrors "github.com/polkiloo/invoicekeeper/internal/domain/errors"
	"github.com/polkiloo/invoicekeeper/internal/domain/model"
	"github.com/polkiloo/invoicekeeper/internal/domain/repository"
)

// ArtifactRenderer produces and removes durable invoice artifacts.
type ArtifactRenderer interface {
	Render(ctx context.Context, order model.Order) (string, error)
	Remove(path string) error
}

// MessageComposer builds the customer notification for a stored invoice.
type MessageComposer interface {
	Compose(order model.Order, invoice model.Invoice) (model.Notification, error)
}

// Notifier delivers notifications to customers.
type Notifier interface {
	Send(ctx context.Context, n model.Notification) error
}

// InvoiceUseCase drives the invoice lifecycle: idempotent creation, dispatch and reclamation.
type InvoiceUseCase struct {
	invoices        repository.InvoiceRepository
	artifacts       ArtifactRenderer
	composer        MessageComposer
	notifier        Notifier
	dispatchTimeout time.Duration
	logger          *slog.Logger
	now             func() time.Time

	group    singleflight.Group
	inflight sync.WaitGroup

	generated      atomic.Int64
	reused         atomic.Int64
	dispatched     atomic.Int64
	dispatchFailed atomic.Int64
	reclaimed      atomic.Int64
	reclaimFailed  atomic.Int64
}

// NewInvoiceUseCase constructs InvoiceUseCase.
func NewInvoiceUseCase(
	invoices repository.InvoiceRepository,
	artifacts ArtifactRenderer,
	composer MessageComposer,
	notifier Notifier,
	cfg *config.Config,
	logger *slog.Logger,
) *InvoiceUseCase {
	return &InvoiceUseCase{
		invoices:        invoices,
		artifacts:       artifacts,
		composer:        composer,
		notifier:        notifier,
		dispatchTimeout: cfg.DispatchTimeout,
		logger:          logger,
		now:             time.Now,
	}
}

// GenerateAndSend returns the invoice of order, creating and dispatching it on first call.
// Repeated and concurrent calls for the same order yield the same record.
func (u *InvoiceUseCase) GenerateAndSend(ctx context.Context, order model.Order, retentionMinutes int) (*model.Invoice, error) {
	if !model.ValidRetention(retentionMinutes) {
		return nil, domainErrors.ErrInvalidRetention
	}

	key := strconv.FormatInt(order.ID, 10)
	ch := u.group.DoChan(key, func() (any, error) {
		return u.pipeline(context.WithoutCancel(ctx), order, retentionMinutes)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		invoice := *res.Val.(*model.Invoice)
		return &invoice, nil
	}
}

// GenerateAndSendAsync runs GenerateAndSend in the background. The work is not
// cancelled together with ctx; the returned Future reports its outcome.
func (u *InvoiceUseCase) GenerateAndSendAsync(ctx context.Context, order model.Order, retentionMinutes int) *Future {
	f := newFuture()
	detached := context.WithoutCancel(ctx)

	u.inflight.Add(1)
	go func() {
		defer u.inflight.Done()
		invoice, err := u.GenerateAndSend(detached, order, retentionMinutes)
		if err != nil {
			u.logger.Error("async invoice generation failed", slog.Int64("order_id", order.ID), slog.String("error", err.Error()))
		}
		f.complete(invoice, err)
	}()

	return f
}

// Drain waits until background generations finish or ctx is done.
func (u *InvoiceUseCase) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		u.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *InvoiceUseCase) pipeline(ctx context.Context, order model.Order, retentionMinutes int) (*model.Invoice, error) {
	existing, err := u.invoices.FindByOrderID(ctx, order.ID)
	switch {
	case err == nil:
		u.reused.Add(1)
		u.logger.Debug("invoice already exists", slog.Int64("order_id", order.ID), slog.String("invoice_id", existing.ID))
		return existing, nil
	case !errors.Is(err, domainErrors.ErrNotFound):
		return nil, domainErrors.NewStageError(domainErrors.StagePersist, order.ID, err)
	}

	path, err := u.artifacts.Render(ctx, order)
	if err != nil {
		return nil, domainErrors.NewStageError(domainErrors.StageRender, order.ID, err)
	}

	createdAt := u.now().UTC().Truncate(time.Microsecond)
	record := model.Invoice{
		OrderID:    order.ID,
		CustomerID: order.Customer.ID,
		FileURL:    path,
		CreatedAt:  createdAt,
		ExpireAt:   expireAt(createdAt, retentionMinutes),
	}

	saved, err := u.invoices.Insert(ctx, record)
	if err != nil {
		if errors.Is(err, domainErrors.ErrAlreadyExists) {
			return u.winner(ctx, order.ID)
		}
		u.logger.Error("invoice not persisted, artifact left orphaned",
			slog.Int64("order_id", order.ID),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, domainErrors.NewStageError(domainErrors.StagePersist, order.ID, err)
	}

	u.generated.Add(1)
	u.logger.Info("invoice generated", slog.Int64("order_id", order.ID), slog.String("invoice_id", saved.ID))

	u.dispatch(ctx, order, *saved)
	return saved, nil
}

// winner returns the record stored by a concurrent invocation that won the insert race.
func (u *InvoiceUseCase) winner(ctx context.Context, orderID int64) (*model.Invoice, error) {
	existing, err := u.invoices.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, domainErrors.NewStageError(domainErrors.StagePersist, orderID, err)
	}
	u.reused.Add(1)
	u.logger.Info("invoice created concurrently, reusing stored record", slog.Int64("order_id", orderID), slog.String("invoice_id", existing.ID))
	return existing, nil
}

func (u *InvoiceUseCase) dispatch(ctx context.Context, order model.Order, invoice model.Invoice) {
	err := u.send(ctx, order, invoice)
	if err != nil {
		u.dispatchFailed.Add(1)
		u.logger.Error("invoice dispatch failed",
			slog.Int64("order_id", order.ID),
			slog.String("invoice_id", invoice.ID),
			slog.String("error", domainErrors.NewStageError(domainErrors.StageDispatch, order.ID, err).Error()),
		)
		return
	}
	u.dispatched.Add(1)
}

func (u *InvoiceUseCase) send(ctx context.Context, order model.Order, invoice model.Invoice) error {
	n, err := u.composer.Compose(order, invoice)
	if err != nil {
		return err
	}
	timeout := u.dispatchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return u.notifier.Send(sendCtx, n)
}

// expireAt keeps ExpireAt strictly after CreatedAt even for zero retention.
func expireAt(createdAt time.Time, retentionMinutes int) time.Time {
	if retentionMinutes == 0 {
		return createdAt.Add(time.Microsecond)
	}
	return createdAt.Add(time.Duration(retentionMinutes) * time.Minute)
}

// GetByOrder returns the invoice of order if present. Store failures read as absent.
func (u *InvoiceUseCase) GetByOrder(ctx context.Context, orderID int64) (*model.Invoice, bool) {
	invoice, err := u.invoices.FindByOrderID(ctx, orderID)
	if err != nil {
		if !errors.Is(err, domainErrors.ErrNotFound) {
			u.logger.Error("lookup invoice by order failed", slog.Int64("order_id", orderID), slog.String("error", err.Error()))
		}
		return nil, false
	}
	return invoice, true
}

// GetByCustomer lists invoices of a customer. Store failures read as empty.
func (u *InvoiceUseCase) GetByCustomer(ctx context.Context, customerID int64) []model.Invoice {
	invoices, err := u.invoices.FindByCustomerID(ctx, customerID)
	if err != nil {
		u.logger.Error("list invoices by customer failed", slog.Int64("customer_id", customerID), slog.String("error", err.Error()))
		return []model.Invoice{}
	}
	if invoices == nil {
		return []model.Invoice{}
	}
	return invoices
}

// Exists reports whether order has an invoice. Store failures read as false.
func (u *InvoiceUseCase) Exists(ctx context.Context, orderID int64) bool {
	ok, err := u.invoices.ExistsByOrderID(ctx, orderID)
	if err != nil {
		u.logger.Error("check invoice existence failed", slog.Int64("order_id", orderID), slog.String("error", err.Error()))
		return false
	}
	return ok
}

// CreatedBetween lists invoices created within [from, to).
func (u *InvoiceUseCase) CreatedBetween(ctx context.Context, from, to time.Time) ([]model.Invoice, error) {
	if to.Before(from) {
		return nil, domainErrors.ErrInvalidRange
	}
	invoices, err := u.invoices.FindCreatedBetween(ctx, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		return []model.Invoice{}, nil
	}
	return invoices, nil
}

// ReclaimExpired deletes every invoice with ExpireAt <= now, artifact first.
// Per-record failures are logged and skipped; the count covers fully reclaimed records.
func (u *InvoiceUseCase) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := u.invoices.FindExpiredBefore(ctx, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: find expired invoices: %w", domainErrors.ErrReclaimFailed, err)
	}

	u.logger.Info("reclaiming expired invoices", slog.Int("found", len(expired)))

	count := 0
	for _, invoice := range expired {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := u.retire(ctx, invoice); err != nil {
			u.reclaimFailed.Add(1)
			u.logger.Error("reclaim invoice failed",
				slog.String("invoice_id", invoice.ID),
				slog.Int64("order_id", invoice.OrderID),
				slog.String("error", err.Error()),
			)
			continue
		}
		u.reclaimed.Add(1)
		count++
	}

	u.logger.Info("expired invoices reclaimed", slog.Int("reclaimed", count), slog.Int("failed", len(expired)-count))
	return count, nil
}

// Purge removes the invoice of order regardless of its expiration.
func (u *InvoiceUseCase) Purge(ctx context.Context, orderID int64) error {
	invoice, err := u.invoices.FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if err := u.retire(ctx, *invoice); err != nil {
		return err
	}
	u.logger.Info("invoice purged", slog.Int64("order_id", orderID), slog.String("invoice_id", invoice.ID))
	return nil
}

// retire removes artifact then metadata. Metadata survives a failed artifact removal
// so that the pair is retried together.
func (u *InvoiceUseCase) retire(ctx context.Context, invoice model.Invoice) error {
	if err := u.artifacts.Remove(invoice.FileURL); err != nil {
		return domainErrors.NewStageError(domainErrors.StageReclaim, invoice.OrderID, err)
	}
	if err := u.invoices.Delete(ctx, invoice.ID); err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil
		}
		return domainErrors.NewStageError(domainErrors.StageReclaim, invoice.OrderID, err)
	}
	return nil
}

// Stats returns lifecycle counters accumulated since start.
func (u *InvoiceUseCase) Stats() model.InvoiceStats {
	return model.InvoiceStats{
		Generated:      u.generated.Load(),
		Reused:         u.reused.Load(),
		Dispatched:     u.dispatched.Load(),
		DispatchFailed: u.dispatchFailed.Load(),
		Reclaimed:      u.reclaimed.Load(),
		ReclaimFailed:  u.reclaimFailed.Load(),
	}
}
