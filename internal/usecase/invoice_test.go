package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/invoicekeeper/internal/config"
	domainErrors "github.com/polkiloo/invoicekeeper/internal/domain/errors"
	"github.com/polkiloo/invoicekeeper/internal/domain/model"
	testhelpers "github.com/polkiloo/invoicekeeper/internal/test"
)

type fixture struct {
	uc        *InvoiceUseCase
	repo      *testhelpers.InvoiceRepositoryStub
	artifacts *testhelpers.ArtifactStoreStub
	notifier  *testhelpers.NotifierStub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      testhelpers.NewInvoiceRepositoryStub(),
		artifacts: &testhelpers.ArtifactStoreStub{},
		notifier:  &testhelpers.NotifierStub{},
	}
	f.uc = f.useCase(f.repo)
	return f
}

func (f *fixture) useCase(repo *testhelpers.InvoiceRepositoryStub) *InvoiceUseCase {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg := &config.Config{DispatchTimeout: time.Second}
	return NewInvoiceUseCase(repo, f.artifacts, testhelpers.ComposerStub{}, f.notifier, cfg, logger)
}

func paidOrder(id int64) model.Order {
	return model.Order{
		ID:          id,
		Customer:    model.Customer{ID: 100 + id, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		Status:      model.OrderStatusPaid,
		TotalAmount: decimal.NewFromInt(10),
	}
}

func TestGenerateAndSendIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.uc.GenerateAndSend(ctx, paidOrder(1), 60)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := f.uc.GenerateAndSend(ctx, paidOrder(1), 60)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same invoice, got %s and %s", first.ID, second.ID)
	}
	if f.repo.Len() != 1 {
		t.Fatalf("expected one stored invoice, got %d", f.repo.Len())
	}
	if f.artifacts.Renders() != 1 {
		t.Fatalf("expected one render, got %d", f.artifacts.Renders())
	}
	if sent := f.notifier.Sent(); len(sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(sent))
	}

	stats := f.uc.Stats()
	if stats.Generated != 1 || stats.Reused != 1 || stats.Dispatched != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestGenerateAndSendConcurrentCallsYieldOneRecord(t *testing.T) {
	f := newFixture(t)
	const callers = 16

	var wg sync.WaitGroup
	ids := make(chan string, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := f.uc.GenerateAndSend(context.Background(), paidOrder(7), 60)
			if err != nil {
				errs <- err
				return
			}
			ids <- inv.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	var first string
	for id := range ids {
		if first == "" {
			first = id
		}
		if id != first {
			t.Fatalf("expected every caller to observe %s, got %s", first, id)
		}
	}
	if f.repo.Len() != 1 {
		t.Fatalf("expected one stored invoice, got %d", f.repo.Len())
	}
}

func TestGenerateAndSendResolvesConflictAcrossInstances(t *testing.T) {
	f := newFixture(t)
	other := f.useCase(f.repo)

	var arrived sync.WaitGroup
	arrived.Add(2)
	f.repo.BeforeInsert = func(model.Invoice) {
		arrived.Done()
		arrived.Wait()
	}

	var wg sync.WaitGroup
	results := make([]*model.Invoice, 2)
	errs := make([]error, 2)
	for i, uc := range []*InvoiceUseCase{f.uc, other} {
		wg.Add(1)
		go func(i int, uc *InvoiceUseCase) {
			defer wg.Done()
			results[i], errs[i] = uc.GenerateAndSend(context.Background(), paidOrder(9), 60)
		}(i, uc)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d failed: %v", i, err)
		}
	}
	if results[0].ID != results[1].ID {
		t.Fatalf("expected both callers to get the winner, got %s and %s", results[0].ID, results[1].ID)
	}
	if f.repo.Inserts() != 1 || f.repo.Len() != 1 {
		t.Fatalf("expected exactly one insert, got %d", f.repo.Inserts())
	}
	if sent := f.notifier.Sent(); len(sent) != 1 {
		t.Fatalf("expected only the winner to dispatch, got %d notifications", len(sent))
	}
	if f.uc.Stats().Reused+other.Stats().Reused != 1 {
		t.Fatal("expected the losing call to be counted as reused")
	}
}

func TestZeroRetentionIsReclaimedImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.uc.GenerateAndSend(ctx, paidOrder(3), 0)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !inv.ExpireAt.After(inv.CreatedAt) {
		t.Fatalf("expected expireAt after createdAt, got %v <= %v", inv.ExpireAt, inv.CreatedAt)
	}

	count, err := f.uc.ReclaimExpired(ctx, inv.ExpireAt)
	if err != nil {
		t.Fatalf("reclaim failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one reclaimed invoice, got %d", count)
	}
	if f.uc.Exists(ctx, 3) {
		t.Fatal("expected invoice to be gone")
	}
	if f.artifacts.Has(inv.FileURL) {
		t.Fatal("expected artifact to be removed")
	}
}

func TestDispatchFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = errors.New("smtp down")
	ctx := context.Background()

	inv, err := f.uc.GenerateAndSend(ctx, paidOrder(4), 60)
	if err != nil {
		t.Fatalf("dispatch failure must not propagate: %v", err)
	}

	stored, ok := f.uc.GetByOrder(ctx, 4)
	if !ok || stored.ID != inv.ID {
		t.Fatalf("expected stored invoice %s, got %+v", inv.ID, stored)
	}
	if f.uc.Stats().DispatchFailed != 1 {
		t.Fatalf("expected dispatch failure to be counted, got %+v", f.uc.Stats())
	}
}

func TestComposeFailureCountsAsDispatchFailure(t *testing.T) {
	f := newFixture(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	uc := NewInvoiceUseCase(f.repo, f.artifacts, testhelpers.ComposerStub{Err: errors.New("template")}, f.notifier, &config.Config{}, logger)

	if _, err := uc.GenerateAndSend(context.Background(), paidOrder(40), 60); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uc.Stats().DispatchFailed != 1 || len(f.notifier.Sent()) != 0 {
		t.Fatalf("expected dispatch failure without send, got %+v", uc.Stats())
	}
}

func TestDispatchIsBoundedByTimeout(t *testing.T) {
	f := newFixture(t)
	f.uc.dispatchTimeout = 20 * time.Millisecond
	f.notifier.SendFn = func(ctx context.Context, _ model.Notification) error {
		<-ctx.Done()
		return ctx.Err()
	}

	start := time.Now()
	if _, err := f.uc.GenerateAndSend(context.Background(), paidOrder(5), 60); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("dispatch was not bounded, took %v", elapsed)
	}
	if f.uc.Stats().DispatchFailed != 1 {
		t.Fatal("expected timed out dispatch to be counted")
	}
}

func TestPersistFailureLeavesOrphanArtifact(t *testing.T) {
	f := newFixture(t)
	f.repo.InsertErr = errors.New("db unavailable")

	_, err := f.uc.GenerateAndSend(context.Background(), paidOrder(6), 60)
	if !errors.Is(err, domainErrors.ErrPersistFailed) {
		t.Fatalf("expected persist failure, got %v", err)
	}
	var stageErr *domainErrors.StageError
	if !errors.As(err, &stageErr) || stageErr.OrderID != 6 || stageErr.Stage != domainErrors.StagePersist {
		t.Fatalf("expected persist stage error, got %#v", err)
	}
	if !f.artifacts.Has("/invoices/invoice-6.pdf") {
		t.Fatal("expected rendered artifact to remain as an orphan")
	}
	if f.repo.Len() != 0 {
		t.Fatal("expected nothing to be stored")
	}
	if len(f.notifier.Sent()) != 0 {
		t.Fatal("expected no dispatch after persist failure")
	}
}

func TestRenderFailurePersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.artifacts.RenderErr = errors.New("disk full")

	_, err := f.uc.GenerateAndSend(context.Background(), paidOrder(8), 60)
	if !errors.Is(err, domainErrors.ErrRenderFailed) {
		t.Fatalf("expected render failure, got %v", err)
	}
	if f.repo.Len() != 0 || len(f.notifier.Sent()) != 0 {
		t.Fatal("expected no record and no dispatch")
	}
}

func TestLookupFailureIsPersistFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.FindErr = errors.New("timeout")

	_, err := f.uc.GenerateAndSend(context.Background(), paidOrder(10), 60)
	if !errors.Is(err, domainErrors.ErrPersistFailed) {
		t.Fatalf("expected persist failure, got %v", err)
	}
	if f.artifacts.Renders() != 0 {
		t.Fatal("expected no render when the idempotency check fails")
	}
}

func TestNegativeRetentionIsRejected(t *testing.T) {
	f := newFixture(t)
	if _, err := f.uc.GenerateAndSend(context.Background(), paidOrder(11), -1); !errors.Is(err, domainErrors.ErrInvalidRetention) {
		t.Fatalf("expected invalid retention, got %v", err)
	}
	if f.artifacts.Renders() != 0 {
		t.Fatal("expected no work for invalid retention")
	}
}

func TestOversizedRetentionIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, minutes := range []int{int(model.MaxExpireMinutes) + 1, 300_000_000} {
		if _, err := f.uc.GenerateAndSend(ctx, paidOrder(42), minutes); !errors.Is(err, domainErrors.ErrInvalidRetention) {
			t.Fatalf("expected invalid retention for %d minutes, got %v", minutes, err)
		}
	}
	if f.artifacts.Renders() != 0 || f.repo.Len() != 0 {
		t.Fatal("expected no work for oversized retention")
	}

	inv, err := f.uc.GenerateAndSend(ctx, paidOrder(42), int(model.MaxExpireMinutes))
	if err != nil {
		t.Fatalf("generate with largest retention failed: %v", err)
	}
	if !inv.ExpireAt.After(inv.CreatedAt) {
		t.Fatalf("expected expireAt after createdAt, got %v <= %v", inv.ExpireAt, inv.CreatedAt)
	}
}

func TestCreatedBetweenExcludesUpperBound(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	f.repo.Seed(model.Invoice{OrderID: 1, CustomerID: 1, FileURL: "/a.pdf", CreatedAt: base, ExpireAt: base.Add(time.Hour)})
	f.repo.Seed(model.Invoice{OrderID: 2, CustomerID: 1, FileURL: "/b.pdf", CreatedAt: base.Add(time.Hour), ExpireAt: base.Add(2 * time.Hour)})

	got, err := f.uc.CreatedBetween(context.Background(), base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].OrderID != 1 {
		t.Fatalf("expected only the invoice created at the lower bound, got %+v", got)
	}
}

func TestCreatedRecordRoundTrips(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2024, 6, 1, 8, 30, 0, 123456789, time.FixedZone("X", 3600))
	f.uc.now = func() time.Time { return fixed }
	ctx := context.Background()

	inv, err := f.uc.GenerateAndSend(ctx, paidOrder(12), 90)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	wantCreated := fixed.UTC().Truncate(time.Microsecond)
	if !inv.CreatedAt.Equal(wantCreated) || inv.CreatedAt.Location() != time.UTC {
		t.Fatalf("unexpected createdAt %v", inv.CreatedAt)
	}
	if want := wantCreated.Add(90 * time.Minute); !inv.ExpireAt.Equal(want) {
		t.Fatalf("expected expireAt %v, got %v", want, inv.ExpireAt)
	}

	stored, ok := f.uc.GetByOrder(ctx, 12)
	if !ok {
		t.Fatal("expected invoice to be found")
	}
	if *stored != *inv {
		t.Fatalf("stored record differs: %+v vs %+v", stored, inv)
	}
	if stored.CustomerID != 112 || stored.FileURL != "/invoices/invoice-12.pdf" {
		t.Fatalf("unexpected record %+v", stored)
	}

	byCustomer := f.uc.GetByCustomer(ctx, 112)
	if len(byCustomer) != 1 || byCustomer[0].ID != inv.ID {
		t.Fatalf("unexpected customer listing %+v", byCustomer)
	}

	between, err := f.uc.CreatedBetween(ctx, wantCreated.Add(-time.Minute), wantCreated.Add(time.Minute))
	if err != nil || len(between) != 1 {
		t.Fatalf("unexpected range result %v, %v", between, err)
	}
}

func TestPartialSweepContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var seeded []model.Invoice
	for i := int64(1); i <= 3; i++ {
		path := "/invoices/invoice-" + string(rune('0'+i)) + ".pdf"
		f.artifacts.Put(path)
		seeded = append(seeded, f.repo.Seed(model.Invoice{
			OrderID:   i,
			FileURL:   path,
			CreatedAt: base,
			ExpireAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}
	f.artifacts.RemoveFn = func(path string) error {
		if path == seeded[1].FileURL {
			return errors.New("permission denied")
		}
		return nil
	}

	count, err := f.uc.ReclaimExpired(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("sweep must not fail: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected two reclaimed invoices, got %d", count)
	}
	if f.uc.Exists(ctx, 1) || f.uc.Exists(ctx, 3) {
		t.Fatal("expected first and third invoices to be reclaimed")
	}
	if !f.uc.Exists(ctx, 2) || !f.artifacts.Has(seeded[1].FileURL) {
		t.Fatal("expected failed invoice to keep metadata and artifact together")
	}
	if f.artifacts.Has(seeded[0].FileURL) || f.artifacts.Has(seeded[2].FileURL) {
		t.Fatal("expected reclaimed artifacts to be removed")
	}
	if stats := f.uc.Stats(); stats.Reclaimed != 2 || stats.ReclaimFailed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestReclaimSkipsUnexpiredAndToleratesMissingArtifacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	f.repo.Seed(model.Invoice{OrderID: 1, FileURL: "/invoices/gone.pdf", CreatedAt: now.Add(-time.Hour), ExpireAt: now})
	f.repo.Seed(model.Invoice{OrderID: 2, FileURL: "/invoices/live.pdf", CreatedAt: now, ExpireAt: now.Add(time.Second)})

	count, err := f.uc.ReclaimExpired(ctx, now)
	if err != nil || count != 1 {
		t.Fatalf("expected one reclaimed invoice, got %d, %v", count, err)
	}
	if !f.uc.Exists(ctx, 2) {
		t.Fatal("expected unexpired invoice to survive")
	}
}

func TestReclaimMetadataDeleteFailure(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	f.repo.Seed(model.Invoice{OrderID: 1, FileURL: "/a.pdf", CreatedAt: now.Add(-time.Hour), ExpireAt: now.Add(-time.Minute)})
	f.repo.DeleteFn = func(context.Context, string) error { return errors.New("db down") }

	count, err := f.uc.ReclaimExpired(context.Background(), now)
	if err != nil || count != 0 {
		t.Fatalf("expected zero reclaimed without error, got %d, %v", count, err)
	}
	if f.uc.Stats().ReclaimFailed != 1 {
		t.Fatal("expected failure to be counted")
	}
}

func TestReclaimStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.Err = errors.New("db down")
	if _, err := f.uc.ReclaimExpired(context.Background(), time.Now()); !errors.Is(err, domainErrors.ErrReclaimFailed) {
		t.Fatalf("expected reclaim failure, got %v", err)
	}
}

func TestPurgeRemovesArtifactAndRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.uc.GenerateAndSend(ctx, paidOrder(13), 60)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if err := f.uc.Purge(ctx, 13); err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if f.uc.Exists(ctx, 13) || f.artifacts.Has(inv.FileURL) {
		t.Fatal("expected invoice and artifact to be gone")
	}
	if err := f.uc.Purge(ctx, 13); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found on second purge, got %v", err)
	}
}

func TestReadOperationsSwallowStoreFailures(t *testing.T) {
	f := newFixture(t)
	f.repo.Err = errors.New("db down")
	ctx := context.Background()

	if _, ok := f.uc.GetByOrder(ctx, 1); ok {
		t.Fatal("expected absent invoice on store failure")
	}
	if got := f.uc.GetByCustomer(ctx, 1); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
	if f.uc.Exists(ctx, 1) {
		t.Fatal("expected false on store failure")
	}
}

func TestCreatedBetweenRejectsInvertedRange(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	if _, err := f.uc.CreatedBetween(context.Background(), now, now.Add(-time.Second)); !errors.Is(err, domainErrors.ErrInvalidRange) {
		t.Fatalf("expected invalid range, got %v", err)
	}
}

func TestGenerateAndSendAsyncCompletesFuture(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	future := f.uc.GenerateAndSendAsync(ctx, paidOrder(14), 60)
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	inv, err := future.Wait(waitCtx)
	if err != nil {
		t.Fatalf("async generation failed: %v", err)
	}
	select {
	case <-future.Done():
	default:
		t.Fatal("expected future to be done")
	}
	if stored, ok := f.uc.GetByOrder(context.Background(), 14); !ok || stored.ID != inv.ID {
		t.Fatal("expected async invoice to be stored")
	}
	if err := f.uc.Drain(waitCtx); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
}

func TestGenerateAndSendAsyncFailsFuture(t *testing.T) {
	f := newFixture(t)
	f.artifacts.RenderErr = errors.New("disk full")

	future := f.uc.GenerateAndSendAsync(context.Background(), paidOrder(15), 60)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := future.Wait(ctx); !errors.Is(err, domainErrors.ErrRenderFailed) {
		t.Fatalf("expected failed future, got %v", err)
	}
}

func TestFutureWaitHonoursContext(t *testing.T) {
	f := newFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestDrainTimesOutWithPendingWork(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.artifacts.RenderFn = func(ctx context.Context, order model.Order) (string, error) {
		<-release
		return "/invoices/slow.pdf", nil
	}
	defer close(release)

	f.uc.GenerateAndSendAsync(context.Background(), paidOrder(16), 60)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.uc.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected drain to time out, got %v", err)
	}
}

func TestGenerateAndSendReturnsOnCallerCancellation(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.artifacts.RenderFn = func(ctx context.Context, order model.Order) (string, error) {
		<-release
		return "/invoices/invoice-17.pdf", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := f.uc.GenerateAndSend(ctx, paidOrder(17), 60); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected caller deadline, got %v", err)
	}

	close(release)
	deadline := time.After(time.Second)
	for !f.uc.Exists(context.Background(), 17) {
		select {
		case <-deadline:
			t.Fatal("expected detached pipeline to finish")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
