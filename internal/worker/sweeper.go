package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Reclaimer retires invoices that expired at or before now.
type Reclaimer interface {
	ReclaimExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically reclaims expired invoices. Runs never overlap: a trigger
// arriving while a sweep is in progress is skipped.
type Sweeper struct {
	reclaimer Reclaimer
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	running atomic.Bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewSweeper constructs a sweeper firing every interval.
func NewSweeper(reclaimer Reclaimer, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Sweeper{
		reclaimer: reclaimer,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Start launches the periodic schedule.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(runCtx)
}

// Stop halts the schedule and waits for an in-progress sweep to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Running reports whether a sweep is in progress.
func (s *Sweeper) Running() bool {
	return s.running.Load()
}

// RunOnce performs a sweep unless one is already running, in which case ran is false.
func (s *Sweeper) RunOnce(ctx context.Context) (count int, ran bool, err error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("expired invoice sweep skipped, previous run still in progress")
		return 0, false, nil
	}
	defer s.running.Store(false)

	start := s.now()
	count, err = s.reclaimer.ReclaimExpired(ctx, start)
	if err != nil {
		s.logger.Error("expired invoice sweep failed", slog.String("error", err.Error()))
		return count, true, err
	}

	s.logger.Info("expired invoice sweep finished",
		slog.Int("reclaimed", count),
		slog.Duration("took", s.now().Sub(start)),
	)
	return count, true, nil
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _, _ = s.RunOnce(ctx)
		}
	}
}
