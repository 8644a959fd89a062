// Package scheduler drives the engine on its three cadences: frequent
// fee-claim sweeps, the slower evaluate tick that runs full cycles, and
// an hourly cron for the treasury sweep.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/observability"
	"github.com/alejandrodnm/flywheel/internal/ports"
)

// CycleRunner is what the scheduler needs from the engine.
type CycleRunner interface {
	RunCycle(ctx context.Context, account domain.ManagedAccount) domain.CycleResult
	Claim(ctx context.Context, account domain.ManagedAccount) error
}

// Config holds the scheduler cadences and concurrency bounds.
type Config struct {
	EvaluateInterval time.Duration
	ClaimInterval    time.Duration
	SweepCron        string
	FanOut           int
	AccountDelay     time.Duration
}

// Scheduler fans cycles out over the active accounts. Two invariants:
// never two concurrent cycles for the same account, and never more
// than FanOut cycles in flight in total.
type Scheduler struct {
	runner  CycleRunner
	store   ports.LedgerStore
	metrics *observability.Metrics
	cfg     Config
	sweep   func(ctx context.Context)

	mu       sync.Mutex
	inflight map[string]struct{}

	paused atomic.Bool
	wg     sync.WaitGroup
}

// New creates a Scheduler. The sweep callback runs on the cron
// cadence; pass nil to disable the treasury sweep.
func New(runner CycleRunner, store ports.LedgerStore, metrics *observability.Metrics, cfg Config, sweep func(ctx context.Context)) *Scheduler {
	if cfg.FanOut <= 0 {
		cfg.FanOut = 4
	}
	return &Scheduler{
		runner:   runner,
		store:    store,
		metrics:  metrics,
		cfg:      cfg,
		sweep:    sweep,
		inflight: make(map[string]struct{}),
	}
}

// Pause stops new cycles from being launched. In-flight cycles finish.
func (s *Scheduler) Pause() {
	s.paused.Store(true)
	slog.Info("scheduler: paused")
}

// Resume re-enables cycle launches.
func (s *Scheduler) Resume() {
	s.paused.Store(false)
	slog.Info("scheduler: resumed")
}

// Run blocks until ctx is cancelled, then drains in-flight cycles
// before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler: starting",
		"evaluate_interval", s.cfg.EvaluateInterval,
		"claim_interval", s.cfg.ClaimInterval,
		"fan_out", s.cfg.FanOut)

	var c *cron.Cron
	if s.sweep != nil && s.cfg.SweepCron != "" {
		c = cron.New(cron.WithSeconds())
		if _, err := c.AddFunc(s.cfg.SweepCron, func() {
			if !s.paused.Load() {
				s.sweep(ctx)
			}
		}); err != nil {
			slog.Error("scheduler: invalid sweep cron, sweep disabled",
				"spec", s.cfg.SweepCron, "error", err)
		} else {
			c.Start()
		}
	}

	evaluate := time.NewTicker(s.cfg.EvaluateInterval)
	defer evaluate.Stop()
	claim := time.NewTicker(s.cfg.ClaimInterval)
	defer claim.Stop()

	// First pass immediately instead of waiting a full interval.
	s.evaluateTick(ctx)

	for {
		select {
		case <-ctx.Done():
			if c != nil {
				<-c.Stop().Done()
			}
			slog.Info("scheduler: shutting down, draining in-flight cycles")
			s.wg.Wait()
			slog.Info("scheduler: drained")
			return ctx.Err()
		case <-evaluate.C:
			s.evaluateTick(ctx)
		case <-claim.C:
			s.claimTick(ctx)
		}
	}
}

// evaluateTick launches a full cycle for every active account not
// already in flight, spaced by AccountDelay and bounded by FanOut.
func (s *Scheduler) evaluateTick(ctx context.Context) {
	if s.paused.Load() {
		slog.Debug("scheduler: paused, skipping evaluate tick")
		return
	}

	accounts, err := s.store.ListActive(ctx)
	if err != nil {
		slog.Error("scheduler: listing accounts failed", "error", err)
		return
	}
	s.metrics.ActiveAccounts.Set(float64(len(accounts)))
	if len(accounts) == 0 {
		return
	}

	sem := make(chan struct{}, s.cfg.FanOut)
	for i, account := range accounts {
		if !s.tryAcquire(account.ID) {
			slog.Debug("scheduler: cycle still in flight, skipping",
				"account", account.ID)
			continue
		}

		if i > 0 && s.cfg.AccountDelay > 0 {
			select {
			case <-ctx.Done():
				s.release(account.ID)
				return
			case <-time.After(s.cfg.AccountDelay):
			}
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			s.release(account.ID)
			return
		}

		s.wg.Add(1)
		go func(acc domain.ManagedAccount) {
			defer s.wg.Done()
			defer s.release(acc.ID)
			defer func() { <-sem }()
			s.runner.RunCycle(ctx, acc)
		}(account)
	}
}

// claimTick sweeps creator fees for every active account without
// evaluating the market. Sequential: claims are cheap and rare.
func (s *Scheduler) claimTick(ctx context.Context) {
	if s.paused.Load() {
		return
	}

	accounts, err := s.store.ListActive(ctx)
	if err != nil {
		slog.Error("scheduler: listing accounts failed", "error", err)
		return
	}

	for _, account := range accounts {
		if !s.tryAcquire(account.ID) {
			continue
		}
		if err := s.runner.Claim(ctx, account); err != nil {
			slog.Warn("scheduler: claim sweep failed",
				"account", account.ID, "error", err)
		}
		s.release(account.ID)

		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Scheduler) tryAcquire(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[accountID]; busy {
		return false
	}
	s.inflight[accountID] = struct{}{}
	return true
}

func (s *Scheduler) release(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, accountID)
}
