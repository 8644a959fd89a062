package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/flywheel/internal/adapters/storage"
	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/observability"
	"github.com/alejandrodnm/flywheel/internal/scheduler"
)

// slowRunner blocks each cycle long enough for ticks to overlap and
// tracks per-account and global concurrency high-water marks.
type slowRunner struct {
	mu         sync.Mutex
	delay      time.Duration
	running    map[string]int
	maxPerAcct int
	maxGlobal  int
	current    int
	cycles     int
	claims     int
}

func newSlowRunner(delay time.Duration) *slowRunner {
	return &slowRunner{delay: delay, running: make(map[string]int)}
}

func (r *slowRunner) RunCycle(ctx context.Context, account domain.ManagedAccount) domain.CycleResult {
	r.mu.Lock()
	r.running[account.ID]++
	r.current++
	r.cycles++
	if r.running[account.ID] > r.maxPerAcct {
		r.maxPerAcct = r.running[account.ID]
	}
	if r.current > r.maxGlobal {
		r.maxGlobal = r.current
	}
	r.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-time.After(r.delay):
	}

	r.mu.Lock()
	r.running[account.ID]--
	r.current--
	r.mu.Unlock()

	return domain.CycleResult{AccountID: account.ID, Status: domain.CycleSkipped}
}

func (r *slowRunner) Claim(_ context.Context, _ domain.ManagedAccount) error {
	r.mu.Lock()
	r.claims++
	r.mu.Unlock()
	return nil
}

func seededStore(t *testing.T, n int) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	for i := 0; i < n; i++ {
		require.NoError(t, store.PutAccount(context.Background(), domain.ManagedAccount{
			ID:        string(rune('a' + i)),
			Owner:     "tester",
			SecretKey: "secret",
			AssetMint: "Mint1111111111111111111111111111111111111111",
			Mode:      domain.ModeStandard,
			Active:    true,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
		}))
	}
	return store
}

func runFor(t *testing.T, s *scheduler.Scheduler, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_NeverOverlapsSameAccount(t *testing.T) {
	runner := newSlowRunner(120 * time.Millisecond)
	store := seededStore(t, 1)
	metrics := observability.New(prometheus.NewRegistry())

	s := scheduler.New(runner, store, metrics, scheduler.Config{
		EvaluateInterval: 20 * time.Millisecond, // ticks much faster than cycles finish
		ClaimInterval:    time.Hour,
		FanOut:           4,
	}, nil)

	runFor(t, s, 400*time.Millisecond)

	assert.Equal(t, 1, runner.maxPerAcct, "same account must never run two cycles at once")
	assert.GreaterOrEqual(t, runner.cycles, 2, "later ticks should run once the first cycle finishes")
}

func TestScheduler_FanOutBound(t *testing.T) {
	runner := newSlowRunner(150 * time.Millisecond)
	store := seededStore(t, 6)
	metrics := observability.New(prometheus.NewRegistry())

	s := scheduler.New(runner, store, metrics, scheduler.Config{
		EvaluateInterval: time.Hour, // only the immediate first tick
		ClaimInterval:    time.Hour,
		FanOut:           2,
	}, nil)

	runFor(t, s, 600*time.Millisecond)

	assert.LessOrEqual(t, runner.maxGlobal, 2)
	assert.Equal(t, 6, runner.cycles, "every account gets its cycle")
}

func TestScheduler_PauseStopsLaunches(t *testing.T) {
	runner := newSlowRunner(time.Millisecond)
	store := seededStore(t, 2)
	metrics := observability.New(prometheus.NewRegistry())

	s := scheduler.New(runner, store, metrics, scheduler.Config{
		EvaluateInterval: 20 * time.Millisecond,
		ClaimInterval:    30 * time.Millisecond,
		FanOut:           2,
	}, nil)
	s.Pause()

	runFor(t, s, 150*time.Millisecond)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Zero(t, runner.cycles)
	assert.Zero(t, runner.claims)
}

func TestScheduler_ClaimTickSweepsAllAccounts(t *testing.T) {
	runner := newSlowRunner(time.Millisecond)
	store := seededStore(t, 3)
	metrics := observability.New(prometheus.NewRegistry())

	s := scheduler.New(runner, store, metrics, scheduler.Config{
		EvaluateInterval: time.Hour,
		ClaimInterval:    30 * time.Millisecond,
		FanOut:           2,
	}, nil)

	runFor(t, s, 200*time.Millisecond)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.GreaterOrEqual(t, runner.claims, 3)
}

func TestScheduler_DrainsInFlightOnShutdown(t *testing.T) {
	runner := newSlowRunner(100 * time.Millisecond)
	store := seededStore(t, 2)
	metrics := observability.New(prometheus.NewRegistry())

	s := scheduler.New(runner, store, metrics, scheduler.Config{
		EvaluateInterval: time.Hour,
		ClaimInterval:    time.Hour,
		FanOut:           2,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond) // first tick launches both cycles
	cancel()
	<-done

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Zero(t, runner.current, "Run must not return with cycles in flight")
}
