package ports

import (
	"context"

	"github.com/alejandrodnm/flywheel/internal/domain"
)

// LedgerStore persists managed accounts, their cumulative counters, and
// the append-only cycle log.
type LedgerStore interface {
	// GetAccount returns the account or domain.ErrAccountNotFound.
	GetAccount(ctx context.Context, id string) (domain.ManagedAccount, error)

	// ListActive returns every account eligible for scheduling.
	ListActive(ctx context.Context) ([]domain.ManagedAccount, error)

	// PutAccount inserts or updates an account (registration flows and
	// tooling; the engine itself never creates accounts).
	PutAccount(ctx context.Context, account domain.ManagedAccount) error

	// Deactivate marks the account inactive with a reason. Accounts are
	// never hard-deleted.
	Deactivate(ctx context.Context, id, reason string) error

	// RecordCycle appends the cycle result and, only for a success,
	// increments the account's ledger counters in the same transaction.
	// Idempotent by CycleID: replaying a recorded cycle is a no-op.
	RecordCycle(ctx context.Context, result domain.CycleResult) error

	// Ledger returns the cumulative counters for an account. A zero
	// entry (not an error) is returned for accounts with no successes.
	Ledger(ctx context.Context, accountID string) (domain.LedgerEntry, error)

	// RecentCycles returns the latest cycle results for an account,
	// newest first, up to limit.
	RecentCycles(ctx context.Context, accountID string, limit int) ([]domain.CycleResult, error)

	// Close releases the underlying connection.
	Close() error
}
