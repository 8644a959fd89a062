package ports

import (
	"context"

	"github.com/alejandrodnm/flywheel/internal/domain"
)

// Notifier publishes a human-readable cycle outcome. Strictly
// best-effort: callers log failures and move on, a notifier error never
// fails a cycle.
type Notifier interface {
	Notify(ctx context.Context, account domain.ManagedAccount, result domain.CycleResult) error
}
