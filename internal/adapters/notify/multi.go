package notify

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/ports"
)

// Multi fans a notification out to every configured sink. One sink
// failing never blocks the others; failures are logged and dropped.
type Multi struct {
	sinks []ports.Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(sinks ...ports.Notifier) *Multi {
	return &Multi{sinks: sinks}
}

// Notify delivers to all sinks. Always returns nil.
func (m *Multi) Notify(ctx context.Context, account domain.ManagedAccount, result domain.CycleResult) error {
	for _, sink := range m.sinks {
		if err := sink.Notify(ctx, account, result); err != nil {
			slog.Warn("notify: sink failed", "account", account.ID, "error", err)
		}
	}
	return nil
}
