package ports

import (
	"context"

	"github.com/alejandrodnm/flywheel/internal/domain"
)

// DecisionPolicy maps a market snapshot and an account's risk profile
// to a buy/wait decision. Implementations are pluggable: the default is
// a dip-threshold heuristic, an alternative delegates to an external
// reasoning service. The engine applies the confidence clamp
// (domain.Decision.Clamped) regardless of which policy is wired in.
type DecisionPolicy interface {
	Decide(ctx context.Context, snap domain.MarketSnapshot, profile domain.ModeProfile) (domain.Decision, error)
}
