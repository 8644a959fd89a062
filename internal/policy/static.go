package policy

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/ports"
)

// Static always acts with a fixed fraction and full confidence. The
// treasury sweep uses it: collected service fees are swept into the
// platform token unconditionally, market timing is not its job.
type Static struct {
	Fraction float64
	Reason   string
}

var _ ports.DecisionPolicy = Static{}

// NewStatic creates a fixed-fraction policy.
func NewStatic(fraction float64, reason string) Static {
	return Static{Fraction: fraction, Reason: reason}
}

func (s Static) Decide(_ context.Context, _ domain.MarketSnapshot, _ domain.ModeProfile) (domain.Decision, error) {
	return domain.Decision{
		Act:           true,
		SpendFraction: s.Fraction,
		Confidence:    100,
		Rationale:     fmt.Sprintf("scheduled sweep: %s", s.Reason),
	}, nil
}
