// Package policy holds the pluggable buy/wait decision policies. The
// engine applies the confidence clamp on whatever comes out of them, so
// a policy bug can cost an opportunity but never force a trade.
package policy

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/ports"
)

// Heuristic is the default dip-buying policy: act when the 24h price
// change is at or below the profile's dip threshold, spending the
// profile's maximum fraction. Deterministic and free of I/O.
type Heuristic struct{}

var _ ports.DecisionPolicy = Heuristic{}

// NewHeuristic creates the dip-threshold policy.
func NewHeuristic() Heuristic {
	return Heuristic{}
}

// Decide buys the dip. Confidence grows with how far past the threshold
// the dip is: exactly at threshold sits on the floor, five points past
// it is near certainty.
func (Heuristic) Decide(_ context.Context, snap domain.MarketSnapshot, profile domain.ModeProfile) (domain.Decision, error) {
	dip := -snap.PriceChange24h // positive when the price fell

	if dip < profile.DipThresholdPct {
		return domain.Decision{
			Act:        false,
			Confidence: 30,
			Rationale: fmt.Sprintf("no dip: 24h change %.2f%%, threshold -%.1f%%",
				snap.PriceChange24h, profile.DipThresholdPct),
		}, nil
	}

	confidence := domain.ConfidenceFloor + int((dip-profile.DipThresholdPct)*5)
	if confidence > 95 {
		confidence = 95
	}

	return domain.Decision{
		Act:           true,
		SpendFraction: profile.MaxSpendPct / 100,
		Confidence:    confidence,
		Rationale: fmt.Sprintf("dip %.2f%% >= threshold %.1f%%, spending %.0f%% of balance",
			dip, profile.DipThresholdPct, profile.MaxSpendPct),
	}, nil
}
