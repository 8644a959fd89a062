package domain

// ConfidenceFloor is the minimum confidence a decision needs before the
// engine will spend money on it. The clamp is enforced by the engine,
// not the policies, so a misbehaving policy cannot bypass it.
const ConfidenceFloor = 60

// Decision is the output of a DecisionPolicy for one cycle.
type Decision struct {
	Act           bool
	SpendFraction float64 // 0..1 of the available balance
	Confidence    int     // 0..100
	Rationale     string
}

// Clamped returns the decision with the safety invariants applied:
// confidence below the floor forces Act=false, and the spend fraction
// is bounded to [0, 1].
func (d Decision) Clamped() Decision {
	if d.Confidence < ConfidenceFloor {
		d.Act = false
	}
	if d.SpendFraction < 0 {
		d.SpendFraction = 0
	}
	if d.SpendFraction > 1 {
		d.SpendFraction = 1
	}
	if d.SpendFraction == 0 {
		d.Act = false
	}
	return d
}
