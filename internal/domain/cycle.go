package domain

import "time"

// CycleStatus is the terminal status of one flywheel cycle.
type CycleStatus string

const (
	// CycleSuccess: swap and burn both confirmed, ledger incremented.
	CycleSuccess CycleStatus = "success"
	// CyclePartial: value was spent but the burn did not complete. The
	// bought tokens sit in the account; materially worse than skipped
	// and surfaced as such downstream.
	CyclePartial CycleStatus = "partial"
	// CycleSkipped: nothing spent. No data, no dip, unsafe size, or
	// insufficient funds.
	CycleSkipped CycleStatus = "skipped"
	// CycleFailed: the swap itself failed after retries.
	CycleFailed CycleStatus = "failed"
)

// CycleResult is the append-only record of one (account, tick) pass.
// Never mutated after RecordCycle.
type CycleResult struct {
	CycleID    string
	AccountID  string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     CycleStatus

	ClaimedSOL    float64 // creator fees claimed this cycle, 0 if none
	SpendSOL      float64 // SOL actually sent to the swap
	SwapSignature string  // empty when the swap never confirmed
	AmountOut     float64 // tokens received from the swap
	BurnSignature string  // empty on failure or zero-amount
	BurnedAmount  float64
	HeldBalance   float64 // tokens left in the account after a partial

	Confidence int
	Rationale  string
	Err        string // cause for partial/failed/skipped, empty on success
}

// LedgerEntry is the cumulative, monotonically non-decreasing counter
// set for one account. Updated exactly once per successful cycle.
type LedgerEntry struct {
	AccountID     string
	TotalSpentSOL float64
	TotalBurned   float64
	LastBurnAt    time.Time
	UpdatedAt     time.Time
}
