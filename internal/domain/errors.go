package domain

import "errors"

// Error taxonomy for a single cycle. The orchestrator switches on these
// to pick between retry, skip, and deactivate; errors never cross from
// one account's cycle into another's.
var (
	// ErrTransient marks a retryable failure of an external service
	// (timeout, 5xx, rate limit). The orchestrator retries with backoff.
	ErrTransient = errors.New("transient network error")

	// ErrInsufficientFunds: balance too small to act. Skip, no retry.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSnapshotNotFound: the oracle has no market data for the asset.
	ErrSnapshotNotFound = errors.New("market snapshot not found")

	// ErrStale: snapshot older than the TTL after one refetch. Skip.
	ErrStale = errors.New("market snapshot stale")

	// ErrUnsafeTradeSize: the safety evaluator capped the trade to
	// nothing. Skip; never overridden.
	ErrUnsafeTradeSize = errors.New("unsafe trade size")

	// ErrConfig: the account is misconfigured (bad key, bad mint). The
	// account is deactivated rather than retried.
	ErrConfig = errors.New("account configuration error")

	// ErrAccountNotFound is returned by ledger stores for unknown ids.
	ErrAccountNotFound = errors.New("account not found")
)
