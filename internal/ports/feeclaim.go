package ports

import (
	"context"

	"github.com/alejandrodnm/flywheel/internal/domain"
)

// ClaimResult is the outcome of a creator-fee claim.
type ClaimResult struct {
	Signature string
	AmountSOL float64
}

// FeeClaimAdapter claims accrued creator fees from the revenue-sharing
// mechanism. Claiming is optional per cycle and cheap to retry next
// cycle; a zero-amount result is normal, not an error.
type FeeClaimAdapter interface {
	// Accrued returns the claimable balance without claiming it.
	Accrued(ctx context.Context, account domain.ManagedAccount) (float64, error)

	// Claim claims all accrued fees for the account.
	Claim(ctx context.Context, account domain.ManagedAccount) (ClaimResult, error)
}
