package ports

import (
	"context"

	"github.com/alejandrodnm/flywheel/internal/domain"
)

// SwapReceipt is the confirmed result of a swap.
type SwapReceipt struct {
	Signature string
	AmountOut float64 // tokens received, measured by balance delta
}

// VenueAdapter executes trades and burns against the external venue.
// All operations are fallible and require post-submission confirmation;
// implementations classify retryable failures as domain.ErrTransient
// but do not retry themselves.
type VenueAdapter interface {
	// Balance returns the account's spendable SOL balance.
	Balance(ctx context.Context, account domain.ManagedAccount) (float64, error)

	// TokenBalance returns the account's balance of the given token.
	TokenBalance(ctx context.Context, account domain.ManagedAccount, mint string) (float64, error)

	// Swap exchanges amountSOL for the token and waits for the bought
	// amount to become visible (bounded poll).
	Swap(ctx context.Context, account domain.ManagedAccount, mint string, amountSOL float64, maxSlippageBps int) (SwapReceipt, error)

	// Burn permanently destroys amount of the token held by account and
	// returns the transaction reference.
	Burn(ctx context.Context, account domain.ManagedAccount, mint string, amount float64) (string, error)

	// TransferSOL moves SOL from account to a destination address
	// (service-fee split to the platform treasury).
	TransferSOL(ctx context.Context, account domain.ManagedAccount, destination string, amountSOL float64) (string, error)
}
