package venue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/flywheel/internal/adapters/solana"
	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/ports"
)

const (
	// How long to wait for bought tokens to show up in the balance.
	settleAttempts = 5
	settleDelay    = 2 * time.Second

	defaultPriorityFee = 0.0001
)

// Adapter implements swap, burn, transfer, and fee-claim execution.
// Transactions are built by the trade API, signed locally with the
// account's key, submitted over RPC, and confirmed before being
// reported as done.
type Adapter struct {
	api *apiClient
	rpc *solana.Client
}

// New creates an Adapter against the given trade API base and RPC
// client.
func New(base string, rpc *solana.Client) *Adapter {
	return &Adapter{
		api: newAPIClient(base),
		rpc: rpc,
	}
}

var _ ports.VenueAdapter = (*Adapter)(nil)
var _ ports.FeeClaimAdapter = (*Adapter)(nil)

// Balance returns the account's SOL balance.
func (a *Adapter) Balance(ctx context.Context, account domain.ManagedAccount) (float64, error) {
	wallet, err := solana.NewWallet(account.SecretKey)
	if err != nil {
		return 0, fmt.Errorf("venue.Balance: %w", err)
	}
	return a.rpc.GetBalance(ctx, wallet.Address())
}

// TokenBalance returns the account's balance of the given mint.
func (a *Adapter) TokenBalance(ctx context.Context, account domain.ManagedAccount, mint string) (float64, error) {
	wallet, err := solana.NewWallet(account.SecretKey)
	if err != nil {
		return 0, fmt.Errorf("venue.TokenBalance: %w", err)
	}
	return a.rpc.GetTokenBalance(ctx, wallet.Address(), mint)
}

// Swap buys the token with amountSOL and waits for the bought amount
// to land in the balance. A confirmed transaction whose tokens never
// become visible within the settle window returns a receipt with
// AmountOut zero; the caller decides whether that is partial success.
func (a *Adapter) Swap(ctx context.Context, account domain.ManagedAccount, mint string, amountSOL float64, maxSlippageBps int) (ports.SwapReceipt, error) {
	wallet, err := solana.NewWallet(account.SecretKey)
	if err != nil {
		return ports.SwapReceipt{}, fmt.Errorf("venue.Swap: %w", err)
	}

	before, err := a.rpc.GetTokenBalance(ctx, wallet.Address(), mint)
	if err != nil {
		return ports.SwapReceipt{}, fmt.Errorf("venue.Swap: balance before: %w", err)
	}

	tx, err := a.api.buildTransaction(ctx, tradeRequest{
		PublicKey:        wallet.Address(),
		Action:           "buy",
		Mint:             mint,
		Amount:           amountSOL,
		DenominatedInSol: "true",
		SlippageBps:      maxSlippageBps,
		PriorityFee:      defaultPriorityFee,
	})
	if err != nil {
		return ports.SwapReceipt{}, fmt.Errorf("venue.Swap: %w", err)
	}

	signature, err := a.submit(ctx, wallet, tx)
	if err != nil {
		return ports.SwapReceipt{}, fmt.Errorf("venue.Swap: %w", err)
	}

	amountOut := a.settledDelta(ctx, wallet.Address(), mint, before)
	if amountOut == 0 {
		slog.Warn("venue: swap confirmed but tokens not yet visible",
			"signature", signature, "mint", mint)
	}

	return ports.SwapReceipt{Signature: signature, AmountOut: amountOut}, nil
}

// Burn sends amount of the token to the incinerator. The destination
// is validated off curve first; an on-curve destination would mean the
// tokens are recoverable by whoever holds its key.
func (a *Adapter) Burn(ctx context.Context, account domain.ManagedAccount, mint string, amount float64) (string, error) {
	onCurve, err := solana.IsOnCurve(solana.Incinerator)
	if err != nil {
		return "", fmt.Errorf("venue.Burn: %w", err)
	}
	if onCurve {
		return "", fmt.Errorf("venue.Burn: incinerator address is on curve, refusing to send")
	}

	wallet, err := solana.NewWallet(account.SecretKey)
	if err != nil {
		return "", fmt.Errorf("venue.Burn: %w", err)
	}

	tx, err := a.api.buildTransaction(ctx, tradeRequest{
		PublicKey:        wallet.Address(),
		Action:           "transfer",
		Mint:             mint,
		Amount:           amount,
		DenominatedInSol: "false",
		Pool:             solana.Incinerator,
		PriorityFee:      defaultPriorityFee,
	})
	if err != nil {
		return "", fmt.Errorf("venue.Burn: %w", err)
	}

	signature, err := a.submit(ctx, wallet, tx)
	if err != nil {
		return "", fmt.Errorf("venue.Burn: %w", err)
	}
	return signature, nil
}

// TransferSOL moves SOL to a destination address.
func (a *Adapter) TransferSOL(ctx context.Context, account domain.ManagedAccount, destination string, amountSOL float64) (string, error) {
	wallet, err := solana.NewWallet(account.SecretKey)
	if err != nil {
		return "", fmt.Errorf("venue.TransferSOL: %w", err)
	}

	tx, err := a.api.buildTransaction(ctx, tradeRequest{
		PublicKey:        wallet.Address(),
		Action:           "transfer",
		Amount:           amountSOL,
		DenominatedInSol: "true",
		Pool:             destination,
		PriorityFee:      defaultPriorityFee,
	})
	if err != nil {
		return "", fmt.Errorf("venue.TransferSOL: %w", err)
	}

	signature, err := a.submit(ctx, wallet, tx)
	if err != nil {
		return "", fmt.Errorf("venue.TransferSOL: %w", err)
	}
	return signature, nil
}

// Accrued returns the claimable creator fees for the account.
func (a *Adapter) Accrued(ctx context.Context, account domain.ManagedAccount) (float64, error) {
	wallet, err := solana.NewWallet(account.SecretKey)
	if err != nil {
		return 0, fmt.Errorf("venue.Accrued: %w", err)
	}
	return a.api.accruedFees(ctx, wallet.Address())
}

// Claim claims all accrued creator fees. A zero accrued balance is a
// successful no-op claim.
func (a *Adapter) Claim(ctx context.Context, account domain.ManagedAccount) (ports.ClaimResult, error) {
	wallet, err := solana.NewWallet(account.SecretKey)
	if err != nil {
		return ports.ClaimResult{}, fmt.Errorf("venue.Claim: %w", err)
	}

	accrued, err := a.api.accruedFees(ctx, wallet.Address())
	if err != nil {
		return ports.ClaimResult{}, fmt.Errorf("venue.Claim: %w", err)
	}
	if accrued <= 0 {
		return ports.ClaimResult{}, nil
	}

	tx, err := a.api.buildTransaction(ctx, tradeRequest{
		PublicKey:   wallet.Address(),
		Action:      "collectCreatorFee",
		PriorityFee: defaultPriorityFee,
	})
	if err != nil {
		return ports.ClaimResult{}, fmt.Errorf("venue.Claim: %w", err)
	}

	signature, err := a.submit(ctx, wallet, tx)
	if err != nil {
		return ports.ClaimResult{}, fmt.Errorf("venue.Claim: %w", err)
	}

	return ports.ClaimResult{Signature: signature, AmountSOL: accrued}, nil
}

// submit signs, sends, and confirms a transaction.
func (a *Adapter) submit(ctx context.Context, wallet *solana.Wallet, tx []byte) (string, error) {
	signed, err := wallet.SignTransaction(tx)
	if err != nil {
		return "", err
	}

	signature, err := a.rpc.SendTransaction(ctx, signed)
	if err != nil {
		return "", err
	}

	if err := a.rpc.ConfirmSignature(ctx, signature); err != nil {
		return "", err
	}
	return signature, nil
}

// settledDelta polls for the token balance increase after a confirmed
// buy. Balance propagation can lag confirmation by a few seconds.
func (a *Adapter) settledDelta(ctx context.Context, address, mint string, before float64) float64 {
	for attempt := 0; attempt < settleAttempts; attempt++ {
		after, err := a.rpc.GetTokenBalance(ctx, address, mint)
		if err == nil && after > before {
			return after - before
		}

		select {
		case <-ctx.Done():
			return 0
		case <-time.After(settleDelay):
		}
	}
	return 0
}
