// Package stub provides in-memory oracle, venue, and fee-claim
// implementations for dry runs and tests. No network, no keys, no
// money.
package stub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/ports"
)

// Oracle serves canned snapshots keyed by mint.
type Oracle struct {
	mu        sync.RWMutex
	Snapshots map[string]domain.MarketSnapshot
}

// NewOracle creates an empty stub oracle.
func NewOracle() *Oracle {
	return &Oracle{Snapshots: make(map[string]domain.MarketSnapshot)}
}

// Set installs a snapshot for the mint, stamped now.
func (o *Oracle) Set(mint string, snap domain.MarketSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap.AssetMint = mint
	snap.FetchedAt = time.Now().UTC()
	o.Snapshots[mint] = snap
}

func (o *Oracle) Fetch(_ context.Context, assetMint string) (domain.MarketSnapshot, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap, ok := o.Snapshots[assetMint]
	if !ok {
		return domain.MarketSnapshot{}, fmt.Errorf("stub oracle: %s: %w", assetMint, domain.ErrSnapshotNotFound)
	}
	snap.FetchedAt = time.Now().UTC()
	return snap, nil
}

// Venue simulates trades against configurable balances. Swaps fill at
// the configured TokensPerSOL rate, burns just move numbers.
type Venue struct {
	mu            sync.Mutex
	SOLBalances   map[string]float64 // account id → SOL
	TokenHoldings map[string]float64 // account id → tokens
	TokensPerSOL  float64
	seq           int
}

// NewVenue creates a stub venue with a flat fill rate.
func NewVenue(tokensPerSOL float64) *Venue {
	return &Venue{
		SOLBalances:   make(map[string]float64),
		TokenHoldings: make(map[string]float64),
		TokensPerSOL:  tokensPerSOL,
	}
}

// Fund sets an account's SOL balance.
func (v *Venue) Fund(accountID string, sol float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.SOLBalances[accountID] = sol
}

// Credit adds to an account's SOL balance.
func (v *Venue) Credit(accountID string, sol float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.SOLBalances[accountID] += sol
}

func (v *Venue) Balance(_ context.Context, account domain.ManagedAccount) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.SOLBalances[account.ID], nil
}

func (v *Venue) TokenBalance(_ context.Context, account domain.ManagedAccount, _ string) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.TokenHoldings[account.ID], nil
}

func (v *Venue) Swap(_ context.Context, account domain.ManagedAccount, _ string, amountSOL float64, _ int) (ports.SwapReceipt, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.SOLBalances[account.ID] < amountSOL {
		return ports.SwapReceipt{}, fmt.Errorf("stub venue: %w", domain.ErrInsufficientFunds)
	}

	out := amountSOL * v.TokensPerSOL
	v.SOLBalances[account.ID] -= amountSOL
	v.TokenHoldings[account.ID] += out
	v.seq++

	return ports.SwapReceipt{
		Signature: fmt.Sprintf("stub-swap-%d", v.seq),
		AmountOut: out,
	}, nil
}

func (v *Venue) Burn(_ context.Context, account domain.ManagedAccount, _ string, amount float64) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.TokenHoldings[account.ID] < amount {
		return "", fmt.Errorf("stub venue: burn %.2f exceeds holding %.2f", amount, v.TokenHoldings[account.ID])
	}
	v.TokenHoldings[account.ID] -= amount
	v.seq++
	return fmt.Sprintf("stub-burn-%d", v.seq), nil
}

func (v *Venue) TransferSOL(_ context.Context, account domain.ManagedAccount, _ string, amountSOL float64) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.SOLBalances[account.ID] < amountSOL {
		return "", fmt.Errorf("stub venue: %w", domain.ErrInsufficientFunds)
	}
	v.SOLBalances[account.ID] -= amountSOL
	v.seq++
	return fmt.Sprintf("stub-transfer-%d", v.seq), nil
}

// Claims simulates creator-fee accrual: every claim pays out the
// configured PerClaimSOL and credits the venue balance.
type Claims struct {
	mu          sync.Mutex
	PerClaimSOL float64
	venue       *Venue
	seq         int
}

// NewClaims creates a stub fee-claim adapter that credits the venue.
func NewClaims(perClaimSOL float64, venue *Venue) *Claims {
	return &Claims{PerClaimSOL: perClaimSOL, venue: venue}
}

func (c *Claims) Accrued(_ context.Context, _ domain.ManagedAccount) (float64, error) {
	return c.PerClaimSOL, nil
}

func (c *Claims) Claim(_ context.Context, account domain.ManagedAccount) (ports.ClaimResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.PerClaimSOL <= 0 {
		return ports.ClaimResult{}, nil
	}
	if c.venue != nil {
		c.venue.Credit(account.ID, c.PerClaimSOL)
	}
	c.seq++
	return ports.ClaimResult{
		Signature: fmt.Sprintf("stub-claim-%d", c.seq),
		AmountSOL: c.PerClaimSOL,
	}, nil
}
