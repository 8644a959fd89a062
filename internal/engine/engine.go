// Package engine runs the buyback-and-burn cycle for one managed
// account: claim fees, evaluate the market, decide, swap, burn, record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/observability"
	"github.com/alejandrodnm/flywheel/internal/ports"
)

// Config holds the engine tunables.
type Config struct {
	SwapAttempts    int
	RetryBase       time.Duration
	SnapshotTTL     time.Duration
	CycleTimeout    time.Duration
	MinSpendSOL     float64
	ServiceFeePct   float64
	TreasuryAddress string
}

// Engine executes cycles. One Engine serves all accounts; per-account
// mutual exclusion is the scheduler's job.
type Engine struct {
	oracle   ports.OracleClient
	policy   ports.DecisionPolicy
	venue    ports.VenueAdapter
	claims   ports.FeeClaimAdapter
	store    ports.LedgerStore
	notifier ports.Notifier
	metrics  *observability.Metrics
	cfg      Config
}

// New creates an Engine.
func New(
	oracle ports.OracleClient,
	policy ports.DecisionPolicy,
	venue ports.VenueAdapter,
	claims ports.FeeClaimAdapter,
	store ports.LedgerStore,
	notifier ports.Notifier,
	metrics *observability.Metrics,
	cfg Config,
) *Engine {
	if cfg.SwapAttempts <= 0 {
		cfg.SwapAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 3 * time.Minute
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = time.Minute
	}
	if cfg.MinSpendSOL <= 0 {
		cfg.MinSpendSOL = 0.01
	}
	return &Engine{
		oracle:   oracle,
		policy:   policy,
		venue:    venue,
		claims:   claims,
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// RunCycle executes one full cycle for the account and returns the
// recorded result. Errors are absorbed into the result's status: a
// cycle always terminates in exactly one of success, partial, skipped,
// or failed, and is always recorded.
func (e *Engine) RunCycle(ctx context.Context, account domain.ManagedAccount) domain.CycleResult {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CycleTimeout)
	defer cancel()

	result := domain.CycleResult{
		CycleID:   uuid.NewString(),
		AccountID: account.ID,
		StartedAt: time.Now().UTC(),
	}
	started := time.Now()
	slog.Info("engine: cycle start", "account", account.ID, "cycle", result.CycleID)

	// 1. Claim accrued creator fees. Failure is non-fatal: fees stay
	// claimable and the cycle proceeds on the existing balance.
	claim, err := e.claims.Claim(ctx, account)
	if err != nil {
		slog.Warn("engine: fee claim failed, continuing", "account", account.ID, "error", err)
	} else if claim.AmountSOL > 0 {
		result.ClaimedSOL = claim.AmountSOL
		e.metrics.ClaimsTotal.Inc()
		e.metrics.ClaimedSOL.Add(claim.AmountSOL)
		slog.Info("engine: fees claimed", "account", account.ID,
			"amount_sol", claim.AmountSOL, "signature", claim.Signature)
	}

	// 2. Balance check.
	balance, err := e.venue.Balance(ctx, account)
	if err != nil {
		if errors.Is(err, domain.ErrConfig) {
			e.deactivate(ctx, account, err)
		}
		return e.finish(ctx, account, e.skip(result, started, fmt.Sprintf("balance check failed: %v", err)))
	}
	if balance < e.cfg.MinSpendSOL {
		return e.finish(ctx, account, e.skip(result, started,
			fmt.Sprintf("balance %.4f SOL below minimum %.4f: %v", balance, e.cfg.MinSpendSOL, domain.ErrInsufficientFunds)))
	}

	// 3. Market snapshot, with one refetch if the first came back stale.
	snap, err := e.freshSnapshot(ctx, account.AssetMint)
	if err != nil {
		return e.finish(ctx, account, e.skip(result, started, fmt.Sprintf("no usable market data: %v", err)))
	}

	// 4. Safety sizing on the full balance, before any decision. The
	// cap and slippage band depend only on venue state.
	capped, slippageBps := domain.MaxSafeSpend(snap, balance)
	if capped < e.cfg.MinSpendSOL {
		return e.finish(ctx, account, e.skip(result, started,
			fmt.Sprintf("venue too thin for a %.4f SOL minimum trade: %v", e.cfg.MinSpendSOL, domain.ErrUnsafeTradeSize)))
	}

	// 5. Decision. A policy error degrades to a safe hold; the clamp is
	// applied here regardless of what the policy returned.
	decision, err := e.policy.Decide(ctx, snap, account.Mode.Profile())
	if err != nil {
		slog.Warn("engine: policy error, holding", "account", account.ID, "error", err)
		return e.finish(ctx, account, e.skip(result, started, fmt.Sprintf("policy error, holding: %v", err)))
	}
	decision = decision.Clamped()
	result.Confidence = decision.Confidence
	result.Rationale = decision.Rationale

	if !decision.Act {
		return e.finish(ctx, account, e.skip(result, started, decision.Rationale))
	}

	spend := math.Min(balance*decision.SpendFraction, capped)
	if spend < e.cfg.MinSpendSOL {
		return e.finish(ctx, account, e.skip(result, started,
			fmt.Sprintf("capped spend %.4f SOL below minimum: %v", spend, domain.ErrUnsafeTradeSize)))
	}

	// 6. Service fee split, taken off the top before the swap. A failed
	// transfer costs the platform its fee, not the user their buyback.
	if fee := spend * e.cfg.ServiceFeePct / 100; fee > 0 && e.cfg.TreasuryAddress != "" {
		if _, err := e.venue.TransferSOL(ctx, account, e.cfg.TreasuryAddress, fee); err != nil {
			slog.Warn("engine: service fee transfer failed, waiving",
				"account", account.ID, "fee_sol", fee, "error", err)
		} else {
			spend -= fee
		}
	}
	result.SpendSOL = spend

	// 7. Swap, retrying only transient pre-submission failures. Once a
	// transaction is submitted the adapter confirms or errors without a
	// retry, so the same spend can never execute twice.
	receipt, err := e.swapWithRetry(ctx, account, spend, slippageBps)
	if err != nil {
		// The venue can reject for insufficient funds even after the
		// balance gate passed (fees, rent, a concurrent claim settling).
		// Nothing was spent, so this is a skip, not a failure.
		if errors.Is(err, domain.ErrInsufficientFunds) {
			result.SpendSOL = 0
			return e.finish(ctx, account, e.skip(result, started, fmt.Sprintf("swap rejected: %v", err)))
		}
		e.metrics.SwapsTotal.WithLabelValues("failed").Inc()
		return e.finish(ctx, account, e.fail(result, started, fmt.Sprintf("swap failed: %v", err)))
	}
	e.metrics.SwapsTotal.WithLabelValues("confirmed").Inc()
	e.metrics.SpentSOL.Add(spend)
	result.SwapSignature = receipt.Signature
	result.AmountOut = receipt.AmountOut

	// Funds are committed. Shutdown must not strand the bought tokens
	// half way, so the rest of the cycle runs detached from the
	// caller's cancellation.
	dctx, dcancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CycleTimeout)
	defer dcancel()

	if receipt.AmountOut == 0 {
		return e.finish(dctx, account, e.partial(dctx, result, account, started,
			"swap confirmed but bought tokens never became visible"))
	}

	// 8. Burn.
	burnSig, err := e.burnWithRetry(dctx, account, receipt.AmountOut)
	if err != nil {
		return e.finish(dctx, account, e.partial(dctx, result, account, started,
			fmt.Sprintf("burn failed: %v", err)))
	}
	e.metrics.BurnsTotal.Inc()
	e.metrics.BurnedTokens.Add(receipt.AmountOut)
	result.BurnSignature = burnSig
	result.BurnedAmount = receipt.AmountOut
	result.Status = domain.CycleSuccess
	result.FinishedAt = time.Now().UTC()

	slog.Info("engine: cycle complete", "account", account.ID, "cycle", result.CycleID,
		"spent_sol", spend, "burned", receipt.AmountOut, "burn_sig", burnSig)
	e.observe(result, started)
	return e.finish(dctx, account, result)
}

// Claim claims accrued fees for the account outside a full cycle (the
// claim-only sweep tick). The accrued balance is checked first so the
// frequent sweep does not build a claim transaction for nothing.
func (e *Engine) Claim(ctx context.Context, account domain.ManagedAccount) error {
	accrued, err := e.claims.Accrued(ctx, account)
	if err != nil {
		return fmt.Errorf("engine.Claim: %s: %w", account.ID, err)
	}
	if accrued <= 0 {
		slog.Debug("engine: no fees accrued", "account", account.ID)
		return nil
	}

	claim, err := e.claims.Claim(ctx, account)
	if err != nil {
		return fmt.Errorf("engine.Claim: %s: %w", account.ID, err)
	}
	if claim.AmountSOL > 0 {
		e.metrics.ClaimsTotal.Inc()
		e.metrics.ClaimedSOL.Add(claim.AmountSOL)
		slog.Info("engine: fees claimed", "account", account.ID,
			"amount_sol", claim.AmountSOL, "signature", claim.Signature)
	}
	return nil
}

// freshSnapshot fetches a snapshot, refetching once if the first is
// already past the TTL. Two stale responses in a row mean the oracle
// is lagging and nothing should be bought on its numbers.
func (e *Engine) freshSnapshot(ctx context.Context, mint string) (domain.MarketSnapshot, error) {
	snap, err := e.oracle.Fetch(ctx, mint)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	if !snap.Stale(e.cfg.SnapshotTTL) {
		return snap, nil
	}

	slog.Debug("engine: stale snapshot, refetching", "mint", mint)
	snap, err = e.oracle.Fetch(ctx, mint)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	if snap.Stale(e.cfg.SnapshotTTL) {
		return domain.MarketSnapshot{}, domain.ErrStale
	}
	return snap, nil
}

func (e *Engine) swapWithRetry(ctx context.Context, account domain.ManagedAccount, spend float64, slippageBps int) (ports.SwapReceipt, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.SwapAttempts; attempt++ {
		if attempt > 0 {
			wait := e.cfg.RetryBase * time.Duration(1<<uint(attempt-1))
			slog.Warn("engine: retrying swap", "account", account.ID,
				"attempt", attempt+1, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return ports.SwapReceipt{}, ctx.Err()
			case <-time.After(wait):
			}
		}

		receipt, err := e.venue.Swap(ctx, account, account.AssetMint, spend, slippageBps)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, domain.ErrTransient) {
			return ports.SwapReceipt{}, err
		}
		lastErr = err
	}
	return ports.SwapReceipt{}, fmt.Errorf("%d attempts: %w", e.cfg.SwapAttempts, lastErr)
}

func (e *Engine) burnWithRetry(ctx context.Context, account domain.ManagedAccount, amount float64) (string, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.SwapAttempts; attempt++ {
		if attempt > 0 {
			wait := e.cfg.RetryBase * time.Duration(1<<uint(attempt-1))
			slog.Warn("engine: retrying burn", "account", account.ID,
				"attempt", attempt+1, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		sig, err := e.venue.Burn(ctx, account, account.AssetMint, amount)
		if err == nil {
			return sig, nil
		}
		if !errors.Is(err, domain.ErrTransient) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("%d attempts: %w", e.cfg.SwapAttempts, lastErr)
}

func (e *Engine) skip(result domain.CycleResult, started time.Time, reason string) domain.CycleResult {
	result.Status = domain.CycleSkipped
	result.Rationale = reason
	result.FinishedAt = time.Now().UTC()
	slog.Info("engine: cycle skipped", "account", result.AccountID,
		"cycle", result.CycleID, "reason", reason)
	e.observe(result, started)
	return result
}

func (e *Engine) fail(result domain.CycleResult, started time.Time, cause string) domain.CycleResult {
	result.Status = domain.CycleFailed
	result.Err = cause
	result.FinishedAt = time.Now().UTC()
	slog.Error("engine: cycle failed", "account", result.AccountID,
		"cycle", result.CycleID, "cause", cause)
	e.observe(result, started)
	return result
}

// partial records value spent without a completed burn. The held token
// balance is captured so the stranded amount is visible downstream.
func (e *Engine) partial(ctx context.Context, result domain.CycleResult, account domain.ManagedAccount, started time.Time, cause string) domain.CycleResult {
	result.Status = domain.CyclePartial
	result.Err = cause
	result.FinishedAt = time.Now().UTC()

	if held, err := e.venue.TokenBalance(ctx, account, account.AssetMint); err == nil {
		result.HeldBalance = held
	}

	slog.Error("engine: cycle partial, tokens held unburned",
		"account", result.AccountID, "cycle", result.CycleID,
		"held", result.HeldBalance, "cause", cause)
	e.observe(result, started)
	return result
}

// finish records the result and notifies. Recording failure is logged
// loudly but cannot be allowed to lose the notification.
func (e *Engine) finish(ctx context.Context, account domain.ManagedAccount, result domain.CycleResult) domain.CycleResult {
	if err := e.store.RecordCycle(ctx, result); err != nil {
		slog.Error("engine: failed to record cycle",
			"account", account.ID, "cycle", result.CycleID, "error", err)
	}

	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, account, result); err != nil {
			e.metrics.NotifyErrors.Inc()
			slog.Warn("engine: notification failed", "account", account.ID, "error", err)
		}
	}
	return result
}

func (e *Engine) observe(result domain.CycleResult, started time.Time) {
	e.metrics.CyclesTotal.WithLabelValues(string(result.Status)).Inc()
	e.metrics.CycleDuration.Observe(time.Since(started).Seconds())
}

func (e *Engine) deactivate(ctx context.Context, account domain.ManagedAccount, cause error) {
	slog.Error("engine: deactivating misconfigured account",
		"account", account.ID, "cause", cause)
	if err := e.store.Deactivate(ctx, account.ID, cause.Error()); err != nil {
		slog.Error("engine: deactivation failed", "account", account.ID, "error", err)
	}
}
