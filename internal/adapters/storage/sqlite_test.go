package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/flywheel/internal/adapters/storage"
	"github.com/alejandrodnm/flywheel/internal/domain"
)

func makeAccount(id string) domain.ManagedAccount {
	return domain.ManagedAccount{
		ID:        id,
		Owner:     "owner-" + id,
		SecretKey: "secret",
		AssetMint: "Mint1111111111111111111111111111111111111111",
		Mode:      domain.ModeStandard,
		Active:    true,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func makeSuccess(cycleID, accountID string, spend, burned float64) domain.CycleResult {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.CycleResult{
		CycleID:       cycleID,
		AccountID:     accountID,
		StartedAt:     now.Add(-10 * time.Second),
		FinishedAt:    now,
		Status:        domain.CycleSuccess,
		SpendSOL:      spend,
		SwapSignature: "swap-" + cycleID,
		AmountOut:     burned,
		BurnSignature: "burn-" + cycleID,
		BurnedAmount:  burned,
		Confidence:    80,
		Rationale:     "dip buy",
	}
}

func TestSQLiteStore_AccountRoundTrip(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	acc := makeAccount("acc-1")
	require.NoError(t, db.PutAccount(ctx, acc))

	got, err := db.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, acc.Owner, got.Owner)
	assert.Equal(t, acc.AssetMint, got.AssetMint)
	assert.Equal(t, domain.ModeStandard, got.Mode)
	assert.True(t, got.Active)
}

func TestSQLiteStore_GetAccount_NotFound(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.GetAccount(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSQLiteStore_ListActive_ExcludesDeactivated(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.PutAccount(ctx, makeAccount("a")))
	require.NoError(t, db.PutAccount(ctx, makeAccount("b")))
	require.NoError(t, db.Deactivate(ctx, "b", "bad key"))

	active, err := db.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)

	// Deactivated rows stay readable.
	got, err := db.GetAccount(ctx, "b")
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestSQLiteStore_Deactivate_Unknown(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	err = db.Deactivate(context.Background(), "ghost", "reason")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSQLiteStore_RecordCycle_IncrementsLedger(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.PutAccount(ctx, makeAccount("acc-1")))

	require.NoError(t, db.RecordCycle(ctx, makeSuccess("c1", "acc-1", 0.5, 1000)))
	require.NoError(t, db.RecordCycle(ctx, makeSuccess("c2", "acc-1", 0.3, 600)))

	ledger, err := db.Ledger(ctx, "acc-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, ledger.TotalSpentSOL, 1e-9)
	assert.InDelta(t, 1600, ledger.TotalBurned, 1e-9)
	assert.False(t, ledger.LastBurnAt.IsZero())
}

func TestSQLiteStore_RecordCycle_IdempotentByCycleID(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.PutAccount(ctx, makeAccount("acc-1")))

	result := makeSuccess("c1", "acc-1", 0.5, 1000)
	require.NoError(t, db.RecordCycle(ctx, result))
	require.NoError(t, db.RecordCycle(ctx, result))
	require.NoError(t, db.RecordCycle(ctx, result))

	ledger, err := db.Ledger(ctx, "acc-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ledger.TotalSpentSOL, 1e-9)
	assert.InDelta(t, 1000, ledger.TotalBurned, 1e-9)

	cycles, err := db.RecentCycles(ctx, "acc-1", 10)
	require.NoError(t, err)
	assert.Len(t, cycles, 1)
}

func TestSQLiteStore_RecordCycle_SkippedDoesNotTouchLedger(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.PutAccount(ctx, makeAccount("acc-1")))

	skipped := domain.CycleResult{
		CycleID:    "c1",
		AccountID:  "acc-1",
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Status:     domain.CycleSkipped,
		Rationale:  "no dip",
	}
	require.NoError(t, db.RecordCycle(ctx, skipped))

	ledger, err := db.Ledger(ctx, "acc-1")
	require.NoError(t, err)
	assert.Zero(t, ledger.TotalSpentSOL)
	assert.Zero(t, ledger.TotalBurned)
	assert.True(t, ledger.LastBurnAt.IsZero())
}

func TestSQLiteStore_Ledger_ZeroForUnknownAccount(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ledger, err := db.Ledger(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, "new", ledger.AccountID)
	assert.Zero(t, ledger.TotalSpentSOL)
}

func TestSQLiteStore_RecentCycles_NewestFirst(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.PutAccount(ctx, makeAccount("acc-1")))

	old := makeSuccess("c-old", "acc-1", 0.1, 100)
	old.StartedAt = time.Now().UTC().Add(-time.Hour)
	old.FinishedAt = old.StartedAt.Add(10 * time.Second)
	require.NoError(t, db.RecordCycle(ctx, old))
	require.NoError(t, db.RecordCycle(ctx, makeSuccess("c-new", "acc-1", 0.2, 200)))

	cycles, err := db.RecentCycles(ctx, "acc-1", 10)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, "c-new", cycles[0].CycleID)
	assert.Equal(t, "c-old", cycles[1].CycleID)
}
