package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/ports"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    id          TEXT PRIMARY KEY,
    owner       TEXT NOT NULL,
    secret_key  TEXT NOT NULL,
    asset_mint  TEXT NOT NULL,
    mode        TEXT NOT NULL DEFAULT 'standard',
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    deactivated_reason TEXT,
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger (
    account_id      TEXT PRIMARY KEY REFERENCES accounts(id),
    total_spent_sol DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_burned    DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_burn_at    TIMESTAMPTZ,
    updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS cycles (
    cycle_id       TEXT PRIMARY KEY,
    account_id     TEXT NOT NULL REFERENCES accounts(id),
    started_at     TIMESTAMPTZ NOT NULL,
    finished_at    TIMESTAMPTZ NOT NULL,
    status         TEXT NOT NULL,
    claimed_sol    DOUBLE PRECISION NOT NULL DEFAULT 0,
    spend_sol      DOUBLE PRECISION NOT NULL DEFAULT 0,
    swap_signature TEXT,
    amount_out     DOUBLE PRECISION NOT NULL DEFAULT 0,
    burn_signature TEXT,
    burned_amount  DOUBLE PRECISION NOT NULL DEFAULT 0,
    held_balance   DOUBLE PRECISION NOT NULL DEFAULT 0,
    confidence     INTEGER NOT NULL DEFAULT 0,
    rationale      TEXT,
    error          TEXT
);

CREATE INDEX IF NOT EXISTS idx_accounts_active ON accounts(active);
CREATE INDEX IF NOT EXISTS idx_cycles_account  ON cycles(account_id, started_at DESC);
`

// PostgresStore implements ports.LedgerStore on PostgreSQL via pgx.
// Used for multi-instance deployments where SQLite's single writer is
// not enough.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ ports.LedgerStore = (*PostgresStore)(nil)

// NewPostgresStore connects to the database, verifies the connection,
// and applies the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresStore: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresStore: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresStore: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresStore: apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (domain.ManagedAccount, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner, secret_key, asset_mint, mode, active, created_at
		FROM accounts WHERE id = $1
	`, id)

	acc, err := scanAccountPg(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ManagedAccount{}, fmt.Errorf("storage.GetAccount: %s: %w", id, domain.ErrAccountNotFound)
	}
	if err != nil {
		return domain.ManagedAccount{}, fmt.Errorf("storage.GetAccount: %w", err)
	}
	return acc, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]domain.ManagedAccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner, secret_key, asset_mint, mode, active, created_at
		FROM accounts WHERE active ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListActive: query: %w", err)
	}
	defer rows.Close()

	var accounts []domain.ManagedAccount
	for rows.Next() {
		acc, err := scanAccountPg(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListActive: scan row: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) PutAccount(ctx context.Context, account domain.ManagedAccount) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, owner, secret_key, asset_mint, mode, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			owner      = EXCLUDED.owner,
			secret_key = EXCLUDED.secret_key,
			asset_mint = EXCLUDED.asset_mint,
			mode       = EXCLUDED.mode,
			active     = EXCLUDED.active
	`, account.ID, account.Owner, account.SecretKey, account.AssetMint,
		string(account.Mode), account.Active, account.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("storage.PutAccount: %s: %w", account.ID, err)
	}
	return nil
}

func (s *PostgresStore) Deactivate(ctx context.Context, id, reason string) error {
	res, err := s.pool.Exec(ctx, `
		UPDATE accounts SET active = FALSE, deactivated_reason = $1 WHERE id = $2
	`, reason, id)
	if err != nil {
		return fmt.Errorf("storage.Deactivate: %s: %w", id, err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("storage.Deactivate: %s: %w", id, domain.ErrAccountNotFound)
	}
	return nil
}

func (s *PostgresStore) RecordCycle(ctx context.Context, result domain.CycleResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage.RecordCycle: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx, `
		INSERT INTO cycles
			(cycle_id, account_id, started_at, finished_at, status,
			 claimed_sol, spend_sol, swap_signature, amount_out,
			 burn_signature, burned_amount, held_balance, confidence,
			 rationale, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (cycle_id) DO NOTHING
	`, result.CycleID, result.AccountID, result.StartedAt.UTC(), result.FinishedAt.UTC(),
		string(result.Status), result.ClaimedSOL, result.SpendSOL, result.SwapSignature,
		result.AmountOut, result.BurnSignature, result.BurnedAmount, result.HeldBalance,
		result.Confidence, result.Rationale, result.Err)
	if err != nil {
		return fmt.Errorf("storage.RecordCycle: insert cycle %s: %w", result.CycleID, err)
	}

	if res.RowsAffected() == 0 {
		return nil
	}

	if result.Status == domain.CycleSuccess && result.BurnedAmount > 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ledger (account_id, total_spent_sol, total_burned, last_burn_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (account_id) DO UPDATE SET
				total_spent_sol = ledger.total_spent_sol + EXCLUDED.total_spent_sol,
				total_burned    = ledger.total_burned + EXCLUDED.total_burned,
				last_burn_at    = EXCLUDED.last_burn_at,
				updated_at      = EXCLUDED.updated_at
		`, result.AccountID, result.SpendSOL, result.BurnedAmount,
			result.FinishedAt.UTC(), time.Now().UTC()); err != nil {
			return fmt.Errorf("storage.RecordCycle: update ledger %s: %w", result.AccountID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage.RecordCycle: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ledger(ctx context.Context, accountID string) (domain.LedgerEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT total_spent_sol, total_burned, last_burn_at, updated_at
		FROM ledger WHERE account_id = $1
	`, accountID)

	entry := domain.LedgerEntry{AccountID: accountID}
	var lastBurn, updated *time.Time
	err := row.Scan(&entry.TotalSpentSOL, &entry.TotalBurned, &lastBurn, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return entry, nil
	}
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("storage.Ledger: %s: %w", accountID, err)
	}
	if lastBurn != nil {
		entry.LastBurnAt = *lastBurn
	}
	if updated != nil {
		entry.UpdatedAt = *updated
	}
	return entry, nil
}

func (s *PostgresStore) RecentCycles(ctx context.Context, accountID string, limit int) ([]domain.CycleResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT cycle_id, account_id, started_at, finished_at, status,
		       claimed_sol, spend_sol, swap_signature, amount_out,
		       burn_signature, burned_amount, held_balance, confidence,
		       rationale, error
		FROM cycles WHERE account_id = $1
		ORDER BY started_at DESC LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentCycles: query: %w", err)
	}
	defer rows.Close()

	var results []domain.CycleResult
	for rows.Next() {
		var r domain.CycleResult
		var status string
		var swapSig, burnSig, rationale, errMsg *string
		if err := rows.Scan(
			&r.CycleID, &r.AccountID, &r.StartedAt, &r.FinishedAt, &status,
			&r.ClaimedSOL, &r.SpendSOL, &swapSig, &r.AmountOut,
			&burnSig, &r.BurnedAmount, &r.HeldBalance, &r.Confidence,
			&rationale, &errMsg,
		); err != nil {
			return nil, fmt.Errorf("storage.RecentCycles: scan row: %w", err)
		}
		r.Status = domain.CycleStatus(status)
		r.SwapSignature = deref(swapSig)
		r.BurnSignature = deref(burnSig)
		r.Rationale = deref(rationale)
		r.Err = deref(errMsg)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type pgRowScanner interface {
	Scan(dest ...any) error
}

func scanAccountPg(row pgRowScanner) (domain.ManagedAccount, error) {
	var acc domain.ManagedAccount
	var mode string
	if err := row.Scan(&acc.ID, &acc.Owner, &acc.SecretKey, &acc.AssetMint,
		&mode, &acc.Active, &acc.CreatedAt); err != nil {
		return domain.ManagedAccount{}, err
	}
	acc.Mode = domain.Mode(mode)
	return acc, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
