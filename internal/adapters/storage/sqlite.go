package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/ports"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    id          TEXT PRIMARY KEY,
    owner       TEXT NOT NULL,
    secret_key  TEXT NOT NULL,
    asset_mint  TEXT NOT NULL,
    mode        TEXT NOT NULL DEFAULT 'standard',
    active      INTEGER NOT NULL DEFAULT 1,
    deactivated_reason TEXT,
    created_at  DATETIME NOT NULL
);

-- Cumulative counters, one row per account. Incremented only by a
-- successful cycle, in the same transaction that records it.
CREATE TABLE IF NOT EXISTS ledger (
    account_id      TEXT PRIMARY KEY REFERENCES accounts(id),
    total_spent_sol REAL NOT NULL DEFAULT 0,
    total_burned    REAL NOT NULL DEFAULT 0,
    last_burn_at    DATETIME,
    updated_at      DATETIME NOT NULL
);

-- Append-only cycle log, idempotent by cycle_id.
CREATE TABLE IF NOT EXISTS cycles (
    cycle_id       TEXT PRIMARY KEY,
    account_id     TEXT NOT NULL REFERENCES accounts(id),
    started_at     DATETIME NOT NULL,
    finished_at    DATETIME NOT NULL,
    status         TEXT NOT NULL,
    claimed_sol    REAL NOT NULL DEFAULT 0,
    spend_sol      REAL NOT NULL DEFAULT 0,
    swap_signature TEXT,
    amount_out     REAL NOT NULL DEFAULT 0,
    burn_signature TEXT,
    burned_amount  REAL NOT NULL DEFAULT 0,
    held_balance   REAL NOT NULL DEFAULT 0,
    confidence     INTEGER NOT NULL DEFAULT 0,
    rationale      TEXT,
    error          TEXT
);

CREATE INDEX IF NOT EXISTS idx_accounts_active ON accounts(active);
CREATE INDEX IF NOT EXISTS idx_cycles_account  ON cycles(account_id, started_at DESC);
`

const cycleRetention = 30 * 24 * time.Hour

// SQLiteStore implements ports.LedgerStore on SQLite (pure Go, no CGo).
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.LedgerStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at the given path,
// applies the schema, and prunes old cycle rows.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// GetAccount returns the account with the given id.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (domain.ManagedAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, secret_key, asset_mint, mode, active, created_at
		FROM accounts WHERE id = ?
	`, id)

	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ManagedAccount{}, fmt.Errorf("storage.GetAccount: %s: %w", id, domain.ErrAccountNotFound)
	}
	if err != nil {
		return domain.ManagedAccount{}, fmt.Errorf("storage.GetAccount: %w", err)
	}
	return acc, nil
}

// ListActive returns every active account, oldest first so scheduling
// order is stable.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]domain.ManagedAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, secret_key, asset_mint, mode, active, created_at
		FROM accounts WHERE active = 1 ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListActive: query: %w", err)
	}
	defer rows.Close()

	var accounts []domain.ManagedAccount
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListActive: scan row: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// PutAccount inserts or updates an account.
func (s *SQLiteStore) PutAccount(ctx context.Context, account domain.ManagedAccount) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, owner, secret_key, asset_mint, mode, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner      = excluded.owner,
			secret_key = excluded.secret_key,
			asset_mint = excluded.asset_mint,
			mode       = excluded.mode,
			active     = excluded.active
	`, account.ID, account.Owner, account.SecretKey, account.AssetMint,
		string(account.Mode), boolInt(account.Active), account.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("storage.PutAccount: %s: %w", account.ID, err)
	}
	return nil
}

// Deactivate marks the account inactive with a reason. Rows are never
// deleted.
func (s *SQLiteStore) Deactivate(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET active = 0, deactivated_reason = ? WHERE id = ?
	`, reason, id)
	if err != nil {
		return fmt.Errorf("storage.Deactivate: %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.Deactivate: %s: %w", id, domain.ErrAccountNotFound)
	}
	return nil
}

// RecordCycle appends the cycle result and, for a success, increments
// the account's ledger in the same transaction. Replaying an already
// recorded cycle id is a no-op and must not double-count the ledger.
func (s *SQLiteStore) RecordCycle(ctx context.Context, result domain.CycleResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.RecordCycle: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO cycles
			(cycle_id, account_id, started_at, finished_at, status,
			 claimed_sol, spend_sol, swap_signature, amount_out,
			 burn_signature, burned_amount, held_balance, confidence,
			 rationale, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.CycleID, result.AccountID, result.StartedAt.UTC(), result.FinishedAt.UTC(),
		string(result.Status), result.ClaimedSOL, result.SpendSOL, result.SwapSignature,
		result.AmountOut, result.BurnSignature, result.BurnedAmount, result.HeldBalance,
		result.Confidence, result.Rationale, result.Err)
	if err != nil {
		return fmt.Errorf("storage.RecordCycle: insert cycle %s: %w", result.CycleID, err)
	}

	inserted, _ := res.RowsAffected()
	if inserted == 0 {
		// Already recorded, ledger already counted.
		return nil
	}

	if result.Status == domain.CycleSuccess && result.BurnedAmount > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger (account_id, total_spent_sol, total_burned, last_burn_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(account_id) DO UPDATE SET
				total_spent_sol = total_spent_sol + excluded.total_spent_sol,
				total_burned    = total_burned + excluded.total_burned,
				last_burn_at    = excluded.last_burn_at,
				updated_at      = excluded.updated_at
		`, result.AccountID, result.SpendSOL, result.BurnedAmount,
			result.FinishedAt.UTC(), time.Now().UTC()); err != nil {
			return fmt.Errorf("storage.RecordCycle: update ledger %s: %w", result.AccountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.RecordCycle: commit: %w", err)
	}
	return nil
}

// Ledger returns the cumulative counters for an account. Accounts with
// no successful cycles yet get a zero entry.
func (s *SQLiteStore) Ledger(ctx context.Context, accountID string) (domain.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT total_spent_sol, total_burned, last_burn_at, updated_at
		FROM ledger WHERE account_id = ?
	`, accountID)

	entry := domain.LedgerEntry{AccountID: accountID}
	var lastBurn, updated sql.NullTime
	err := row.Scan(&entry.TotalSpentSOL, &entry.TotalBurned, &lastBurn, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, nil
	}
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("storage.Ledger: %s: %w", accountID, err)
	}
	if lastBurn.Valid {
		entry.LastBurnAt = lastBurn.Time
	}
	if updated.Valid {
		entry.UpdatedAt = updated.Time
	}
	return entry, nil
}

// RecentCycles returns the latest cycle results for an account, newest
// first.
func (s *SQLiteStore) RecentCycles(ctx context.Context, accountID string, limit int) ([]domain.CycleResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle_id, account_id, started_at, finished_at, status,
		       claimed_sol, spend_sol, swap_signature, amount_out,
		       burn_signature, burned_amount, held_balance, confidence,
		       rationale, error
		FROM cycles WHERE account_id = ?
		ORDER BY started_at DESC LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentCycles: query: %w", err)
	}
	defer rows.Close()

	var results []domain.CycleResult
	for rows.Next() {
		var r domain.CycleResult
		var status string
		var swapSig, burnSig, rationale, errMsg sql.NullString
		if err := rows.Scan(
			&r.CycleID, &r.AccountID, &r.StartedAt, &r.FinishedAt, &status,
			&r.ClaimedSOL, &r.SpendSOL, &swapSig, &r.AmountOut,
			&burnSig, &r.BurnedAmount, &r.HeldBalance, &r.Confidence,
			&rationale, &errMsg,
		); err != nil {
			return nil, fmt.Errorf("storage.RecentCycles: scan row: %w", err)
		}
		r.Status = domain.CycleStatus(status)
		r.SwapSignature = swapSig.String
		r.BurnSignature = burnSig.String
		r.Rationale = rationale.String
		r.Err = errMsg.String
		results = append(results, r)
	}
	return results, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// pruneOld keeps the cycle log bounded. Ledger counters and accounts
// are kept forever.
func (s *SQLiteStore) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-cycleRetention)
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, cutoff)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.ManagedAccount, error) {
	var acc domain.ManagedAccount
	var mode string
	var active int
	if err := row.Scan(&acc.ID, &acc.Owner, &acc.SecretKey, &acc.AssetMint,
		&mode, &active, &acc.CreatedAt); err != nil {
		return domain.ManagedAccount{}, err
	}
	acc.Mode = domain.Mode(mode)
	acc.Active = active == 1
	return acc, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
