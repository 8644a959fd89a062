package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/ports"
)

// MemoryStore implements ports.LedgerStore in memory. Used for dry
// runs and tests; everything is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.ManagedAccount
	ledger   map[string]domain.LedgerEntry
	cycles   map[string]domain.CycleResult
	order    []string // cycle ids in insertion order
}

var _ ports.LedgerStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]domain.ManagedAccount),
		ledger:   make(map[string]domain.LedgerEntry),
		cycles:   make(map[string]domain.CycleResult),
	}
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (domain.ManagedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return domain.ManagedAccount{}, fmt.Errorf("storage.GetAccount: %s: %w", id, domain.ErrAccountNotFound)
	}
	return acc, nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]domain.ManagedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []domain.ManagedAccount
	for _, acc := range s.accounts {
		if acc.Active {
			active = append(active, acc)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

func (s *MemoryStore) PutAccount(_ context.Context, account domain.ManagedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *MemoryStore) Deactivate(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("storage.Deactivate: %s: %w", id, domain.ErrAccountNotFound)
	}
	acc.Active = false
	s.accounts[id] = acc
	_ = reason // kept for interface parity, memory rows carry no reason column
	return nil
}

func (s *MemoryStore) RecordCycle(_ context.Context, result domain.CycleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cycles[result.CycleID]; exists {
		return nil
	}
	s.cycles[result.CycleID] = result
	s.order = append(s.order, result.CycleID)

	if result.Status == domain.CycleSuccess && result.BurnedAmount > 0 {
		entry := s.ledger[result.AccountID]
		entry.AccountID = result.AccountID
		entry.TotalSpentSOL += result.SpendSOL
		entry.TotalBurned += result.BurnedAmount
		entry.LastBurnAt = result.FinishedAt
		entry.UpdatedAt = time.Now().UTC()
		s.ledger[result.AccountID] = entry
	}
	return nil
}

func (s *MemoryStore) Ledger(_ context.Context, accountID string) (domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.ledger[accountID]
	if !ok {
		return domain.LedgerEntry{AccountID: accountID}, nil
	}
	return entry, nil
}

func (s *MemoryStore) RecentCycles(_ context.Context, accountID string, limit int) ([]domain.CycleResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	var results []domain.CycleResult
	for i := len(s.order) - 1; i >= 0 && len(results) < limit; i-- {
		r := s.cycles[s.order[i]]
		if r.AccountID == accountID {
			results = append(results, r)
		}
	}
	return results, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
