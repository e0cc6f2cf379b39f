package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/likeli/vault-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	pools  map[string]*model.Pool
	vaults map[string]*model.Vault
	ledger []model.LedgerEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pools:  make(map[string]*model.Pool),
		vaults: make(map[string]*model.Vault),
	}
}

func (s *MemoryStore) GetPool(_ context.Context, marketID string) (*model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[marketID]
	if !ok {
		return nil, fmt.Errorf("pool for market %s: %w", marketID, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) PutPool(_ context.Context, pool *model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	cp := *pool
	s.pools[pool.MarketID] = &cp
	return nil
}

func (s *MemoryStore) HasPool(_ context.Context, marketID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.pools[marketID]
	return ok, nil
}

func (s *MemoryStore) ListPools(_ context.Context) ([]model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pools := make([]model.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, *p)
	}
	return pools, nil
}

func (s *MemoryStore) CreateVault(_ context.Context, v *model.Vault) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.vaults[v.ID]; exists {
		return fmt.Errorf("vault %s already exists", v.ID)
	}
	s.vaults[v.ID] = copyVault(v)
	return nil
}

func (s *MemoryStore) GetVault(_ context.Context, id string) (*model.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vaults[id]
	if !ok {
		return nil, fmt.Errorf("vault %s: %w", id, ErrNotFound)
	}
	return copyVault(v), nil
}

func (s *MemoryStore) PutVault(_ context.Context, v *model.Vault) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vaults[v.ID] = copyVault(v)
	return nil
}

func (s *MemoryStore) ListVaults(_ context.Context) ([]model.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vaults := make([]model.Vault, 0, len(s.vaults))
	for _, v := range s.vaults {
		vaults = append(vaults, *copyVault(v))
	}
	return vaults, nil
}

func (s *MemoryStore) InsertLedgerEntry(_ context.Context, entry *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *MemoryStore) GetLedgerEntriesByMarket(_ context.Context, marketID string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.MarketID == marketID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetLedgerEntriesByVault(_ context.Context, vaultID string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.VaultID == vaultID {
			result = append(result, e)
		}
	}
	return result, nil
}

// copyVault deep-copies a vault so callers cannot mutate stored positions.
func copyVault(v *model.Vault) *model.Vault {
	cp := *v
	cp.Positions = make([]model.Position, len(v.Positions))
	copy(cp.Positions, v.Positions)
	return &cp
}
