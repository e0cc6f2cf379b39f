package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/likeli/vault-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for pool and vault lookups. Writes go to the primary store and
// invalidate the cache; reads check Redis first then fall back to the
// primary. Cache failures degrade to primary reads — they never fail a
// trade on their own.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetPool(ctx context.Context, marketID string) (*model.Pool, error) {
	data, err := s.rdb.Get(ctx, poolKey(marketID)).Bytes()
	if err == nil {
		var p model.Pool
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
		// Undecodable cache entry: drop it and fall through to primary.
		s.rdb.Del(ctx, poolKey(marketID))
	}

	p, err := s.primary.GetPool(ctx, marketID)
	if err != nil {
		return nil, err
	}
	s.cachePool(ctx, p)
	return p, nil
}

func (s *CachedStore) GetVault(ctx context.Context, id string) (*model.Vault, error) {
	data, err := s.rdb.Get(ctx, vaultKey(id)).Bytes()
	if err == nil {
		var v model.Vault
		if json.Unmarshal(data, &v) == nil {
			return &v, nil
		}
		s.rdb.Del(ctx, vaultKey(id))
	}

	v, err := s.primary.GetVault(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheVault(ctx, v)
	return v, nil
}

// --- Write-through (write to primary, refresh or invalidate cache) ---

func (s *CachedStore) PutPool(ctx context.Context, p *model.Pool) error {
	if err := s.primary.PutPool(ctx, p); err != nil {
		return err
	}
	s.cachePool(ctx, p)
	return nil
}

func (s *CachedStore) CreateVault(ctx context.Context, v *model.Vault) error {
	if err := s.primary.CreateVault(ctx, v); err != nil {
		return err
	}
	s.cacheVault(ctx, v)
	return nil
}

func (s *CachedStore) PutVault(ctx context.Context, v *model.Vault) error {
	if err := s.primary.PutVault(ctx, v); err != nil {
		return err
	}
	s.cacheVault(ctx, v)
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) HasPool(ctx context.Context, marketID string) (bool, error) {
	if err := s.rdb.Get(ctx, poolKey(marketID)).Err(); err == nil {
		return true, nil
	}
	return s.primary.HasPool(ctx, marketID)
}

func (s *CachedStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	return s.primary.ListPools(ctx)
}

func (s *CachedStore) ListVaults(ctx context.Context) ([]model.Vault, error) {
	return s.primary.ListVaults(ctx)
}

func (s *CachedStore) InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	return s.primary.InsertLedgerEntry(ctx, entry)
}

func (s *CachedStore) GetLedgerEntriesByMarket(ctx context.Context, marketID string) ([]model.LedgerEntry, error) {
	return s.primary.GetLedgerEntriesByMarket(ctx, marketID)
}

func (s *CachedStore) GetLedgerEntriesByVault(ctx context.Context, vaultID string) ([]model.LedgerEntry, error) {
	return s.primary.GetLedgerEntriesByVault(ctx, vaultID)
}

// --- Cache helpers ---

func (s *CachedStore) cachePool(ctx context.Context, p *model.Pool) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, poolKey(p.MarketID), data, s.ttl)
	}
}

func (s *CachedStore) cacheVault(ctx context.Context, v *model.Vault) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, vaultKey(v.ID), data, s.ttl)
	}
}

func poolKey(marketID string) string { return fmt.Sprintf("pool:%s", marketID) }
func vaultKey(id string) string      { return fmt.Sprintf("vault:%s", id) }
