// Package store defines the persistence interface for the vault engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and single-node development).
package store

import (
	"context"
	"errors"

	"github.com/likeli/vault-engine/internal/model"
)

// ErrNotFound is returned when a pool or vault is absent. Callers use it to
// distinguish lazy-creation cases from backing-medium failures; any other
// error means the store itself is unavailable and the single operation
// fails without affecting other keys.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. Puts are total replacements — no
// partial-update API is exposed; the trade executor and vault ledger own
// read-modify-write under their per-key locks.
type Store interface {
	// --- Liquidity pools ---

	// GetPool retrieves the pool for a market, or ErrNotFound.
	GetPool(ctx context.Context, marketID string) (*model.Pool, error)

	// PutPool stores the pool, replacing any existing record.
	PutPool(ctx context.Context, pool *model.Pool) error

	// HasPool reports whether a pool exists for the market.
	HasPool(ctx context.Context, marketID string) (bool, error)

	// ListPools returns all pools.
	ListPools(ctx context.Context) ([]model.Pool, error)

	// --- Vaults ---

	// CreateVault persists a new vault; fails if the ID already exists.
	CreateVault(ctx context.Context, vault *model.Vault) error

	// GetVault retrieves a vault by ID, or ErrNotFound.
	GetVault(ctx context.Context, id string) (*model.Vault, error)

	// PutVault stores the vault, replacing any existing record.
	PutVault(ctx context.Context, vault *model.Vault) error

	// ListVaults returns all vaults.
	ListVaults(ctx context.Context) ([]model.Vault, error)

	// --- Immutable trade ledger ---

	// InsertLedgerEntry appends an immutable trade record.
	InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error

	// GetLedgerEntriesByMarket returns all trades for a market, oldest first.
	GetLedgerEntriesByMarket(ctx context.Context, marketID string) ([]model.LedgerEntry, error)

	// GetLedgerEntriesByVault returns all trades for a vault, oldest first.
	GetLedgerEntriesByVault(ctx context.Context, vaultID string) ([]model.LedgerEntry, error)
}
