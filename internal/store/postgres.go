package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/likeli/vault-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// vault positions are stored as a JSONB document replaced wholesale on
// every PutVault, matching the interface's total-replacement contract.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetPool(ctx context.Context, marketID string) (*model.Pool, error) {
	var p model.Pool
	var yes, no, vol string

	err := s.pool.QueryRow(ctx,
		`SELECT market_id, yes_reserve::TEXT, no_reserve::TEXT, total_volume::TEXT, updated_at
		 FROM pools WHERE market_id = $1`, marketID).
		Scan(&p.MarketID, &yes, &no, &vol, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pool for market %s: %w", marketID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", marketID, err)
	}

	// Unparseable reserves scan to zero-value decimals, which the pool
	// guard rejects and resets downstream.
	p.YesReserve, _ = decimal.NewFromString(yes)
	p.NoReserve, _ = decimal.NewFromString(no)
	p.TotalVolume, _ = decimal.NewFromString(vol)
	return &p, nil
}

func (s *PostgresStore) PutPool(ctx context.Context, p *model.Pool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pools (market_id, yes_reserve, no_reserve, total_volume, updated_at)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5)
		 ON CONFLICT (market_id) DO UPDATE
		 SET yes_reserve = EXCLUDED.yes_reserve,
		     no_reserve = EXCLUDED.no_reserve,
		     total_volume = EXCLUDED.total_volume,
		     updated_at = EXCLUDED.updated_at`,
		p.MarketID, p.YesReserve.String(), p.NoReserve.String(),
		p.TotalVolume.String(), p.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) HasPool(ctx context.Context, marketID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pools WHERE market_id = $1)`, marketID).
		Scan(&exists)
	return exists, err
}

func (s *PostgresStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_id, yes_reserve::TEXT, no_reserve::TEXT, total_volume::TEXT, updated_at
		 FROM pools ORDER BY market_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []model.Pool
	for rows.Next() {
		var p model.Pool
		var yes, no, vol string
		if err := rows.Scan(&p.MarketID, &yes, &no, &vol, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.YesReserve, _ = decimal.NewFromString(yes)
		p.NoReserve, _ = decimal.NewFromString(no)
		p.TotalVolume, _ = decimal.NewFromString(vol)
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

func (s *PostgresStore) CreateVault(ctx context.Context, v *model.Vault) error {
	positions, err := json.Marshal(v.Positions)
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO vaults (id, name, cash_balance, positions, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5)`,
		v.ID, v.Name, v.CashBalance.String(), positions, v.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetVault(ctx context.Context, id string) (*model.Vault, error) {
	var v model.Vault
	var cash string
	var positions []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, cash_balance::TEXT, positions, created_at
		 FROM vaults WHERE id = $1`, id).
		Scan(&v.ID, &v.Name, &cash, &positions, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("vault %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get vault %s: %w", id, err)
	}

	v.CashBalance, _ = decimal.NewFromString(cash)
	if err := json.Unmarshal(positions, &v.Positions); err != nil {
		return nil, fmt.Errorf("unmarshal positions for vault %s: %w", id, err)
	}
	return &v, nil
}

func (s *PostgresStore) PutVault(ctx context.Context, v *model.Vault) error {
	positions, err := json.Marshal(v.Positions)
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO vaults (id, name, cash_balance, positions, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name,
		     cash_balance = EXCLUDED.cash_balance,
		     positions = EXCLUDED.positions`,
		v.ID, v.Name, v.CashBalance.String(), positions, v.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListVaults(ctx context.Context) ([]model.Vault, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, cash_balance::TEXT, positions, created_at
		 FROM vaults ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vaults []model.Vault
	for rows.Next() {
		var v model.Vault
		var cash string
		var positions []byte
		if err := rows.Scan(&v.ID, &v.Name, &cash, &positions, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.CashBalance, _ = decimal.NewFromString(cash)
		if err := json.Unmarshal(positions, &v.Positions); err != nil {
			return nil, fmt.Errorf("unmarshal positions for vault %s: %w", v.ID, err)
		}
		vaults = append(vaults, v)
	}
	return vaults, rows.Err()
}

func (s *PostgresStore) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ledger_entries (id, vault_id, market_id, market_title, side, amount, shares, price, pnl, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10)`,
		e.ID, e.VaultID, e.MarketID, e.MarketTitle, e.Side,
		e.Amount.String(), e.Shares.String(), e.Price.String(), e.PnL.String(),
		e.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetLedgerEntriesByMarket(ctx context.Context, marketID string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, vault_id, market_id, market_title, side,
		        amount::TEXT, shares::TEXT, price::TEXT, pnl::TEXT, timestamp
		 FROM ledger_entries WHERE market_id = $1 ORDER BY timestamp`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

func (s *PostgresStore) GetLedgerEntriesByVault(ctx context.Context, vaultID string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, vault_id, market_id, market_title, side,
		        amount::TEXT, shares::TEXT, price::TEXT, pnl::TEXT, timestamp
		 FROM ledger_entries WHERE vault_id = $1 ORDER BY timestamp`, vaultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

// pgxRows is the subset of pgx.Rows needed to scan ledger entries.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanLedgerEntries(rows pgxRows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var amountS, sharesS, priceS, pnlS string

		if err := rows.Scan(&e.ID, &e.VaultID, &e.MarketID, &e.MarketTitle, &e.Side,
			&amountS, &sharesS, &priceS, &pnlS, &e.Timestamp); err != nil {
			return nil, err
		}

		e.Amount, _ = decimal.NewFromString(amountS)
		e.Shares, _ = decimal.NewFromString(sharesS)
		e.Price, _ = decimal.NewFromString(priceS)
		e.PnL, _ = decimal.NewFromString(pnlS)

		entries = append(entries, e)
	}
	return entries, rows.Err()
}
