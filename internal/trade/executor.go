// Package trade provides trade execution against the reserve-ratio AMM,
// vault balance and position bookkeeping, and the HTTP handlers exposing
// both to the UI.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/likeli/vault-engine/internal/amm"
	"github.com/likeli/vault-engine/internal/metrics"
	"github.com/likeli/vault-engine/internal/model"
	"github.com/likeli/vault-engine/internal/store"
)

var (
	// ErrInvalidAmount is returned for a non-positive trade amount.
	ErrInvalidAmount = errors.New("trade: amount must be a positive number")

	// ErrInvalidSide is returned when side is neither "YES" nor "NO".
	ErrInvalidSide = errors.New("trade: side must be YES or NO")

	// ErrCorruptPoolState is returned instead of auto-resetting when the
	// executor runs in fail-closed mode and the pool guard trips.
	ErrCorruptPoolState = errors.New("trade: pool state is corrupt")
)

// Executor validates and executes buys against the AMM, owning the
// quote-then-persist critical section per market. The store and guard
// policy are injected; nothing here reaches global state.
type Executor struct {
	store      store.Store
	marketMu   *keyedMutex
	seedPrice  decimal.Decimal
	failClosed bool
}

// NewExecutor creates a trade executor. seedPrice is the implied YES price
// for lazily created and reset pools; zero selects the default of 0.5.
// failClosed switches pool-corruption handling from auto-reset to a
// returned ErrCorruptPoolState.
func NewExecutor(st store.Store, seedPrice decimal.Decimal, failClosed bool) *Executor {
	if seedPrice.LessThanOrEqual(decimal.Zero) {
		seedPrice = amm.DefaultSeedPrice
	}
	return &Executor{
		store:      st,
		marketMu:   newKeyedMutex(),
		seedPrice:  seedPrice,
		failClosed: failClosed,
	}
}

// ExecutionResult carries the pricing outcome of a single buy.
type ExecutionResult struct {
	Shares      decimal.Decimal
	AvgPrice    decimal.Decimal
	NewYesPrice decimal.Decimal
	Pool        *model.Pool
}

// PriceOf returns the implied price of one side of a market, lazily
// creating the pool at the seed price when absent and repairing (or, in
// fail-closed mode, rejecting) degenerate pool state first.
func (e *Executor) PriceOf(ctx context.Context, marketID, side string) (decimal.Decimal, error) {
	if !model.ValidSide(side) {
		return decimal.Zero, ErrInvalidSide
	}

	e.marketMu.Lock(marketID)
	defer e.marketMu.Unlock(marketID)

	pool, err := e.resolvePool(ctx, marketID)
	if err != nil {
		return decimal.Zero, err
	}
	return amm.PriceOf(pool, side), nil
}

// ExecuteBuy executes a buy of `amount` notional on `side` of a market.
//
// Preconditions are checked in order, short-circuiting on first failure:
// amount positivity, pool resolution (lazy create), guard, quote. The new
// pool is persisted with totalVolume incremented by the amount; failures
// leave the store untouched. The per-market lock spans the whole
// read-quote-persist sequence, so concurrent buys on one market apply in
// lock acquisition order.
func (e *Executor) ExecuteBuy(ctx context.Context, marketID, side string, amount decimal.Decimal) (*ExecutionResult, error) {
	if !model.ValidSide(side) {
		return nil, ErrInvalidSide
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	e.marketMu.Lock(marketID)
	defer e.marketMu.Unlock(marketID)

	pool, err := e.resolvePool(ctx, marketID)
	if err != nil {
		return nil, err
	}

	quote, err := amm.QuoteBuy(pool, side, amount)
	if err != nil {
		return nil, fmt.Errorf("quote %s %s: %w", side, marketID, err)
	}

	newPool := &model.Pool{
		MarketID:    marketID,
		YesReserve:  quote.NewYesReserve,
		NoReserve:   quote.NewNoReserve,
		TotalVolume: pool.TotalVolume.Add(amount),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := e.store.PutPool(ctx, newPool); err != nil {
		return nil, fmt.Errorf("persist pool %s: %w", marketID, err)
	}

	return &ExecutionResult{
		Shares:      quote.Shares,
		AvgPrice:    quote.AvgPrice,
		NewYesPrice: amm.ImpliedYesPrice(newPool.YesReserve, newPool.NoReserve),
		Pool:        newPool,
	}, nil
}

// resolvePool loads the pool for a market, creating it at the seed price
// when absent and applying the guard policy to degenerate state.
// Must be called with the market lock held.
func (e *Executor) resolvePool(ctx context.Context, marketID string) (*model.Pool, error) {
	pool, err := e.store.GetPool(ctx, marketID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		pool = amm.NewPool(marketID, e.seedPrice)
		if err := e.store.PutPool(ctx, pool); err != nil {
			return nil, fmt.Errorf("create pool %s: %w", marketID, err)
		}
		slog.Info("pool created", "market", marketID, "seed_price", e.seedPrice.String())
		return pool, nil
	case err != nil:
		return nil, fmt.Errorf("load pool %s: %w", marketID, err)
	}

	if err := amm.Validate(pool); err != nil {
		if e.failClosed {
			return nil, fmt.Errorf("%w: market %s", ErrCorruptPoolState, marketID)
		}
		amm.ResetPool(pool, e.seedPrice)
		if err := e.store.PutPool(ctx, pool); err != nil {
			return nil, fmt.Errorf("reset pool %s: %w", marketID, err)
		}
		metrics.PoolResets.Inc()
		slog.Warn("degenerate pool reset",
			"market", marketID,
			"fallback_price", e.seedPrice.String(),
		)
	}
	return pool, nil
}
