// Package amm implements a reserve-ratio automated market maker for binary
// prediction markets.
//
// Unlike a constant-product (x*y=k) curve, the implied YES probability is
// read directly off the reserve weights:
//
//	p_yes = noReserve / (yesReserve + noReserve)
//
// A buy shifts the relative weights — the opposing reserve grows by the full
// notional while the bought side's reserve grows by a smaller, price-scaled
// amount — so the bought side's price strictly increases with every trade.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Functions here are pure: pools are passed in and new reserve values are
// returned; persistence and volume accounting belong to the trade executor.
package amm

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/likeli/vault-engine/internal/model"
)

var (
	// ErrInvalidSide is returned when side is neither "YES" nor "NO".
	ErrInvalidSide = errors.New("amm: side must be YES or NO")

	// ErrNonPositiveAmount is returned for a quote with amount <= 0.
	// The trade executor rejects these before reaching the engine; the
	// engine re-checks because division by a degenerate price is
	// undefined behavior, not a recoverable state.
	ErrNonPositiveAmount = errors.New("amm: amount must be positive")

	// ErrDegeneratePool is returned when a pool fails the validity check:
	// a non-positive reserve, or an implied price outside (0, 1).
	ErrDegeneratePool = errors.New("amm: degenerate pool state")

	// DefaultSeedPrice is the implied YES price for freshly created or
	// reset pools.
	DefaultSeedPrice = decimal.NewFromFloat(0.5)

	// DefaultLiquidity is the combined reserve size for seeded pools.
	// Larger liquidity → lower price impact per trade.
	DefaultLiquidity = decimal.NewFromInt(100)

	one = decimal.NewFromInt(1)
)

// ImpliedYesPrice computes the YES probability from raw reserves:
//
//	p_yes = noReserve / (yesReserve + noReserve)
//
// Callers must validate the pool first; reserves summing to zero divide
// by zero here. The result keeps full division precision — rounding could
// collapse a near-certain but valid price onto the closed boundary.
func ImpliedYesPrice(yesReserve, noReserve decimal.Decimal) decimal.Decimal {
	return noReserve.Div(yesReserve.Add(noReserve))
}

// ImpliedNoPrice returns the NO probability as the exact complement of the
// YES price, so the two always sum to 1.
func ImpliedNoPrice(yesReserve, noReserve decimal.Decimal) decimal.Decimal {
	return one.Sub(ImpliedYesPrice(yesReserve, noReserve))
}

// PriceOf returns the implied price of the given side.
// Must not be called on a pool that fails Validate.
func PriceOf(pool *model.Pool, side string) decimal.Decimal {
	if side == model.SideNo {
		return ImpliedNoPrice(pool.YesReserve, pool.NoReserve)
	}
	return ImpliedYesPrice(pool.YesReserve, pool.NoReserve)
}

// Quote is the result of simulating a buy against a pool.
// NewYesReserve/NewNoReserve describe the post-trade pool; the input pool
// is never mutated.
type Quote struct {
	Shares        decimal.Decimal
	AvgPrice      decimal.Decimal
	NewYesReserve decimal.Decimal
	NewNoReserve  decimal.Decimal
}

// QuoteBuy simulates buying `amount` of notional on `side`.
//
// Shares are issued at the pre-trade price: shares = amount / price.
// The opposing reserve grows by the full amount; the bought side's reserve
// grows by amount * price (the smaller, price-dependent growth representing
// the shares issued). Both reserves stay strictly positive and the bought
// side's implied price strictly increases for any positive amount.
func QuoteBuy(pool *model.Pool, side string, amount decimal.Decimal) (Quote, error) {
	if !model.ValidSide(side) {
		return Quote{}, ErrInvalidSide
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return Quote{}, ErrNonPositiveAmount
	}
	if err := Validate(pool); err != nil {
		return Quote{}, err
	}

	price := PriceOf(pool, side)
	shares := amount.Div(price)
	ownGrowth := amount.Mul(price)

	q := Quote{
		Shares:   shares,
		AvgPrice: price,
	}
	if side == model.SideYes {
		q.NewYesReserve = pool.YesReserve.Add(ownGrowth)
		q.NewNoReserve = pool.NoReserve.Add(amount)
	} else {
		q.NewYesReserve = pool.YesReserve.Add(amount)
		q.NewNoReserve = pool.NoReserve.Add(ownGrowth)
	}
	return q, nil
}

// Validate is the pool guard. It returns ErrDegeneratePool when either
// reserve is non-positive or the implied YES price falls outside the open
// interval (0, 1). Valid pools pass through untouched, so applying the
// guard twice is a no-op.
func Validate(pool *model.Pool) error {
	if pool.YesReserve.LessThanOrEqual(decimal.Zero) ||
		pool.NoReserve.LessThanOrEqual(decimal.Zero) {
		return ErrDegeneratePool
	}
	price := pool.NoReserve.Div(pool.YesReserve.Add(pool.NoReserve))
	if price.LessThanOrEqual(decimal.Zero) || price.GreaterThanOrEqual(one) {
		return ErrDegeneratePool
	}
	return nil
}

// NewPool creates a pool seeded so its implied YES price equals seedPrice.
// Reserves split DefaultLiquidity: yes = L*(1-p), no = L*p. A seed outside
// (0, 1) falls back to DefaultSeedPrice.
func NewPool(marketID string, seedPrice decimal.Decimal) *model.Pool {
	if seedPrice.LessThanOrEqual(decimal.Zero) || seedPrice.GreaterThanOrEqual(one) {
		seedPrice = DefaultSeedPrice
	}
	return &model.Pool{
		MarketID:    marketID,
		YesReserve:  DefaultLiquidity.Mul(one.Sub(seedPrice)),
		NoReserve:   DefaultLiquidity.Mul(seedPrice),
		TotalVolume: decimal.Zero,
		UpdatedAt:   time.Now().UTC(),
	}
}

// ResetPool rebuilds a degenerate pool in place at the fallback price,
// zeroing the remembered volume. Corruption produces a clean restart, not
// a crash; the executor decides whether to apply this or fail closed.
func ResetPool(pool *model.Pool, fallbackPrice decimal.Decimal) {
	fresh := NewPool(pool.MarketID, fallbackPrice)
	pool.YesReserve = fresh.YesReserve
	pool.NoReserve = fresh.NoReserve
	pool.TotalVolume = decimal.Zero
	pool.UpdatedAt = fresh.UpdatedAt
}
