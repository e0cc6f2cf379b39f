// Package model defines the core domain types shared across the vault engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sides of a binary market.
const (
	SideYes = "YES"
	SideNo  = "NO"
)

// ValidSide reports whether s is one of the two tradable sides.
func ValidSide(s string) bool {
	return s == SideYes || s == SideNo
}

// OppositeSide returns the other side of a binary market.
func OppositeSide(s string) string {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Pool is the liquidity record backing one market's price curve.
// The implied YES price is noReserve / (yesReserve + noReserve); both
// reserves must stay strictly positive for the price to be valid.
type Pool struct {
	MarketID    string          `json:"market_id" db:"market_id"`
	YesReserve  decimal.Decimal `json:"yes_reserve" db:"yes_reserve"`
	NoReserve   decimal.Decimal `json:"no_reserve" db:"no_reserve"`
	TotalVolume decimal.Decimal `json:"total_volume" db:"total_volume"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Position is a vault's aggregate stake in one side of one market.
// Subsequent same-side buys fold into the entry with a cost-weighted
// average price; the entry is removed when fully unwound.
type Position struct {
	MarketID    string          `json:"market_id"`
	MarketTitle string          `json:"market_title"`
	Side        string          `json:"side"` // "YES" or "NO"
	Shares      decimal.Decimal `json:"shares"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
}

// Vault aggregates cash and open positions traded on behalf of an owner.
// The owning identity is opaque to this engine; wallet/auth live elsewhere.
type Vault struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	CashBalance decimal.Decimal `json:"cash_balance"` // USDC
	Positions   []Position      `json:"positions"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Position returns a pointer into the vault's position slice for the given
// market/side, or nil if the vault holds no such position.
func (v *Vault) Position(marketID, side string) *Position {
	for i := range v.Positions {
		if v.Positions[i].MarketID == marketID && v.Positions[i].Side == side {
			return &v.Positions[i]
		}
	}
	return nil
}

// RemovePosition deletes the position for the given market/side, if present.
func (v *Vault) RemovePosition(marketID, side string) {
	for i := range v.Positions {
		if v.Positions[i].MarketID == marketID && v.Positions[i].Side == side {
			v.Positions = append(v.Positions[:i], v.Positions[i+1:]...)
			return
		}
	}
}

// LedgerEntry is an immutable record of a trade execution.
// Once created, these are never modified or deleted.
type LedgerEntry struct {
	ID          string          `json:"id" db:"id"`
	VaultID     string          `json:"vault_id" db:"vault_id"`
	MarketID    string          `json:"market_id" db:"market_id"`
	MarketTitle string          `json:"market_title" db:"market_title"`
	Side        string          `json:"side" db:"side"`
	Amount      decimal.Decimal `json:"amount" db:"amount"` // USDC notional
	Shares      decimal.Decimal `json:"shares" db:"shares"`
	Price       decimal.Decimal `json:"price" db:"price"` // average fill price
	PnL         decimal.Decimal `json:"pnl" db:"pnl"`     // realized on this trade
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
}

// Receipt is the result of a successful trade execution, returned to the
// caller and not persisted. Failures surface as typed errors instead.
type Receipt struct {
	TradeID        string          `json:"trade_id"`
	VaultID        string          `json:"vault_id"`
	MarketID       string          `json:"market_id"`
	Side           string          `json:"side"`
	SharesAcquired decimal.Decimal `json:"shares_acquired"`
	Price          decimal.Decimal `json:"price"` // effective average fill price
	NewMarketPrice decimal.Decimal `json:"new_market_price"`
	PnL            decimal.Decimal `json:"pnl"`
	VaultBalance   decimal.Decimal `json:"vault_balance"`
}
