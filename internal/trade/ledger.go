package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/likeli/vault-engine/internal/model"
	"github.com/likeli/vault-engine/internal/store"
)

var (
	// ErrVaultNotFound is returned when the vault ID resolves to nothing.
	ErrVaultNotFound = errors.New("trade: vault not found")

	// ErrInsufficientBalance is returned when the trade amount exceeds the
	// vault's cash balance. The vault and pool are left untouched.
	ErrInsufficientBalance = errors.New("trade: amount exceeds vault balance")
)

// Ledger applies trade executions to vault cash and positions. It owns the
// per-vault check-then-debit critical section; the executor owns the
// per-market one. Lock order is always vault → market, so the two keyed
// locks cannot deadlock.
type Ledger struct {
	store    store.Store
	executor *Executor
	vaultMu  *keyedMutex
}

// NewLedger creates a vault ledger backed by the given store and executor.
func NewLedger(st store.Store, ex *Executor) *Ledger {
	return &Ledger{
		store:    st,
		executor: ex,
		vaultMu:  newKeyedMutex(),
	}
}

// CreateVault persists a new vault with the given name and starting cash.
func (l *Ledger) CreateVault(ctx context.Context, name string, cash decimal.Decimal) (*model.Vault, error) {
	if cash.IsNegative() {
		return nil, ErrInvalidAmount
	}
	vault := &model.Vault{
		ID:          uuid.New().String(),
		Name:        name,
		CashBalance: cash,
		Positions:   []model.Position{},
		CreatedAt:   time.Now().UTC(),
	}
	if err := l.store.CreateVault(ctx, vault); err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}
	return vault, nil
}

// GetVault returns a vault by ID.
func (l *Ledger) GetVault(ctx context.Context, vaultID string) (*model.Vault, error) {
	vault, err := l.store.GetVault(ctx, vaultID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrVaultNotFound, vaultID)
	}
	return vault, err
}

// ExecuteTrade buys `amount` of notional on `side` of a market from a
// vault's cash and books the result.
//
// Rejections (unknown vault, non-positive amount, amount over balance)
// happen before any mutation. On success the buy is executed against the
// AMM, then the vault is updated:
//
//   - No opposite-side position: cash is debited by amount and the
//     same-side position is upserted with a cost-weighted average price.
//     Nothing is realized; pnl is 0.
//   - Opposite-side position held: newly bought shares match against it
//     share-for-share, and each matched pair redeems at $1. Cash is
//     debited the full amount and credited $1 per matched pair. Realized
//     pnl is the closed side's exit value, matched × (1 − fillPrice),
//     minus the matched portion of its cost basis. Any unmatched
//     remainder opens or extends a same-side position at the fill price.
func (l *Ledger) ExecuteTrade(ctx context.Context, vaultID, marketID, marketTitle, side string, amount decimal.Decimal) (*model.Receipt, error) {
	if !model.ValidSide(side) {
		return nil, ErrInvalidSide
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	l.vaultMu.Lock(vaultID)
	defer l.vaultMu.Unlock(vaultID)

	vault, err := l.store.GetVault(ctx, vaultID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrVaultNotFound, vaultID)
	}
	if err != nil {
		return nil, fmt.Errorf("load vault %s: %w", vaultID, err)
	}

	if amount.GreaterThan(vault.CashBalance) {
		return nil, ErrInsufficientBalance
	}

	res, err := l.executor.ExecuteBuy(ctx, marketID, side, amount)
	if err != nil {
		return nil, err
	}

	pnl := l.applyFill(vault, marketID, marketTitle, side, amount, res)

	if err := l.store.PutVault(ctx, vault); err != nil {
		return nil, fmt.Errorf("persist vault %s: %w", vaultID, err)
	}

	entry := &model.LedgerEntry{
		ID:          uuid.New().String(),
		VaultID:     vaultID,
		MarketID:    marketID,
		MarketTitle: marketTitle,
		Side:        side,
		Amount:      amount,
		Shares:      res.Shares,
		Price:       res.AvgPrice,
		PnL:         pnl,
		Timestamp:   time.Now().UTC(),
	}
	if err := l.store.InsertLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("record trade: %w", err)
	}

	newMarketPrice := res.NewYesPrice
	if side == model.SideNo {
		newMarketPrice = decimal.NewFromInt(1).Sub(res.NewYesPrice)
	}

	slog.Info("trade executed",
		"trade_id", entry.ID,
		"vault", vaultID,
		"market", marketID,
		"side", side,
		"amount", amount.String(),
		"shares", res.Shares.String(),
		"fill_price", res.AvgPrice.String(),
		"pnl", pnl.String(),
		"new_price_yes", res.NewYesPrice.String(),
	)

	return &model.Receipt{
		TradeID:        entry.ID,
		VaultID:        vaultID,
		MarketID:       marketID,
		Side:           side,
		SharesAcquired: res.Shares,
		Price:          res.AvgPrice,
		NewMarketPrice: newMarketPrice,
		PnL:            pnl,
		VaultBalance:   vault.CashBalance,
	}, nil
}

// applyFill mutates the vault's cash and positions for an executed buy and
// returns the realized P&L. The vault lock must be held.
func (l *Ledger) applyFill(vault *model.Vault, marketID, marketTitle, side string, amount decimal.Decimal, res *ExecutionResult) decimal.Decimal {
	vault.CashBalance = vault.CashBalance.Sub(amount)

	pnl := decimal.Zero
	remainder := res.Shares
	remainderCost := amount

	opp := vault.Position(marketID, model.OppositeSide(side))
	if opp != nil {
		matched := decimal.Min(opp.Shares, res.Shares)
		exitPrice := decimal.NewFromInt(1).Sub(res.AvgPrice)
		costRelief := matched.Mul(opp.AvgPrice)

		// The closed side exits at 1 − fillPrice; realized P&L is that
		// exit value minus the matched share of its cost basis.
		pnl = matched.Mul(exitPrice).Sub(costRelief)

		// Each matched pair redeems at $1: the new-side half returns
		// exactly what it cost this instant (fillPrice), the old-side
		// half contributes its exit value.
		vault.CashBalance = vault.CashBalance.Add(matched)

		opp.Shares = opp.Shares.Sub(matched)
		opp.CostBasis = opp.CostBasis.Sub(costRelief)
		if opp.Shares.LessThanOrEqual(decimal.Zero) {
			vault.RemovePosition(marketID, model.OppositeSide(side))
		}

		remainder = res.Shares.Sub(matched)
		remainderCost = remainder.Mul(res.AvgPrice)
	}

	if remainder.GreaterThan(decimal.Zero) {
		if pos := vault.Position(marketID, side); pos != nil {
			pos.Shares = pos.Shares.Add(remainder)
			pos.CostBasis = pos.CostBasis.Add(remainderCost)
			pos.AvgPrice = pos.CostBasis.Div(pos.Shares)
		} else {
			vault.Positions = append(vault.Positions, model.Position{
				MarketID:    marketID,
				MarketTitle: marketTitle,
				Side:        side,
				Shares:      remainder,
				AvgPrice:    res.AvgPrice,
				CostBasis:   remainderCost,
			})
		}
	}

	return pnl
}
