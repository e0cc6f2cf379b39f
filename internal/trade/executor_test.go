package trade_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/likeli/vault-engine/internal/amm"
	"github.com/likeli/vault-engine/internal/model"
	"github.com/likeli/vault-engine/internal/store"
	"github.com/likeli/vault-engine/internal/trade"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newExecutor(t *testing.T) (*trade.Executor, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	return trade.NewExecutor(ms, amm.DefaultSeedPrice, false), ms
}

// seedPool writes a pool with the given reserves directly into the store.
func seedPool(t *testing.T, ms *store.MemoryStore, marketID string, yes, no float64) {
	t.Helper()
	err := ms.PutPool(context.Background(), &model.Pool{
		MarketID:    marketID,
		YesReserve:  d(yes),
		NoReserve:   d(no),
		TotalVolume: decimal.Zero,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to seed pool: %v", err)
	}
}

func TestExecuteBuy_LazyPoolCreation(t *testing.T) {
	ex, ms := newExecutor(t)
	ctx := context.Background()

	has, _ := ms.HasPool(ctx, "NE-BAL")
	if has {
		t.Fatal("pool should not exist before first trade")
	}

	res, err := ex.ExecuteBuy(ctx, "NE-BAL", model.SideYes, d(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.AvgPrice.Equal(d(0.5)) {
		t.Errorf("fresh pool should fill at 0.5, got %s", res.AvgPrice)
	}
	if !res.Shares.Equal(d(20)) {
		t.Errorf("expected 20 shares for $10 at 0.5, got %s", res.Shares)
	}
	if res.NewYesPrice.LessThanOrEqual(d(0.5)) {
		t.Errorf("buying YES should raise the YES price, got %s", res.NewYesPrice)
	}

	has, _ = ms.HasPool(ctx, "NE-BAL")
	if !has {
		t.Error("pool should exist after first trade")
	}
}

func TestExecuteBuy_VolumeMonotonic(t *testing.T) {
	ex, ms := newExecutor(t)
	ctx := context.Background()

	amounts := []float64{10, 25, 5, 40}
	total := decimal.Zero
	for _, a := range amounts {
		if _, err := ex.ExecuteBuy(ctx, "BUF-CLE", model.SideYes, d(a)); err != nil {
			t.Fatalf("trade %v failed: %v", a, err)
		}
		total = total.Add(d(a))

		pool, err := ms.GetPool(ctx, "BUF-CLE")
		if err != nil {
			t.Fatalf("pool lookup failed: %v", err)
		}
		if !pool.TotalVolume.Equal(total) {
			t.Errorf("after %v: volume %s, want %s", a, pool.TotalVolume, total)
		}
	}
}

func TestExecuteBuy_InvalidAmount(t *testing.T) {
	ex, ms := newExecutor(t)
	ctx := context.Background()

	for _, a := range []float64{0, -10} {
		if _, err := ex.ExecuteBuy(ctx, "PIT-DET", model.SideYes, d(a)); err != trade.ErrInvalidAmount {
			t.Errorf("amount=%v: expected ErrInvalidAmount, got %v", a, err)
		}
	}

	// Rejection happens before pool resolution: nothing was created.
	if has, _ := ms.HasPool(ctx, "PIT-DET"); has {
		t.Error("rejected trade must not create a pool")
	}
}

func TestExecuteBuy_InvalidSide(t *testing.T) {
	ex, _ := newExecutor(t)
	if _, err := ex.ExecuteBuy(context.Background(), "PIT-DET", "BOTH", d(10)); err != trade.ErrInvalidSide {
		t.Errorf("expected ErrInvalidSide, got %v", err)
	}
}

func TestExecuteBuy_DegeneratePoolAutoReset(t *testing.T) {
	ex, ms := newExecutor(t)
	ctx := context.Background()
	seedPool(t, ms, "MIN-NYG", 0, 50) // zero YES reserve: degenerate

	res, err := ex.ExecuteBuy(ctx, "MIN-NYG", model.SideYes, d(10))
	if err != nil {
		t.Fatalf("fail-open executor should repair and trade: %v", err)
	}

	// The trade filled against the reset pool at the fallback price.
	if !res.AvgPrice.Equal(d(0.5)) {
		t.Errorf("expected fill at fallback 0.5 after reset, got %s", res.AvgPrice)
	}

	pool, _ := ms.GetPool(ctx, "MIN-NYG")
	if err := amm.Validate(pool); err != nil {
		t.Errorf("stored pool should be valid after reset, got %v", err)
	}
	// Reset zeroed the remembered volume before adding this trade.
	if !pool.TotalVolume.Equal(d(10)) {
		t.Errorf("expected volume 10 after reset+trade, got %s", pool.TotalVolume)
	}
}

func TestExecuteBuy_FailClosedRejectsCorruptPool(t *testing.T) {
	ms := store.NewMemoryStore()
	ex := trade.NewExecutor(ms, amm.DefaultSeedPrice, true)
	ctx := context.Background()
	seedPool(t, ms, "MIN-NYG", 0, 50)

	_, err := ex.ExecuteBuy(ctx, "MIN-NYG", model.SideYes, d(10))
	if !errors.Is(err, trade.ErrCorruptPoolState) {
		t.Fatalf("expected ErrCorruptPoolState, got %v", err)
	}

	// Fail-closed must leave the corrupt pool untouched.
	pool, _ := ms.GetPool(ctx, "MIN-NYG")
	if !pool.YesReserve.IsZero() || !pool.NoReserve.Equal(d(50)) {
		t.Errorf("fail-closed must not mutate the pool: yes=%s no=%s",
			pool.YesReserve, pool.NoReserve)
	}
}

func TestExecuteBuy_NearSaturatedPoolTradesWithoutReset(t *testing.T) {
	ex, ms := newExecutor(t)
	ctx := context.Background()
	seedPool(t, ms, "AVL-MUN", 0.0000001, 999999)

	res, err := ex.ExecuteBuy(ctx, "AVL-MUN", model.SideYes, d(10))
	if err != nil {
		t.Fatalf("valid near-saturated pool should trade: %v", err)
	}
	// Fill price reflects the saturated pool, not the 0.5 fallback — the
	// guard did not fire.
	if res.AvgPrice.LessThan(d(0.99)) {
		t.Errorf("expected near-1 fill price, got %s", res.AvgPrice)
	}
}

func TestPriceOf_LazyCreatesAtSeed(t *testing.T) {
	ms := store.NewMemoryStore()
	ex := trade.NewExecutor(ms, d(0.38), false)
	ctx := context.Background()

	price, err := ex.PriceOf(ctx, "NE-BAL", model.SideYes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(d(0.38)) {
		t.Errorf("expected seeded price 0.38, got %s", price)
	}
	if has, _ := ms.HasPool(ctx, "NE-BAL"); !has {
		t.Error("price query should lazily create the pool")
	}
}

func TestPriceOf_RepairsCorruptPool(t *testing.T) {
	ex, ms := newExecutor(t)
	ctx := context.Background()
	seedPool(t, ms, "NE-BAL", -5, 50)

	price, err := ex.PriceOf(ctx, "NE-BAL", model.SideYes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(d(0.5)) {
		t.Errorf("expected fallback price 0.5, got %s", price)
	}
}
