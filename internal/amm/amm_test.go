package amm

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/likeli/vault-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func pool(yes, no float64) *model.Pool {
	return &model.Pool{
		MarketID:   "mkt-1",
		YesReserve: d(yes),
		NoReserve:  d(no),
	}
}

// --- Price function tests ---

func TestImpliedYesPrice_EqualReserves(t *testing.T) {
	price := ImpliedYesPrice(d(50), d(50))
	if !price.Equal(d(0.5)) {
		t.Errorf("expected 0.5 for equal reserves, got %s", price)
	}
}

func TestImpliedPrices_SumToOneExactly(t *testing.T) {
	tests := []struct {
		yes, no float64
	}{
		{50, 50},
		{1, 99},
		{99, 1},
		{0.0000001, 999999},
		{123.456, 789.123},
	}

	one := decimal.NewFromInt(1)
	for _, tt := range tests {
		sum := ImpliedYesPrice(d(tt.yes), d(tt.no)).Add(ImpliedNoPrice(d(tt.yes), d(tt.no)))
		if !sum.Equal(one) {
			t.Errorf("yes=%v no=%v: prices sum to %s, want exactly 1", tt.yes, tt.no, sum)
		}
	}
}

func TestImpliedYesPrice_WithinOpenInterval(t *testing.T) {
	tests := []struct {
		yes, no float64
	}{
		{50, 50},
		{0.0000001, 999999},
		{999999, 0.0000001},
		{1, 1},
	}

	one := decimal.NewFromInt(1)
	for _, tt := range tests {
		p := ImpliedYesPrice(d(tt.yes), d(tt.no))
		if p.LessThanOrEqual(decimal.Zero) || p.GreaterThanOrEqual(one) {
			t.Errorf("yes=%v no=%v: price %s outside (0,1)", tt.yes, tt.no, p)
		}
	}
}

func TestPriceOf_NoSideIsComplement(t *testing.T) {
	p := pool(30, 70)
	yes := PriceOf(p, model.SideYes)
	no := PriceOf(p, model.SideNo)
	if !yes.Add(no).Equal(decimal.NewFromInt(1)) {
		t.Errorf("YES %s + NO %s should equal 1", yes, no)
	}
	if !yes.Equal(d(0.7)) {
		t.Errorf("expected YES price 0.7, got %s", yes)
	}
}

// --- Quote tests ---

func TestQuoteBuy_SpecScenario(t *testing.T) {
	// {50, 50} at price 0.5; BUY 10 on YES → 20 shares at 0.5,
	// new YES price strictly above 0.5.
	p := pool(50, 50)
	q, err := QuoteBuy(p, model.SideYes, d(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !q.Shares.Equal(d(20)) {
		t.Errorf("expected 20 shares, got %s", q.Shares)
	}
	if !q.AvgPrice.Equal(d(0.5)) {
		t.Errorf("expected avg price 0.5, got %s", q.AvgPrice)
	}

	newPrice := ImpliedYesPrice(q.NewYesReserve, q.NewNoReserve)
	if newPrice.LessThanOrEqual(d(0.5)) {
		t.Errorf("new YES price should exceed 0.5, got %s", newPrice)
	}
}

func TestQuoteBuy_DoesNotMutateInput(t *testing.T) {
	p := pool(50, 50)
	if _, err := QuoteBuy(p, model.SideYes, d(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.YesReserve.Equal(d(50)) || !p.NoReserve.Equal(d(50)) {
		t.Errorf("input pool mutated: yes=%s no=%s", p.YesReserve, p.NoReserve)
	}
}

func TestQuoteBuy_BuyingNoLowersYesPrice(t *testing.T) {
	p := pool(50, 50)
	q, err := QuoteBuy(p, model.SideNo, d(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	newYes := ImpliedYesPrice(q.NewYesReserve, q.NewNoReserve)
	if newYes.GreaterThanOrEqual(d(0.5)) {
		t.Errorf("buying NO should lower YES price, got %s", newYes)
	}
}

func TestQuoteBuy_ReservesStayPositive(t *testing.T) {
	p := pool(0.0000001, 999999)
	q, err := QuoteBuy(p, model.SideYes, d(1000))
	if err != nil {
		t.Fatalf("near-saturated but valid pool should quote, got %v", err)
	}
	if q.NewYesReserve.LessThanOrEqual(decimal.Zero) || q.NewNoReserve.LessThanOrEqual(decimal.Zero) {
		t.Errorf("reserves must stay positive: yes=%s no=%s", q.NewYesReserve, q.NewNoReserve)
	}
}

func TestQuoteBuy_InvalidSide(t *testing.T) {
	_, err := QuoteBuy(pool(50, 50), "MAYBE", d(10))
	if err != ErrInvalidSide {
		t.Errorf("expected ErrInvalidSide, got %v", err)
	}
}

func TestQuoteBuy_NonPositiveAmount(t *testing.T) {
	for _, amount := range []float64{0, -5} {
		_, err := QuoteBuy(pool(50, 50), model.SideYes, d(amount))
		if err != ErrNonPositiveAmount {
			t.Errorf("amount=%v: expected ErrNonPositiveAmount, got %v", amount, err)
		}
	}
}

func TestQuoteBuy_DegeneratePool(t *testing.T) {
	_, err := QuoteBuy(pool(0, 50), model.SideYes, d(10))
	if err != ErrDegeneratePool {
		t.Errorf("expected ErrDegeneratePool for zero reserve, got %v", err)
	}
}

// --- Guard tests ---

func TestValidate_AcceptsNearSaturatedPool(t *testing.T) {
	if err := Validate(pool(0.0000001, 999999)); err != nil {
		t.Errorf("price near 1 is still valid, got %v", err)
	}
}

func TestValidate_RejectsNonPositiveReserves(t *testing.T) {
	tests := []struct {
		name    string
		yes, no float64
	}{
		{"zero yes", 0, 50},
		{"zero no", 50, 0},
		{"negative yes", -1, 50},
		{"negative no", 50, -1},
		{"both zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(pool(tt.yes, tt.no)); err != ErrDegeneratePool {
				t.Errorf("expected ErrDegeneratePool, got %v", err)
			}
		})
	}
}

func TestValidate_IdempotentOnValidPool(t *testing.T) {
	p := pool(42, 58)
	if err := Validate(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(p); err != nil {
		t.Fatalf("second application should still pass: %v", err)
	}
	if !p.YesReserve.Equal(d(42)) || !p.NoReserve.Equal(d(58)) {
		t.Errorf("guard must not change a valid pool: yes=%s no=%s", p.YesReserve, p.NoReserve)
	}
}

func TestResetPool_RestoresFallbackPrice(t *testing.T) {
	p := pool(0, -3)
	p.TotalVolume = d(9999)

	ResetPool(p, d(0.5))

	if err := Validate(p); err != nil {
		t.Fatalf("reset pool should be valid: %v", err)
	}
	price := ImpliedYesPrice(p.YesReserve, p.NoReserve)
	if !price.Equal(d(0.5)) {
		t.Errorf("expected price 0.5 after reset, got %s", price)
	}
	if !p.TotalVolume.IsZero() {
		t.Errorf("reset should zero remembered volume, got %s", p.TotalVolume)
	}
}

func TestResetPool_CustomFallback(t *testing.T) {
	p := pool(0, 0)
	ResetPool(p, d(0.75))

	price := ImpliedYesPrice(p.YesReserve, p.NoReserve)
	if !price.Equal(d(0.75)) {
		t.Errorf("expected price 0.75 after seeded reset, got %s", price)
	}
}

// --- Pool creation tests ---

func TestNewPool_DefaultSeed(t *testing.T) {
	p := NewPool("mkt-1", DefaultSeedPrice)
	if err := Validate(p); err != nil {
		t.Fatalf("fresh pool should be valid: %v", err)
	}
	if !ImpliedYesPrice(p.YesReserve, p.NoReserve).Equal(d(0.5)) {
		t.Errorf("fresh pool should price at 0.5")
	}
	if !p.TotalVolume.IsZero() {
		t.Errorf("fresh pool should have zero volume")
	}
}

func TestNewPool_SeededPrice(t *testing.T) {
	p := NewPool("mkt-1", d(0.38))
	price := ImpliedYesPrice(p.YesReserve, p.NoReserve)
	if !price.Equal(d(0.38)) {
		t.Errorf("expected seeded price 0.38, got %s", price)
	}
}

func TestNewPool_OutOfRangeSeedFallsBack(t *testing.T) {
	for _, seed := range []float64{0, 1, -0.3, 1.5} {
		p := NewPool("mkt-1", d(seed))
		price := ImpliedYesPrice(p.YesReserve, p.NoReserve)
		if !price.Equal(d(0.5)) {
			t.Errorf("seed=%v: expected fallback 0.5, got %s", seed, price)
		}
	}
}
