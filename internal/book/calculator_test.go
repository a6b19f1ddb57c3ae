package book

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"polymarket-arb/pkg/types"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func lvl(price, size string) types.PriceLevel {
	return types.PriceLevel{Price: dec(price), Size: dec(size)}
}

func TestFillWalkSingleLevel(t *testing.T) {
	t.Parallel()

	asks := []types.PriceLevel{lvl("0.50", "100")}
	info, err := FillWalk(asks, dec("10"))
	if err != nil {
		t.Fatalf("FillWalk() error = %v", err)
	}
	if !info.VWAP.Equal(dec("0.50")) {
		t.Errorf("VWAP = %v, want 0.50", info.VWAP)
	}
	if !info.WorstPrice.Equal(dec("0.50")) {
		t.Errorf("WorstPrice = %v, want 0.50", info.WorstPrice)
	}
	if !info.TotalCost.Equal(dec("5.0")) {
		t.Errorf("TotalCost = %v, want 5.0", info.TotalCost)
	}
}

func TestFillWalkSpansLevels(t *testing.T) {
	t.Parallel()

	// Scenario 3: asks [(0.48,5),(0.49,5),(0.50,10)], target 10
	// -> total_cost=4.85, vwap=0.485, worst_price=0.49
	asks := []types.PriceLevel{
		lvl("0.48", "5"),
		lvl("0.49", "5"),
		lvl("0.50", "10"),
	}
	info, err := FillWalk(asks, dec("10"))
	if err != nil {
		t.Fatalf("FillWalk() error = %v", err)
	}
	if !info.TotalCost.Equal(dec("4.85")) {
		t.Errorf("TotalCost = %v, want 4.85", info.TotalCost)
	}
	if !info.VWAP.Equal(dec("0.485")) {
		t.Errorf("VWAP = %v, want 0.485", info.VWAP)
	}
	if !info.WorstPrice.Equal(dec("0.49")) {
		t.Errorf("WorstPrice = %v, want 0.49", info.WorstPrice)
	}
}

func TestFillWalkInsufficientLiquidity(t *testing.T) {
	t.Parallel()

	// Scenario 4: asks [(0.50,5)], target 10 -> InsufficientLiquidity{required:10, available:5}
	asks := []types.PriceLevel{lvl("0.50", "5")}
	_, err := FillWalk(asks, dec("10"))

	var liqErr *InsufficientLiquidityError
	if !errors.As(err, &liqErr) {
		t.Fatalf("FillWalk() error = %v, want *InsufficientLiquidityError", err)
	}
	if !liqErr.Required.Equal(dec("10")) || !liqErr.Available.Equal(dec("5")) {
		t.Errorf("got required=%v available=%v, want 10, 5", liqErr.Required, liqErr.Available)
	}
}

func TestFillWalkInvalidSize(t *testing.T) {
	t.Parallel()

	asks := []types.PriceLevel{lvl("0.50", "100")}
	_, err := FillWalk(asks, decimal.Zero)

	var sizeErr *InvalidSizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("FillWalk() error = %v, want *InvalidSizeError", err)
	}
}

func TestFillWalkEmptySide(t *testing.T) {
	t.Parallel()

	_, err := FillWalk(nil, dec("10"))
	var liqErr *InsufficientLiquidityError
	if !errors.As(err, &liqErr) {
		t.Fatalf("FillWalk() on empty side error = %v, want *InsufficientLiquidityError", err)
	}
	if !liqErr.Available.IsZero() {
		t.Errorf("Available = %v, want 0", liqErr.Available)
	}
}

func TestFillWalkVWAPConsistency(t *testing.T) {
	t.Parallel()

	asks := []types.PriceLevel{lvl("0.40", "3"), lvl("0.45", "3"), lvl("0.60", "10")}
	target := dec("10")
	info, err := FillWalk(asks, target)
	if err != nil {
		t.Fatalf("FillWalk() error = %v", err)
	}
	if got := info.VWAP.Mul(target); !got.Equal(info.TotalCost) {
		t.Errorf("vwap*target = %v, want total_cost %v", got, info.TotalCost)
	}
	if info.VWAP.LessThan(info.BestPrice) || info.VWAP.GreaterThan(info.WorstPrice) {
		t.Errorf("vwap %v not within [best %v, worst %v]", info.VWAP, info.BestPrice, info.WorstPrice)
	}
}

func TestCalculateSellRevenue(t *testing.T) {
	t.Parallel()

	bids := []types.PriceLevel{lvl("0.48", "50"), lvl("0.47", "50")}
	revenue, ok := CalculateSellRevenue(bids, dec("75"))
	if !ok {
		t.Fatal("CalculateSellRevenue() ok = false, want true")
	}
	if !revenue.Equal(dec("35.75")) {
		t.Errorf("revenue = %v, want 35.75", revenue)
	}
}

func TestMergeLevelsAddsAndRemoves(t *testing.T) {
	t.Parallel()

	existing := []types.PriceLevel{lvl("0.50", "100"), lvl("0.51", "50")}
	updates := []types.PriceLevel{lvl("0.50", "0"), lvl("0.52", "25")}
	merged := MergeLevels(existing, updates)

	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
	byPrice := map[string]types.PriceLevel{}
	for _, l := range merged {
		byPrice[l.Price.String()] = l
	}
	if _, ok := byPrice["0.50"]; ok {
		t.Error("0.50 should have been removed by zero-size update")
	}
	if l, ok := byPrice["0.52"]; !ok || !l.Size.Equal(dec("25")) {
		t.Error("0.52 should be present with size 25")
	}
}

func TestMidPrice(t *testing.T) {
	t.Parallel()

	b := types.OutcomeBook{
		Bids: []types.PriceLevel{lvl("0.48", "50")},
		Asks: []types.PriceLevel{lvl("0.52", "50")},
	}
	mid, ok := MidPrice(b)
	if !ok || !mid.Equal(dec("0.50")) {
		t.Errorf("MidPrice() = %v, %v, want 0.50, true", mid, ok)
	}
}
