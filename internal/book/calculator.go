// Package book implements the price-level model, the fill-walk calculator,
// and the per-asset L2 order book state machine.
package book

import (
	"fmt"

	"github.com/shopspring/decimal"

	"polymarket-arb/pkg/types"
)

// InsufficientLiquidityError means a side did not have enough depth to fill
// the requested size. Available is how much of the target was actually
// fillable (target - remaining), not the side's total liquidity.
type InsufficientLiquidityError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientLiquidityError) Error() string {
	return fmt.Sprintf("insufficient liquidity: need %s, available %s", e.Required, e.Available)
}

// InvalidSizeError means the requested target size was not positive.
type InvalidSizeError struct {
	Size decimal.Decimal
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("invalid order size: %s", e.Size)
}

// FillWalk walks a sorted side (asks ascending for a buy) consuming
// min(remaining, level.size) at each level until target is filled or the
// side is exhausted. WorstPrice is the price of the last level touched;
// VWAP is TotalCost / target.
func FillWalk(side []types.PriceLevel, target decimal.Decimal) (types.FillInfo, error) {
	if !target.IsPositive() {
		return types.FillInfo{}, &InvalidSizeError{Size: target}
	}
	if len(side) == 0 {
		return types.FillInfo{}, &InsufficientLiquidityError{Required: target, Available: decimal.Zero}
	}

	remaining := target
	totalCost := decimal.Zero
	worstPrice := decimal.Zero
	bestPrice := side[0].Price

	for _, level := range side {
		if remaining.IsZero() {
			break
		}
		fillSize := decimal.Min(remaining, level.Size)
		totalCost = totalCost.Add(fillSize.Mul(level.Price))
		remaining = remaining.Sub(fillSize)
		worstPrice = level.Price
	}

	if !remaining.IsZero() {
		return types.FillInfo{}, &InsufficientLiquidityError{
			Required:  target,
			Available: target.Sub(remaining),
		}
	}

	return types.FillInfo{
		FilledSize: target,
		TotalCost:  totalCost,
		VWAP:       totalCost.Div(target),
		WorstPrice: worstPrice,
		BestPrice:  bestPrice,
		HasBest:    true,
	}, nil
}

// CalculateBuyCost is a convenience wrapper returning only the total cost to
// buy size from asks, or false if the walk fails.
func CalculateBuyCost(asks []types.PriceLevel, size decimal.Decimal) (decimal.Decimal, bool) {
	info, err := FillWalk(asks, size)
	if err != nil {
		return decimal.Zero, false
	}
	return info.TotalCost, true
}

// CalculateSellRevenue walks the bid side to compute proceeds from selling
// size; returns false if the bids can't absorb the full size.
func CalculateSellRevenue(bids []types.PriceLevel, size decimal.Decimal) (decimal.Decimal, bool) {
	if !size.IsPositive() || len(bids) == 0 {
		return decimal.Zero, false
	}
	remaining := size
	totalRevenue := decimal.Zero
	for _, level := range bids {
		if remaining.IsZero() {
			break
		}
		fillSize := decimal.Min(remaining, level.Size)
		totalRevenue = totalRevenue.Add(fillSize.Mul(level.Price))
		remaining = remaining.Sub(fillSize)
	}
	if !remaining.IsZero() {
		return decimal.Zero, false
	}
	return totalRevenue, true
}

// DepthAtPrice sums size across levels exactly matching price.
func DepthAtPrice(levels []types.PriceLevel, price decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, l := range levels {
		if l.Price.Equal(price) {
			total = total.Add(l.Size)
		}
	}
	return total
}

// CumulativeDepthUpTo sums ask size at or below targetPrice.
func CumulativeDepthUpTo(asks []types.PriceLevel, targetPrice decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, l := range asks {
		if l.Price.LessThanOrEqual(targetPrice) {
			total = total.Add(l.Size)
		}
	}
	return total
}

// MergeLevels combines an existing level set with updates (zero size
// removes a price, otherwise inserts/overwrites), filtering out any
// resulting zero-size entries. Used mainly in tests to assemble a book
// from a snapshot plus a batch of pending deltas.
func MergeLevels(existing, updates []types.PriceLevel) []types.PriceLevel {
	byPrice := make(map[string]types.PriceLevel, len(existing))
	for _, l := range existing {
		byPrice[l.Price.String()] = l
	}
	for _, u := range updates {
		if u.Size.IsZero() {
			delete(byPrice, u.Price.String())
			continue
		}
		byPrice[u.Price.String()] = u
	}
	merged := make([]types.PriceLevel, 0, len(byPrice))
	for _, l := range byPrice {
		if l.Size.IsPositive() {
			merged = append(merged, l)
		}
	}
	return merged
}

// MidPrice returns the midpoint of best bid and best ask, or false if
// either side is empty.
func MidPrice(b types.OutcomeBook) (decimal.Decimal, bool) {
	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()
	if !hasBid || !hasAsk {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}
