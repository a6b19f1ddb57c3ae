// Package detector implements the opportunity detector: a pure function
// over two outcome books, a target size, and a cost threshold that either
// reports a detected arbitrage or explains why none was found.
package detector

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-arb/internal/book"
	"polymarket-arb/pkg/types"
)

// BookInvertedError means a book's best ask is below its best bid — a
// transient data-quality condition, not a tradeable state. The detector
// must refuse to act on it.
type BookInvertedError struct {
	Side    types.Outcome
	BestAsk decimal.Decimal
	BestBid decimal.Decimal
}

func (e *BookInvertedError) Error() string {
	return fmt.Sprintf("order book inverted for %s: best_ask=%s < best_bid=%s", e.Side, e.BestAsk, e.BestBid)
}

// Detect runs the full opportunity check:
//
//  1. Reject if either book is inverted.
//  2. Return (nil, nil) if either side has no asks.
//  3. Walk both ask sides for size; return (nil, nil) on insufficient
//     liquidity on either side.
//  4. Compare the summed worst-case prices against threshold; return
//     (nil, nil) if the cost exceeds it.
//  5. Otherwise build and return the Opportunity.
func Detect(market types.Market, upBook, downBook types.OutcomeBook, size, threshold decimal.Decimal) (*types.Opportunity, error) {
	if upBook.IsInverted() {
		bid, _ := upBook.BestBid()
		ask, _ := upBook.BestAsk()
		return nil, &BookInvertedError{Side: types.Up, BestAsk: ask, BestBid: bid}
	}
	if downBook.IsInverted() {
		bid, _ := downBook.BestBid()
		ask, _ := downBook.BestAsk()
		return nil, &BookInvertedError{Side: types.Down, BestAsk: ask, BestBid: bid}
	}

	if len(upBook.Asks) == 0 || len(downBook.Asks) == 0 {
		return nil, nil
	}

	upFill, err := book.FillWalk(upBook.Asks, size)
	if err != nil {
		var liqErr *book.InsufficientLiquidityError
		if errors.As(err, &liqErr) {
			return nil, nil
		}
		return nil, err
	}
	downFill, err := book.FillWalk(downBook.Asks, size)
	if err != nil {
		var liqErr *book.InsufficientLiquidityError
		if errors.As(err, &liqErr) {
			return nil, nil
		}
		return nil, err
	}

	upPrice := upFill.WorstPrice
	downPrice := downFill.WorstPrice
	totalCost := upPrice.Add(downPrice)
	if totalCost.GreaterThan(threshold) {
		return nil, nil
	}

	profitPerShare := decimal.NewFromInt(1).Sub(totalCost)
	var profitPct decimal.Decimal
	if totalCost.IsPositive() {
		profitPct = profitPerShare.Div(totalCost).Mul(decimal.NewFromInt(100))
	}

	totalInvestment := totalCost.Mul(size)
	expectedPayout := size
	expectedProfit := expectedPayout.Sub(totalInvestment)

	upAsk, hasUpAsk := upBook.BestAsk()
	downAsk, hasDownAsk := downBook.BestAsk()

	return &types.Opportunity{
		Market:          market,
		UpPrice:         upPrice,
		DownPrice:       downPrice,
		TotalCost:       totalCost,
		ProfitPerShare:  profitPerShare,
		ProfitPct:       profitPct,
		OrderSize:       size,
		TotalInvestment: totalInvestment,
		ExpectedPayout:  expectedPayout,
		ExpectedProfit:  expectedProfit,
		BestAskUp:       upAsk,
		HasBestUp:       hasUpAsk,
		BestAskDown:     downAsk,
		HasBestDown:     hasDownAsk,
		VWAPUp:          upFill.VWAP,
		VWAPDown:        downFill.VWAP,
		DetectedAt:      time.Now(),
	}, nil
}

// QuickCheck is a cheap pre-check comparing best-ask sums against
// threshold without walking either book — used to skip the more
// expensive fill-walk on clearly unprofitable snapshots. It does not
// detect inversion or insufficient liquidity; a true result only means
// "worth the full Detect call".
func QuickCheck(upBook, downBook types.OutcomeBook, threshold decimal.Decimal) bool {
	upAsk, hasUp := upBook.BestAsk()
	downAsk, hasDown := downBook.BestAsk()
	if !hasUp || !hasDown {
		return false
	}
	return upAsk.Add(downAsk).LessThanOrEqual(threshold)
}

// Diagnosis explains why Detect returned no opportunity, for logging.
type Diagnosis struct {
	BestAskUp         decimal.Decimal
	HasBestAskUp      bool
	BestAskDown       decimal.Decimal
	HasBestAskDown    bool
	BestTotal         decimal.Decimal
	HasBestTotal      bool
	FillTotal         decimal.Decimal
	HasFillTotal      bool
	Threshold         decimal.Decimal
	UpLiquidity       decimal.Decimal
	DownLiquidity     decimal.Decimal
	HasSufficientLiq  bool
}

func (d Diagnosis) String() string {
	best := "n/a"
	if d.HasBestTotal {
		best = d.BestTotal.String()
	}
	fill := "n/a"
	if d.HasFillTotal {
		fill = d.FillTotal.String()
	}
	return fmt.Sprintf(
		"no opportunity: best_total=%s fill_total=%s threshold=%s up_liq=%s down_liq=%s sufficient_liq=%v",
		best, fill, d.Threshold, d.UpLiquidity, d.DownLiquidity, d.HasSufficientLiq,
	)
}

// Diagnose builds a diagnostic snapshot for observability when Detect
// returns (nil, nil). It never fails — every field is best-effort.
func Diagnose(upBook, downBook types.OutcomeBook, size, threshold decimal.Decimal) Diagnosis {
	d := Diagnosis{
		Threshold:     threshold,
		UpLiquidity:   upBook.TotalAskLiquidity(),
		DownLiquidity: downBook.TotalAskLiquidity(),
	}

	if ask, ok := upBook.BestAsk(); ok {
		d.BestAskUp, d.HasBestAskUp = ask, true
	}
	if ask, ok := downBook.BestAsk(); ok {
		d.BestAskDown, d.HasBestAskDown = ask, true
	}
	if d.HasBestAskUp && d.HasBestAskDown {
		d.BestTotal, d.HasBestTotal = d.BestAskUp.Add(d.BestAskDown), true
	}

	upFill, upErr := book.FillWalk(upBook.Asks, size)
	downFill, downErr := book.FillWalk(downBook.Asks, size)
	d.HasSufficientLiq = upErr == nil && downErr == nil
	if d.HasSufficientLiq {
		d.FillTotal, d.HasFillTotal = upFill.WorstPrice.Add(downFill.WorstPrice), true
	}

	return d
}
