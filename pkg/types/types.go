// Package types defines shared data structures used across all packages.
//
// This is the common vocabulary for the arbitrage engine — order
// parameters, market metadata, price levels, and the detected-opportunity
// record. It has no dependency on internal packages so it can be imported
// by any layer. All prices and sizes are fixed-point decimals; binary
// floats never appear in this package, since the detection and execution
// path cannot tolerate rounding error (0.48 + 0.51 must compare strictly
// against 0.99, not a float approximation of it).
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// TimeInForce is an order's contractual lifetime.
type TimeInForce string

const (
	// FOK fills in full immediately or is cancelled; the default.
	FOK TimeInForce = "FOK"
	// FAK fills what's available immediately and cancels the rest.
	// Mapped to GTC at the venue-client transport boundary.
	FAK TimeInForce = "FAK"
	// GTC stays resting on the book until filled or cancelled.
	GTC TimeInForce = "GTC"
)

// SignatureType identifies the signing scheme for the CTF exchange contract.
type SignatureType int

const (
	SigEOA        SignatureType = 0 // externally-owned account (standard wallet)
	SigProxy      SignatureType = 1 // Polymarket proxy / Magic wallet
	SigGnosisSafe SignatureType = 2 // Gnosis Safe multisig
)

// OrderStatus is the order lifecycle state reported by the venue.
type OrderStatus string

const (
	StatusPending  OrderStatus = "pending"
	StatusLive     OrderStatus = "live"
	StatusFilled   OrderStatus = "filled"
	StatusCanceled OrderStatus = "canceled"
	StatusRejected OrderStatus = "rejected"
	StatusExpired  OrderStatus = "expired"
)

// IsTerminal reports whether the status will never change again.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// Outcome tags which side of a binary market a token represents.
type Outcome string

const (
	Up   Outcome = "UP"
	Down Outcome = "DOWN"
)

// ————————————————————————————————————————————————————————————————————————
// Market
// ————————————————————————————————————————————————————————————————————————

// Market identifies one recurring short-duration binary market: a slug, the
// two outcome token ids, and the open/close window (close = open + 900s).
type Market struct {
	ID            string
	Slug          string
	UpTokenID     string
	DownTokenID   string
	OpenUnixSec   int64
	CloseUnixSec  int64
	Question      string
}

// IsClosed reports whether wall-clock has passed the market's close time.
func (m Market) IsClosed(now time.Time) bool {
	return now.Unix() >= m.CloseUnixSec
}

// ————————————————————————————————————————————————————————————————————————
// Price levels & order books
// ————————————————————————————————————————————————————————————————————————

// PriceLevel is a single resting quantity at a price. Size is never zero —
// a zero-size level is a deletion marker and is never stored or returned
// from a sorted view.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OutcomeBook is a sorted, read-only snapshot of one token's order book:
// bids strictly descending, asks strictly increasing, no zero sizes. It may
// be transiently inverted (best ask below best bid); that is a detected
// condition the caller must check, not a constructor precondition.
type OutcomeBook struct {
	TokenID   string
	Outcome   Outcome
	Bids      []PriceLevel // descending by price
	Asks      []PriceLevel // ascending by price
	UpdatedAt time.Time
}

// BestBid returns the highest bid price, or false if there are no bids.
func (b OutcomeBook) BestBid() (decimal.Decimal, bool) {
	if len(b.Bids) == 0 {
		return decimal.Zero, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the lowest ask price, or false if there are no asks.
func (b OutcomeBook) BestAsk() (decimal.Decimal, bool) {
	if len(b.Asks) == 0 {
		return decimal.Zero, false
	}
	return b.Asks[0].Price, true
}

// IsInverted reports whether the book currently has best_ask < best_bid.
// Both sides must be present for inversion to be meaningful.
func (b OutcomeBook) IsInverted() bool {
	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()
	if !hasBid || !hasAsk {
		return false
	}
	return ask.LessThan(bid)
}

// TotalBidLiquidity sums size across all bid levels.
func (b OutcomeBook) TotalBidLiquidity() decimal.Decimal {
	return sumSizes(b.Bids)
}

// TotalAskLiquidity sums size across all ask levels.
func (b OutcomeBook) TotalAskLiquidity() decimal.Decimal {
	return sumSizes(b.Asks)
}

func sumSizes(levels []PriceLevel) decimal.Decimal {
	total := decimal.Zero
	for _, l := range levels {
		total = total.Add(l.Size)
	}
	return total
}

// ————————————————————————————————————————————————————————————————————————
// Fill walk
// ————————————————————————————————————————————————————————————————————————

// FillInfo is the result of walking a sorted side to fill a target size.
type FillInfo struct {
	FilledSize decimal.Decimal
	TotalCost  decimal.Decimal
	VWAP       decimal.Decimal
	WorstPrice decimal.Decimal
	BestPrice  decimal.Decimal
	HasBest    bool
}

// ————————————————————————————————————————————————————————————————————————
// Opportunity
// ————————————————————————————————————————————————————————————————————————

// Opportunity is an immutable snapshot of a detected arbitrage: one share of
// UP and one share of DOWN can be bought for strictly less than 1.00
// combined. Per-leg prices are worst-case fill prices for OrderSize, so a
// limit order at these prices cannot fill worse than what was detected.
type Opportunity struct {
	Market Market

	UpPrice   decimal.Decimal
	DownPrice decimal.Decimal
	TotalCost decimal.Decimal

	ProfitPerShare decimal.Decimal
	ProfitPct      decimal.Decimal

	OrderSize        decimal.Decimal
	TotalInvestment  decimal.Decimal
	ExpectedPayout   decimal.Decimal
	ExpectedProfit   decimal.Decimal

	BestAskUp   decimal.Decimal
	HasBestUp   bool
	BestAskDown decimal.Decimal
	HasBestDown bool
	VWAPUp      decimal.Decimal
	VWAPDown    decimal.Decimal

	DetectedAt time.Time
}

// ROI returns expected profit as a percentage of total investment.
func (o Opportunity) ROI() decimal.Decimal {
	if o.TotalInvestment.IsZero() {
		return decimal.Zero
	}
	return o.ExpectedProfit.Div(o.TotalInvestment).Mul(decimal.NewFromInt(100))
}

// RequiredBalance returns the total investment inflated by a safety margin
// (e.g. margin=1.2 means 20% headroom above the computed cost).
func (o Opportunity) RequiredBalance(margin decimal.Decimal) decimal.Decimal {
	return o.TotalInvestment.Mul(margin)
}

// EffectiveSpread returns best_ask_up + best_ask_down - 1.00: a negative
// value means the raw best-ask snapshot alone sums below the 1.00 payout.
// The worst-case fill prices are never below the best asks, so for an
// Opportunity built by the detector the spread is at most TotalCost - 1.00.
// Reports ok=false when either side had no ask at detection time.
func (o Opportunity) EffectiveSpread() (spread decimal.Decimal, ok bool) {
	if !o.HasBestUp || !o.HasBestDown {
		return decimal.Zero, false
	}
	return o.BestAskUp.Add(o.BestAskDown).Sub(decimal.NewFromInt(1)), true
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// OrderParams are the inputs to a single order submission.
type OrderParams struct {
	TokenID string
	Side    Side
	Price   decimal.Decimal
	Size    decimal.Decimal
	TIF     TimeInForce
}

// Validate checks the parameters a venue would reject up front.
func (p OrderParams) Validate() error {
	if p.TokenID == "" {
		return errTokenIDRequired
	}
	if !p.Price.IsPositive() {
		return errPriceMustBePositive
	}
	if !p.Size.IsPositive() {
		return errSizeMustBePositive
	}
	return nil
}

// BuyOrder builds a default FOK buy order.
func BuyOrder(tokenID string, price, size decimal.Decimal) OrderParams {
	return OrderParams{TokenID: tokenID, Side: Buy, Price: price, Size: size, TIF: FOK}
}

// SellOrder builds a default FOK sell order.
func SellOrder(tokenID string, price, size decimal.Decimal) OrderParams {
	return OrderParams{TokenID: tokenID, Side: Sell, Price: price, Size: size, TIF: FOK}
}

// WithTIF returns a copy of p with the time-in-force replaced.
func (p OrderParams) WithTIF(tif TimeInForce) OrderParams {
	p.TIF = tif
	return p
}

// OrderState is the last known state of a submitted order.
type OrderState struct {
	OrderID       string
	Status        OrderStatus
	HasStatus     bool
	FilledSize    decimal.Decimal
	HasFilled     bool
	RemainingSize decimal.Decimal
	HasRemaining  bool
	OriginalSize  decimal.Decimal
	HasOriginal   bool
	IsTerminal    bool
	IsFilled      bool
}

// ————————————————————————————————————————————————————————————————————————
// Executor statistics
// ————————————————————————————————————————————————————————————————————————

// ExecutorStats are the cumulative counters the executor owns. Every field
// except SimBalance is monotonically non-decreasing.
type ExecutorStats struct {
	OpportunitiesFound int64
	TradesExecuted     int64
	TotalInvested      decimal.Decimal
	TotalSharesBought  decimal.Decimal

	DryRun         bool
	SimBalance     decimal.Decimal
	SimStartingBal decimal.Decimal
}

// Pairs returns the number of complete UP+DOWN pairs bought.
func (s ExecutorStats) Pairs() decimal.Decimal {
	return s.TotalSharesBought.Div(decimal.NewFromInt(2))
}

// ExpectedProfit returns pairs bought minus total invested — each pair pays
// out 1.00 at settlement regardless of which side wins.
func (s ExecutorStats) ExpectedProfit() decimal.Decimal {
	return s.Pairs().Sub(s.TotalInvested)
}

// SimEndingBalance returns the simulated balance plus the value of pairs
// held, i.e. the balance if every open position settled right now.
func (s ExecutorStats) SimEndingBalance() decimal.Decimal {
	return s.SimBalance.Add(s.Pairs())
}

// PositionInfo is a single held position as reported by the venue's
// positions endpoint.
type PositionInfo struct {
	TokenID string
	Size    decimal.Decimal
	AvgCost decimal.Decimal
}

type staticError string

func (e staticError) Error() string { return string(e) }

const (
	errTokenIDRequired     staticError = "token_id is required"
	errPriceMustBePositive staticError = "price must be positive"
	errSizeMustBePositive  staticError = "size must be positive"
)
