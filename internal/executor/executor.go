// Package executor submits the paired UP+DOWN orders for a detected
// arbitrage opportunity and classifies what actually happened: both legs
// filled, one leg filled and had to be unwound, neither filled, or the
// trade was skipped (cooldown, insufficient balance, or simulation mode).
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"polymarket-arb/internal/config"
	"polymarket-arb/internal/venue"
	"polymarket-arb/pkg/types"
)

// unwindSellBuffer is how far below best bid the unwind sell is priced,
// traded off against fill probability.
var unwindSellBuffer = decimal.New(1, 2) // 0.01

// ResultKind classifies what happened when an opportunity was acted on.
type ResultKind int

const (
	BothFilled ResultKind = iota
	PartialFill
	NeitherFilled
	Simulated
	CooldownActive
	InsufficientBalance
)

func (k ResultKind) String() string {
	switch k {
	case BothFilled:
		return "both_filled"
	case PartialFill:
		return "partial_fill"
	case NeitherFilled:
		return "neither_filled"
	case Simulated:
		return "simulated"
	case CooldownActive:
		return "cooldown_active"
	case InsufficientBalance:
		return "insufficient_balance"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Execute call. Only the fields relevant to
// Kind are populated; zero values elsewhere.
type Result struct {
	Kind ResultKind

	UpOrderID        string
	DownOrderID      string
	UpFilledSize     decimal.Decimal
	DownFilledSize   decimal.Decimal
	ActualInvestment decimal.Decimal

	FilledLeg       types.Outcome
	FilledSize      decimal.Decimal
	UnwindAttempted bool
	UnwindNote      string

	WouldInvest decimal.Decimal
	WouldProfit decimal.Decimal

	CooldownRemaining time.Duration

	Required  decimal.Decimal
	Available decimal.Decimal
}

// Executor submits paired orders for detected opportunities, enforcing a
// cooldown between trades and tracking cumulative statistics.
type Executor struct {
	client *venue.Client
	logger zerolog.Logger

	cooldown      time.Duration
	orderTimeout  time.Duration
	orderPoll     time.Duration
	tif           types.TimeInForce
	balanceMargin decimal.Decimal
	dryRun        bool

	mu            sync.Mutex
	lastExecution time.Time
	hasLast       bool
	stats         types.ExecutorStats
}

// New builds an Executor from configuration. client may be nil when
// cfg.DryRun is true, since no venue calls are made in simulation mode.
func New(cfg config.Config, client *venue.Client, logger zerolog.Logger) *Executor {
	tif := types.FOK
	switch cfg.Trading.OrderType {
	case string(types.FOK), string(types.FAK), string(types.GTC):
		tif = types.TimeInForce(cfg.Trading.OrderType)
	}

	return &Executor{
		client:        client,
		logger:        logger,
		cooldown:      time.Duration(cfg.Trading.CooldownSeconds) * time.Second,
		orderTimeout:  cfg.Feed.OrderTimeout,
		orderPoll:     cfg.Feed.OrderPollInterval,
		tif:           tif,
		balanceMargin: cfg.Trading.BalanceMargin,
		dryRun:        cfg.DryRun,
		stats: types.ExecutorStats{
			DryRun:         cfg.DryRun,
			SimBalance:     cfg.Trading.SimBalance,
			SimStartingBal: cfg.Trading.SimBalance,
		},
	}
}

// Stats returns a snapshot of cumulative executor statistics.
func (e *Executor) Stats() types.ExecutorStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// cooldownRemaining returns how much of the cooldown window is left since
// the last execution, or 0 if none is active. Caller must hold e.mu.
func (e *Executor) cooldownRemaining() time.Duration {
	if !e.hasLast {
		return 0
	}
	elapsed := time.Since(e.lastExecution)
	if elapsed >= e.cooldown {
		return 0
	}
	return e.cooldown - elapsed
}

// Execute acts on a detected opportunity: gates on cooldown, then either
// simulates the trade or checks balance and submits real paired orders.
func (e *Executor) Execute(ctx context.Context, opp *types.Opportunity) (Result, error) {
	e.mu.Lock()
	e.stats.OpportunitiesFound++
	if remaining := e.cooldownRemaining(); remaining > 0 {
		e.mu.Unlock()
		e.logger.Info().Dur("remaining", remaining).Msg("cooldown active, skipping opportunity")
		return Result{Kind: CooldownActive, CooldownRemaining: remaining}, nil
	}
	e.lastExecution = time.Now()
	e.hasLast = true
	e.mu.Unlock()

	e.logOpportunity(opp)

	if e.dryRun {
		return e.executeSimulated(opp), nil
	}

	required := opp.RequiredBalance(e.balanceMargin)
	balance, err := e.client.GetBalance(ctx)
	if err != nil {
		return Result{}, err
	}
	if balance.LessThan(required) {
		event := e.logger.Warn().
			Str("required", required.String()).
			Str("available", balance.String())
		if spread, ok := opp.EffectiveSpread(); ok {
			event = event.Str("effective_spread", spread.String())
		}
		event.Msg("insufficient balance")
		return Result{Kind: InsufficientBalance, Required: required, Available: balance}, nil
	}

	return e.executeReal(ctx, opp)
}

func (e *Executor) executeSimulated(opp *types.Opportunity) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info().Msg("simulation mode: no real orders submitted")

	if e.stats.SimBalance.LessThan(opp.TotalInvestment) {
		e.logger.Error().
			Str("required", opp.TotalInvestment.String()).
			Str("available", e.stats.SimBalance.String()).
			Msg("insufficient simulated balance")
		return Result{Kind: InsufficientBalance, Required: opp.TotalInvestment, Available: e.stats.SimBalance}
	}

	e.stats.SimBalance = e.stats.SimBalance.Sub(opp.TotalInvestment)
	e.stats.TotalInvested = e.stats.TotalInvested.Add(opp.TotalInvestment)
	e.stats.TotalSharesBought = e.stats.TotalSharesBought.Add(opp.OrderSize.Mul(decimal.NewFromInt(2)))
	e.stats.TradesExecuted++

	e.logger.Info().
		Str("sim_balance", e.stats.SimBalance.String()).
		Str("deducted", opp.TotalInvestment.String()).
		Msg("simulated trade executed")

	return Result{Kind: Simulated, WouldInvest: opp.TotalInvestment, WouldProfit: opp.ExpectedProfit}
}

// executeReal submits both legs concurrently, waits for both to reach a
// terminal state, and classifies the combined outcome.
func (e *Executor) executeReal(ctx context.Context, opp *types.Opportunity) (Result, error) {
	e.logger.Info().Msg("executing real paired order")

	upParams := types.BuyOrder(opp.Market.UpTokenID, opp.UpPrice, opp.OrderSize).WithTIF(e.tif)
	downParams := types.BuyOrder(opp.Market.DownTokenID, opp.DownPrice, opp.OrderSize).WithTIF(e.tif)

	var upState, downState types.OrderState
	var upErr, downErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		upState, upErr = e.client.SubmitOrder(ctx, upParams)
	}()
	go func() {
		defer wg.Done()
		downState, downErr = e.client.SubmitOrder(ctx, downParams)
	}()
	wg.Wait()

	switch {
	case upErr == nil && downErr == nil:
		return e.waitAndClassify(ctx, opp, upState.OrderID, downState.OrderID)
	case upErr == nil && downErr != nil:
		e.logger.Error().Err(downErr).Msg("DOWN order submission failed")
		_ = e.client.CancelOrder(ctx, upState.OrderID)
		return Result{Kind: NeitherFilled}, nil
	case upErr != nil && downErr == nil:
		e.logger.Error().Err(upErr).Msg("UP order submission failed")
		_ = e.client.CancelOrder(ctx, downState.OrderID)
		return Result{Kind: NeitherFilled}, nil
	default:
		e.logger.Error().Err(upErr).AnErr("down_err", downErr).Msg("both orders failed to submit")
		return Result{Kind: NeitherFilled}, nil
	}
}

func (e *Executor) waitAndClassify(ctx context.Context, opp *types.Opportunity, upOrderID, downOrderID string) (Result, error) {
	var upState, downState types.OrderState
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		upState = e.waitForTerminal(ctx, upOrderID, opp.OrderSize)
	}()
	go func() {
		defer wg.Done()
		downState = e.waitForTerminal(ctx, downOrderID, opp.OrderSize)
	}()
	wg.Wait()

	switch {
	case upState.IsFilled && downState.IsFilled:
		upFilled := fillOrDefault(upState, opp.OrderSize)
		downFilled := fillOrDefault(downState, opp.OrderSize)
		investment := upFilled.Mul(opp.UpPrice).Add(downFilled.Mul(opp.DownPrice))

		e.mu.Lock()
		e.stats.TradesExecuted++
		e.stats.TotalInvested = e.stats.TotalInvested.Add(investment)
		e.stats.TotalSharesBought = e.stats.TotalSharesBought.Add(upFilled).Add(downFilled)
		e.mu.Unlock()

		e.logger.Info().
			Str("up_filled", upFilled.String()).
			Str("down_filled", downFilled.String()).
			Str("investment", investment.String()).
			Msg("arbitrage executed successfully")

		return Result{
			Kind:             BothFilled,
			UpOrderID:        upOrderID,
			DownOrderID:      downOrderID,
			UpFilledSize:     upFilled,
			DownFilledSize:   downFilled,
			ActualInvestment: investment,
		}, nil

	case upState.IsFilled && !downState.IsFilled:
		filled := fillOrDefault(upState, opp.OrderSize)
		e.logger.Warn().Str("up_filled", filled.String()).Msg("partial fill: only UP leg filled")
		_ = e.client.CancelOrder(ctx, downOrderID)
		note := e.attemptUnwind(ctx, types.Up, opp.Market.UpTokenID, filled)
		return Result{Kind: PartialFill, FilledLeg: types.Up, FilledSize: filled, UnwindAttempted: true, UnwindNote: note}, nil

	case !upState.IsFilled && downState.IsFilled:
		filled := fillOrDefault(downState, opp.OrderSize)
		e.logger.Warn().Str("down_filled", filled.String()).Msg("partial fill: only DOWN leg filled")
		_ = e.client.CancelOrder(ctx, upOrderID)
		note := e.attemptUnwind(ctx, types.Down, opp.Market.DownTokenID, filled)
		return Result{Kind: PartialFill, FilledLeg: types.Down, FilledSize: filled, UnwindAttempted: true, UnwindNote: note}, nil

	default:
		e.logger.Warn().Msg("neither order filled")
		_ = e.client.CancelOrder(ctx, upOrderID)
		_ = e.client.CancelOrder(ctx, downOrderID)
		return Result{Kind: NeitherFilled}, nil
	}
}

// waitForTerminal polls an order's status until it reaches a terminal
// state, its filled size reaches requested, or the timeout elapses,
// whichever comes first. A state whose filled size reaches requested is
// returned with IsFilled set, even if its status is not yet terminal.
func (e *Executor) waitForTerminal(ctx context.Context, orderID string, requested decimal.Decimal) types.OrderState {
	deadline := time.Now().Add(e.orderTimeout)
	ticker := time.NewTicker(e.orderPoll)
	defer ticker.Stop()

	for {
		state, err := e.client.GetOrderStatus(ctx, orderID)
		if err == nil {
			if state.HasFilled && state.FilledSize.GreaterThanOrEqual(requested) {
				state.IsFilled = true
			}
			if state.IsTerminal || state.IsFilled {
				return state
			}
		}
		if time.Now().After(deadline) {
			return state
		}
		select {
		case <-ctx.Done():
			return state
		case <-ticker.C:
		}
	}
}

// attemptUnwind sells off a partial fill at a penny below best bid. It
// never returns an error; failure just means the position is held.
func (e *Executor) attemptUnwind(ctx context.Context, outcome types.Outcome, tokenID string, size decimal.Decimal) string {
	e.logger.Info().
		Str("outcome", string(outcome)).
		Str("token_id", tokenID).
		Str("size", size.String()).
		Msg("attempting to unwind partial fill")

	book, err := e.client.GetBook(ctx, tokenID)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to get order book for unwind")
		return "failed to get order book: " + err.Error()
	}

	bestBid, ok := book.BestBid()
	if !ok {
		e.logger.Warn().Msg("no bids available for unwind")
		return "no bids available for unwind"
	}

	sellPrice := bestBid.Sub(unwindSellBuffer)
	sellParams := types.SellOrder(tokenID, sellPrice, size).WithTIF(types.GTC)

	state, err := e.client.SubmitOrder(ctx, sellParams)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to submit unwind order")
		return "unwind failed: " + err.Error()
	}
	e.logger.Info().Str("order_id", state.OrderID).Str("price", sellPrice.String()).Msg("unwind sell order submitted")
	return "unwind order submitted: " + state.OrderID
}

func (e *Executor) logOpportunity(opp *types.Opportunity) {
	event := e.logger.Info().
		Str("up_price", opp.UpPrice.String()).
		Str("down_price", opp.DownPrice.String()).
		Str("total_cost", opp.TotalCost.String()).
		Str("profit_per_share", opp.ProfitPerShare.String()).
		Str("profit_pct", opp.ProfitPct.String()).
		Str("order_size", opp.OrderSize.String()).
		Str("total_investment", opp.TotalInvestment.String()).
		Str("expected_profit", opp.ExpectedProfit.String())

	if spread, ok := opp.EffectiveSpread(); ok {
		event = event.Str("effective_spread", spread.String())
	}

	event.Msg("arbitrage opportunity detected")
}

func fillOrDefault(state types.OrderState, fallback decimal.Decimal) decimal.Decimal {
	if state.HasFilled {
		return state.FilledSize
	}
	return fallback
}
