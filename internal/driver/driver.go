// Package driver runs the single-active-market loop: discover the
// current 15-minute BTC up/down market, watch its order books, detect
// arbitrage opportunities, and hand them to the executor. There is never
// more than one market open at a time.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"polymarket-arb/internal/book"
	"polymarket-arb/internal/config"
	"polymarket-arb/internal/detector"
	"polymarket-arb/internal/discovery"
	"polymarket-arb/internal/executor"
	"polymarket-arb/internal/feed"
	"polymarket-arb/internal/venue"
	"polymarket-arb/pkg/types"
)

// pollInterval is how often RunPolling re-fetches both books over REST.
const pollInterval = 100 * time.Millisecond

// marketGap is how long the driver waits after a market closes before
// discovering the next one; gives the venue time to list the successor.
const marketGap = 10 * time.Second

// discoveryRetry is how long to wait before retrying discovery after a
// failed or empty lookup.
const discoveryRetry = 30 * time.Second

// Driver owns the discover → feed → detect → execute lifecycle for one
// market at a time.
type Driver struct {
	discoverer *discovery.Discoverer
	client     *venue.Client
	executor   *executor.Executor
	reconnect  feed.ReconnectConfig
	orderSize  decimal.Decimal
	targetCost decimal.Decimal
	logger     zerolog.Logger
}

// New builds a Driver wired to the given collaborators.
func New(cfg config.Config, discoverer *discovery.Discoverer, client *venue.Client, exec *executor.Executor, logger zerolog.Logger) *Driver {
	return &Driver{
		discoverer: discoverer,
		client:     client,
		executor:   exec,
		reconnect:  feed.ReconnectConfig{MaxDelay: cfg.Feed.ReconnectMaxDelay, HeartbeatInterval: cfg.Feed.HeartbeatInterval, InitialDelay: time.Second, Multiplier: 2.0},
		orderSize:  cfg.Trading.OrderSize,
		targetCost: cfg.Trading.TargetPairCost,
		logger:     logger.With().Str("component", "driver").Logger(),
	}
}

// Run discovers the current market and drives it via the WebSocket feed
// until it closes, then repeats for the next market. Blocks until ctx is
// cancelled.
func (d *Driver) Run(ctx context.Context, wsBase string) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		market, err := d.waitForMarket(ctx)
		if err != nil {
			return err
		}

		if err := d.runMarket(ctx, wsBase, market); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error().Err(err).Str("market", market.Slug).Msg("market run ended with error")
		}

		stats := d.executor.Stats()
		d.logger.Info().
			Str("market", market.Slug).
			Int64("opportunities_found", stats.OpportunitiesFound).
			Int64("trades_executed", stats.TradesExecuted).
			Str("total_invested", stats.TotalInvested.String()).
			Str("expected_profit", stats.ExpectedProfit().String()).
			Msg("market finished, cumulative summary")

		if !d.sleep(ctx, marketGap) {
			return ctx.Err()
		}
	}
}

func (d *Driver) runMarket(ctx context.Context, wsBase string, market types.Market) error {
	marketCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	f := feed.New(wsBase, []string{market.UpTokenID, market.DownTokenID}, d.reconnect, d.logger)

	feedErr := make(chan error, 1)
	go func() { feedErr <- f.Run(marketCtx) }()

	d.logger.Info().Str("market", market.Slug).Str("up_token", market.UpTokenID).
		Str("down_token", market.DownTokenID).Msg("watching market")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-feedErr:
			return err
		case <-f.Updates():
			if d.isMarketClosed(market) {
				d.logger.Info().Str("market", market.Slug).Msg("market closed")
				return nil
			}
			d.checkAndExecute(ctx, market, f.Book(market.UpTokenID), f.Book(market.DownTokenID))
		}
	}
}

// RunPolling is the REST-only variant of Run: instead of a WebSocket
// feed it re-fetches both books on a fixed interval. Useful when a feed
// connection is unavailable or undesired.
func (d *Driver) RunPolling(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		market, err := d.waitForMarket(ctx)
		if err != nil {
			return err
		}

		d.pollMarket(ctx, market)

		if !d.sleep(ctx, marketGap) {
			return ctx.Err()
		}
	}
}

func (d *Driver) pollMarket(ctx context.Context, market types.Market) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	d.logger.Info().Str("market", market.Slug).Msg("polling market")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.isMarketClosed(market) {
				d.logger.Info().Str("market", market.Slug).Msg("market closed")
				return
			}

			upBook, err := d.client.GetBook(ctx, market.UpTokenID)
			if err != nil {
				d.logger.Warn().Err(err).Msg("get up book failed")
				continue
			}
			downBook, err := d.client.GetBook(ctx, market.DownTokenID)
			if err != nil {
				d.logger.Warn().Err(err).Msg("get down book failed")
				continue
			}

			d.detectAndExecute(ctx, market, *upBook, *downBook)
		}
	}
}

func (d *Driver) checkAndExecute(ctx context.Context, market types.Market, upState, downState *book.State) {
	if upState == nil || downState == nil {
		return
	}
	upBook := upState.Snapshot(market.UpTokenID, types.Up)
	downBook := downState.Snapshot(market.DownTokenID, types.Down)
	d.detectAndExecute(ctx, market, upBook, downBook)
}

func (d *Driver) detectAndExecute(ctx context.Context, market types.Market, upBook, downBook types.OutcomeBook) {
	opp, err := detector.Detect(market, upBook, downBook, d.orderSize, d.targetCost)
	if err != nil {
		var invertedErr *detector.BookInvertedError
		if errors.As(err, &invertedErr) {
			d.logger.Warn().Err(err).Msg("book inverted, skipping")
			return
		}
		d.logger.Error().Err(err).Msg("detect failed")
		return
	}
	if opp == nil {
		return
	}

	result, err := d.executor.Execute(ctx, opp)
	if err != nil {
		d.logger.Error().Err(err).Msg("execute failed")
		return
	}
	d.logger.Info().Str("result", result.Kind.String()).Msg("opportunity handled")
}

// waitForMarket polls discovery until it resolves a market or ctx is
// cancelled, backing off between empty results.
func (d *Driver) waitForMarket(ctx context.Context) (types.Market, error) {
	for {
		market, err := d.discoverer.Current(ctx)
		if err == nil {
			return market, nil
		}
		if !discovery.IsNoMarket(err) {
			d.logger.Error().Err(err).Msg("discovery failed")
		}
		if !d.sleep(ctx, discoveryRetry) {
			return types.Market{}, ctx.Err()
		}
	}
}

func (d *Driver) isMarketClosed(market types.Market) bool {
	return market.IsClosed(time.Now())
}

// sleep waits for duration or ctx cancellation, whichever comes first. Returns
// false if ctx was cancelled.
func (d *Driver) sleep(ctx context.Context, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
