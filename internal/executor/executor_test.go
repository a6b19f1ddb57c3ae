package executor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"polymarket-arb/internal/config"
	"polymarket-arb/internal/venue"
	"polymarket-arb/pkg/types"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func dryRunConfig() config.Config {
	return config.Config{
		DryRun: true,
		Trading: config.TradingConfig{
			OrderType:       "FOK",
			BalanceMargin:   d("1.2"),
			SimBalance:      d("100"),
			CooldownSeconds: 10,
		},
		Feed: config.FeedConfig{
			OrderTimeout:      3 * time.Second,
			OrderPollInterval: 100 * time.Millisecond,
		},
	}
}

func testOpportunity() *types.Opportunity {
	return &types.Opportunity{
		Market: types.Market{
			Slug:        "btc-updown-15m-123",
			UpTokenID:   "up-token",
			DownTokenID: "down-token",
		},
		UpPrice:         d("0.48"),
		DownPrice:       d("0.51"),
		TotalCost:       d("0.99"),
		ProfitPerShare:  d("0.01"),
		OrderSize:       d("10"),
		TotalInvestment: d("9.9"),
		ExpectedPayout:  d("10"),
		ExpectedProfit:  d("0.1"),
	}
}

func newExecutor(t *testing.T, cfg config.Config) *Executor {
	t.Helper()
	auth := &venue.Auth{}
	client := venue.NewClient(cfg, auth, testLogger())
	return New(cfg, client, testLogger())
}

func TestNewSeedsStatsFromConfig(t *testing.T) {
	t.Parallel()
	e := newExecutor(t, dryRunConfig())

	stats := e.Stats()
	if !stats.SimBalance.Equal(d("100")) {
		t.Errorf("SimBalance = %s, want 100", stats.SimBalance)
	}
	if !stats.SimStartingBal.Equal(d("100")) {
		t.Errorf("SimStartingBal = %s, want 100", stats.SimStartingBal)
	}
	if !stats.DryRun {
		t.Error("DryRun should be true")
	}
}

func TestExecuteSimulatedDeductsBalance(t *testing.T) {
	t.Parallel()
	e := newExecutor(t, dryRunConfig())

	result, err := e.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Kind != Simulated {
		t.Fatalf("Kind = %v, want Simulated", result.Kind)
	}
	if !result.WouldInvest.Equal(d("9.9")) {
		t.Errorf("WouldInvest = %s, want 9.9", result.WouldInvest)
	}

	stats := e.Stats()
	if !stats.SimBalance.Equal(d("90.1")) {
		t.Errorf("SimBalance after trade = %s, want 90.1", stats.SimBalance)
	}
	if stats.TradesExecuted != 1 {
		t.Errorf("TradesExecuted = %d, want 1", stats.TradesExecuted)
	}
	if !stats.TotalSharesBought.Equal(d("20")) {
		t.Errorf("TotalSharesBought = %s, want 20", stats.TotalSharesBought)
	}
}

func TestExecuteSimulatedInsufficientBalance(t *testing.T) {
	t.Parallel()
	cfg := dryRunConfig()
	cfg.Trading.SimBalance = d("1")
	e := newExecutor(t, cfg)

	result, err := e.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Kind != InsufficientBalance {
		t.Fatalf("Kind = %v, want InsufficientBalance", result.Kind)
	}
	if !result.Required.Equal(d("9.9")) {
		t.Errorf("Required = %s, want 9.9", result.Required)
	}
}

func TestExecuteCooldownBlocksSecondTrade(t *testing.T) {
	t.Parallel()
	e := newExecutor(t, dryRunConfig())
	ctx := context.Background()

	first, err := e.Execute(ctx, testOpportunity())
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if first.Kind != Simulated {
		t.Fatalf("first Kind = %v, want Simulated", first.Kind)
	}

	second, err := e.Execute(ctx, testOpportunity())
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if second.Kind != CooldownActive {
		t.Fatalf("second Kind = %v, want CooldownActive", second.Kind)
	}
	if second.CooldownRemaining <= 0 {
		t.Error("CooldownRemaining should be positive")
	}

	stats := e.Stats()
	if stats.OpportunitiesFound != 2 {
		t.Errorf("OpportunitiesFound = %d, want 2 (cooldown still counts as found)", stats.OpportunitiesFound)
	}
	if stats.TradesExecuted != 1 {
		t.Errorf("TradesExecuted = %d, want 1 (cooldown trade did not execute)", stats.TradesExecuted)
	}
}

func TestExecuteNoCooldownAfterWindowElapses(t *testing.T) {
	t.Parallel()
	cfg := dryRunConfig()
	cfg.Trading.CooldownSeconds = 0
	e := newExecutor(t, cfg)
	ctx := context.Background()

	if _, err := e.Execute(ctx, testOpportunity()); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	second, err := e.Execute(ctx, testOpportunity())
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if second.Kind != Simulated {
		t.Fatalf("second Kind = %v, want Simulated (zero cooldown)", second.Kind)
	}
}

func TestStatsExpectedProfit(t *testing.T) {
	t.Parallel()
	stats := types.ExecutorStats{
		TradesExecuted:    3,
		TotalInvested:     d("29.7"),
		TotalSharesBought: d("60"),
		SimBalance:        d("70.3"),
		SimStartingBal:    d("100"),
	}
	if !stats.ExpectedProfit().Equal(d("0.3")) {
		t.Errorf("ExpectedProfit() = %s, want 0.3", stats.ExpectedProfit())
	}
}

func TestResultKindString(t *testing.T) {
	t.Parallel()
	cases := map[ResultKind]string{
		BothFilled:           "both_filled",
		PartialFill:          "partial_fill",
		NeitherFilled:        "neither_filled",
		Simulated:            "simulated",
		CooldownActive:       "cooldown_active",
		InsufficientBalance:  "insufficient_balance",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
