package discovery

import (
	"testing"
	"time"
)

func TestToMarketParsesTokenIDsAndWindow(t *testing.T) {
	t.Parallel()
	gm := gammaMarket{
		ID:           "mkt-1",
		Slug:         "btc-up-or-down-15m-2026-07-31-1200",
		Question:     "Will BTC be up at 12:15?",
		StartDate:    "2026-07-31T12:00:00Z",
		EndDate:      "2026-07-31T12:15:00Z",
		ClobTokenIds: `["up-token-id","down-token-id"]`,
	}

	m, err := toMarket(gm)
	if err != nil {
		t.Fatalf("toMarket: %v", err)
	}
	if m.UpTokenID != "up-token-id" || m.DownTokenID != "down-token-id" {
		t.Errorf("token ids = %q/%q, want up-token-id/down-token-id", m.UpTokenID, m.DownTokenID)
	}
	wantOpen := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC).Unix()
	wantClose := time.Date(2026, 7, 31, 12, 15, 0, 0, time.UTC).Unix()
	if m.OpenUnixSec != wantOpen {
		t.Errorf("OpenUnixSec = %d, want %d", m.OpenUnixSec, wantOpen)
	}
	if m.CloseUnixSec != wantClose {
		t.Errorf("CloseUnixSec = %d, want %d", m.CloseUnixSec, wantClose)
	}
}

func TestToMarketRejectsFewerThanTwoTokens(t *testing.T) {
	t.Parallel()
	gm := gammaMarket{
		Slug:         "btc-up-or-down-15m-bad",
		EndDate:      "2026-07-31T12:15:00Z",
		ClobTokenIds: `["only-one"]`,
	}
	if _, err := toMarket(gm); err == nil {
		t.Fatal("expected error for fewer than 2 outcome tokens")
	}
}

func TestToMarketRejectsMalformedEndDate(t *testing.T) {
	t.Parallel()
	gm := gammaMarket{
		Slug:         "btc-up-or-down-15m-bad",
		EndDate:      "not-a-date",
		ClobTokenIds: `["a","b"]`,
	}
	if _, err := toMarket(gm); err == nil {
		t.Fatal("expected error for malformed endDate")
	}
}

func TestIsNoMarket(t *testing.T) {
	t.Parallel()
	if !IsNoMarket(&errNoMarket{detail: "nothing"}) {
		t.Error("IsNoMarket should recognize errNoMarket")
	}
	if IsNoMarket(nil) {
		t.Error("IsNoMarket(nil) should be false")
	}
}
