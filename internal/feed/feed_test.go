package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"polymarket-arb/pkg/types"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestNextDelayExponentialWithCap(t *testing.T) {
	t.Parallel()

	cfg := DefaultReconnectConfig()
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 30 * time.Second}, // 32s capped to 30s
		{10, 30 * time.Second},
	}
	for _, c := range cases {
		if got := cfg.NextDelay(c.attempt); got != c.want {
			t.Errorf("NextDelay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestSideFromWire(t *testing.T) {
	t.Parallel()

	if sideFromWire("BUY") != types.Buy {
		t.Error("BUY should map to types.Buy")
	}
	if sideFromWire("SELL") != types.Sell {
		t.Error("SELL should map to types.Sell")
	}
	if s := sideFromWire("garbage"); s == types.Buy || s == types.Sell {
		t.Error("unrecognized side should not map to Buy or Sell")
	}
}

func TestDispatchSingleObjectBookFrame(t *testing.T) {
	t.Parallel()

	f := New("ws://unused", []string{"tok-up"}, DefaultReconnectConfig(), testLogger())

	raw := []byte(`{"event_type":"book","asset_id":"tok-up","bids":[{"price":"0.48","size":"100"}],"asks":[{"price":"0.52","size":"50"}],"hash":"h1"}`)
	if err := f.dispatch(raw); err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}

	select {
	case u := <-f.Updates():
		if u.AssetID != "tok-up" || u.Kind != EventBook {
			t.Errorf("got %+v, want {tok-up, book}", u)
		}
	default:
		t.Fatal("expected a BookUpdate notification")
	}

	snap := f.Book("tok-up").Snapshot("tok-up", types.Up)
	if len(snap.Bids) != 1 || len(snap.Asks) != 1 {
		t.Fatalf("book state not applied: %+v", snap)
	}
}

func TestDispatchArrayFrame(t *testing.T) {
	t.Parallel()

	f := New("ws://unused", []string{"tok-up", "tok-down"}, DefaultReconnectConfig(), testLogger())

	raw := []byte(`[
		{"event_type":"book","asset_id":"tok-up","bids":[],"asks":[{"price":"0.5","size":"10"}],"hash":"a"},
		{"event_type":"book","asset_id":"tok-down","bids":[],"asks":[{"price":"0.49","size":"20"}],"hash":"b"}
	]`)
	if err := f.dispatch(raw); err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case u := <-f.Updates():
			got[u.AssetID] = true
		default:
			t.Fatalf("expected two BookUpdate notifications, got %d", i)
		}
	}
	if !got["tok-up"] || !got["tok-down"] {
		t.Errorf("got updates for %v, want both tok-up and tok-down", got)
	}
}

func TestDispatchPriceChangeEmitsOneUpdatePerFrame(t *testing.T) {
	t.Parallel()

	f := New("ws://unused", []string{"tok-up"}, DefaultReconnectConfig(), testLogger())
	f.dispatch([]byte(`{"event_type":"book","asset_id":"tok-up","bids":[{"price":"0.48","size":"100"}],"asks":[],"hash":"h0"}`))
	<-f.Updates() // drain the book notification

	raw := []byte(`{"event_type":"price_change","price_changes":[
		{"asset_id":"tok-up","price":"0.48","size":"0","side":"BUY","hash":"h1"},
		{"asset_id":"tok-up","price":"0.49","size":"75","side":"BUY","hash":"h2"}
	]}`)
	if err := f.dispatch(raw); err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}

	select {
	case u := <-f.Updates():
		if u.AssetID != "tok-up" || u.Kind != EventPriceChange {
			t.Errorf("got %+v, want {tok-up, price_change}", u)
		}
	default:
		t.Fatal("expected one BookUpdate for the price_change frame")
	}
	select {
	case extra := <-f.Updates():
		t.Errorf("expected exactly one notification for the frame, got extra %+v", extra)
	default:
	}

	snap := f.Book("tok-up").Snapshot("tok-up", types.Up)
	if len(snap.Bids) != 1 || !snap.Bids[0].Price.Equal(mustDecimal("0.49")) {
		t.Fatalf("deltas not applied correctly: %+v", snap.Bids)
	}
}

func TestDispatchUnknownEventTypeIgnored(t *testing.T) {
	t.Parallel()

	f := New("ws://unused", []string{"tok-up"}, DefaultReconnectConfig(), testLogger())
	if err := f.dispatch([]byte(`{"event_type":"last_trade_price","asset_id":"tok-up"}`)); err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}
	select {
	case u := <-f.Updates():
		t.Errorf("unexpected notification for unrecognized frame: %+v", u)
	default:
	}
}

func TestDispatchMalformedJSONIsDropped(t *testing.T) {
	t.Parallel()

	f := New("ws://unused", []string{"tok-up"}, DefaultReconnectConfig(), testLogger())
	if err := f.dispatch([]byte(`not json at all`)); err != nil {
		t.Fatalf("dispatch() error = %v, want nil (frame dropped, not fatal)", err)
	}
}

func TestEmitReturnsErrConsumerDeadWhenChannelFull(t *testing.T) {
	t.Parallel()

	f := &Feed{updates: make(chan BookUpdate, 1)}
	if err := f.emit(BookUpdate{AssetID: "a", Kind: EventBook}); err != nil {
		t.Fatalf("first emit() error = %v", err)
	}
	if err := f.emit(BookUpdate{AssetID: "b", Kind: EventBook}); err != ErrConsumerDead {
		t.Fatalf("second emit() error = %v, want ErrConsumerDead", err)
	}
}

func TestIsStaleBeforeAnyFrame(t *testing.T) {
	t.Parallel()

	f := New("ws://unused", []string{"tok-up"}, DefaultReconnectConfig(), testLogger())
	if !f.IsStale(time.Now()) {
		t.Error("a feed that has never received a frame should be considered stale")
	}
	f.touch()
	if f.IsStale(time.Now()) {
		t.Error("a feed that just received a frame should not be stale")
	}
}

// upgrader is the test server's WS upgrader; the handler using it reads
// the subscribe frame, sends one book snapshot, and then holds the
// connection open until the request ends.
var upgrader = websocket.Upgrader{}

func TestRunAppliesSnapshotOverRealSocket(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// drain the subscribe frame
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`{"event_type":"book","asset_id":"tok-up","bids":[{"price":"0.48","size":"10"}],"asks":[{"price":"0.52","size":"10"}],"hash":"h"}`,
		))
		<-r.Context().Done()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	f := New(wsURL, []string{"tok-up"}, DefaultReconnectConfig(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	select {
	case u := <-f.Updates():
		if u.AssetID != "tok-up" {
			t.Errorf("AssetID = %q, want tok-up", u.AssetID)
		}
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("timed out waiting for a BookUpdate over the real socket")
	}

	cancel()
	<-done
}

func mustDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}
