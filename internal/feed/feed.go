// Package feed implements the market feed client: a single persistent
// WebSocket subscription to the venue's public L2 feed for exactly the two
// outcome tokens of one active market. It owns the L2 book state for both
// tokens and notifies the driver of every processed frame over a bounded
// channel.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"polymarket-arb/internal/book"
	"polymarket-arb/pkg/types"
)

const (
	updateChannelCapacity = 1000 // spec 4.3: bounded multi-producer channel
	writeWait             = 10 * time.Second
)

// ErrConsumerDead is returned internally when the bounded update channel is
// full. The client treats this as fatal — it shuts down rather than block
// the socket or silently drop a frame's notification.
var ErrConsumerDead = errors.New("feed: update channel full, consumer presumed dead")

// EventKind distinguishes a book snapshot notification from a delta
// notification.
type EventKind string

const (
	EventBook        EventKind = "book"
	EventPriceChange EventKind = "price_change"
)

// BookUpdate notifies the driver that a frame touching asset_id has been
// applied to book state; it carries no payload — consumers re-read the
// book via Feed.Book(assetID).Snapshot(...).
type BookUpdate struct {
	AssetID string
	Kind    EventKind
}

// ReconnectConfig controls the exponential-backoff reconnect loop.
type ReconnectConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	Multiplier        float64
	HeartbeatInterval time.Duration
}

// DefaultReconnectConfig matches spec.md 4.3's defaults.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		Multiplier:        2.0,
		HeartbeatInterval: 30 * time.Second,
	}
}

// NextDelay returns min(initial * multiplier^attempt, max).
func (c ReconnectConfig) NextDelay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	cap := float64(c.MaxDelay)
	if d > cap {
		d = cap
	}
	return time.Duration(d)
}

// Feed is a single persistent WebSocket connection subscribed to a fixed
// set of asset (token) identifiers on the venue's public market channel.
type Feed struct {
	wsBase   string
	tokenIDs []string
	cfg      ReconnectConfig
	logger   zerolog.Logger

	booksMu sync.RWMutex
	books   map[string]*book.State

	updates chan BookUpdate

	connMu sync.Mutex
	conn   *websocket.Conn

	lastFrameMu sync.RWMutex
	lastFrame   time.Time

	attempts int // reconnect attempt counter, owned by Run's goroutine only
}

// New builds a feed for the given websocket base URL and token ids. The
// endpoint path "/ws/market" is appended to wsBase.
func New(wsBase string, tokenIDs []string, cfg ReconnectConfig, logger zerolog.Logger) *Feed {
	books := make(map[string]*book.State, len(tokenIDs))
	for _, id := range tokenIDs {
		books[id] = book.NewState()
	}
	return &Feed{
		wsBase:   wsBase,
		tokenIDs: tokenIDs,
		cfg:      cfg,
		logger:   logger.With().Str("component", "feed").Logger(),
		books:    books,
		updates:  make(chan BookUpdate, updateChannelCapacity),
	}
}

// Updates returns the channel the driver consumes BookUpdate notifications
// from.
func (f *Feed) Updates() <-chan BookUpdate { return f.updates }

// Book returns the L2 book state for a token id, or nil if unknown.
func (f *Feed) Book(tokenID string) *book.State {
	f.booksMu.RLock()
	defer f.booksMu.RUnlock()
	return f.books[tokenID]
}

// IsStale reports whether no frame (including ping/pong) has arrived within
// 2x the configured heartbeat interval.
func (f *Feed) IsStale(now time.Time) bool {
	f.lastFrameMu.RLock()
	last := f.lastFrame
	f.lastFrameMu.RUnlock()
	if last.IsZero() {
		return true
	}
	return now.Sub(last) > 2*f.cfg.HeartbeatInterval
}

func (f *Feed) touch() {
	f.lastFrameMu.Lock()
	f.lastFrame = time.Now()
	f.lastFrameMu.Unlock()
}

// Run connects and maintains the connection with exponential-backoff
// reconnect. It blocks until ctx is cancelled or the consumer is found to
// be dead (ErrConsumerDead), at which point it returns permanently — the
// caller must not retry a dead-consumer feed.
func (f *Feed) Run(ctx context.Context) error {
	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrConsumerDead) {
			f.logger.Error().Msg("update channel saturated, shutting down feed rather than block the socket")
			return err
		}

		delay := f.cfg.NextDelay(f.attempts)
		f.attempts++
		f.logger.Warn().Err(err).Dur("backoff", delay).Int("attempt", f.attempts).Msg("feed disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	// Book state resets on reconnect; the next snapshot repopulates it.
	f.booksMu.Lock()
	for id := range f.books {
		f.books[id] = book.NewState()
	}
	f.booksMu.Unlock()

	url := f.wsBase + "/ws/market"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	// Server pings are answered with a Pong by the handler below; we never
	// originate heartbeats ourselves (spec.md 4.3). It replaces
	// gorilla/websocket's default ping handler, doing the same Pong reply
	// and also recording liveness.
	conn.SetPingHandler(func(appData string) error {
		f.touch()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})
	conn.SetPongHandler(func(string) error {
		f.touch()
		return nil
	})

	if err := f.subscribe(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.logger.Info().Strs("tokens", f.tokenIDs).Msg("feed connected")

	reset := false
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(2 * f.cfg.HeartbeatInterval))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.touch()
		if !reset {
			f.attempts = 0
			reset = true
		}

		if err := f.dispatch(msg); err != nil {
			return err
		}
	}
}

func (f *Feed) subscribe() error {
	msg := struct {
		Type     string   `json:"type"`
		AssetIDs []string `json:"assets_ids"`
	}{Type: "MARKET", AssetIDs: f.tokenIDs}

	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return f.conn.WriteJSON(msg)
}

// frame is the envelope shape for both "book" and "price_change" events.
type frame struct {
	EventType    string       `json:"event_type"`
	AssetID      string       `json:"asset_id"`
	Bids         []wireLevel  `json:"bids"`
	Asks         []wireLevel  `json:"asks"`
	Hash         string       `json:"hash"`
	PriceChanges []wireChange `json:"price_changes"`
}

type wireLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type wireChange struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Side    string `json:"side"`
	Hash    string `json:"hash"`
}

// dispatch accepts either a single JSON object frame or a JSON array of
// frames, per spec.md 4.3.
func (f *Feed) dispatch(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '[' {
		var frames []frame
		if err := json.Unmarshal(trimmed, &frames); err != nil {
			f.logger.Debug().Err(err).Msg("dropping unparseable array frame")
			return nil
		}
		for _, fr := range frames {
			if err := f.applyFrame(fr); err != nil {
				return err
			}
		}
		return nil
	}

	var fr frame
	if err := json.Unmarshal(trimmed, &fr); err != nil {
		f.logger.Debug().Msg("dropping non-json/unparseable frame")
		return nil
	}
	return f.applyFrame(fr)
}

func (f *Feed) applyFrame(fr frame) error {
	switch fr.EventType {
	case "book":
		st := f.Book(fr.AssetID)
		if st == nil {
			return nil
		}
		bids := parseLevels(fr.Bids)
		asks := parseLevels(fr.Asks)
		st.ApplySnapshot(bids, asks, fr.Hash, time.Now())
		return f.emit(BookUpdate{AssetID: fr.AssetID, Kind: EventBook})

	case "price_change":
		var lastAsset string
		for _, ch := range fr.PriceChanges {
			st := f.Book(ch.AssetID)
			if st == nil {
				continue
			}
			price, err := decimal.NewFromString(ch.Price)
			if err != nil {
				f.logger.Debug().Str("asset", ch.AssetID).Str("price", ch.Price).Msg("dropping delta with unparseable price")
				continue
			}
			size, err := decimal.NewFromString(ch.Size)
			if err != nil {
				f.logger.Debug().Str("asset", ch.AssetID).Str("size", ch.Size).Msg("dropping delta with unparseable size")
				continue
			}
			st.ApplyDelta(sideFromWire(ch.Side), price, size, ch.Hash, time.Now())
			lastAsset = ch.AssetID
		}
		if lastAsset == "" {
			return nil
		}
		return f.emit(BookUpdate{AssetID: lastAsset, Kind: EventPriceChange})

	default:
		f.logger.Debug().Str("event_type", fr.EventType).Msg("ignoring unrecognized frame")
		return nil
	}
}

func (f *Feed) emit(update BookUpdate) error {
	select {
	case f.updates <- update:
		return nil
	default:
		return ErrConsumerDead
	}
}

func parseLevels(wire []wireLevel) []types.PriceLevel {
	out := make([]types.PriceLevel, 0, len(wire))
	for _, w := range wire {
		price, err := decimal.NewFromString(w.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(w.Size)
		if err != nil {
			continue
		}
		out = append(out, types.PriceLevel{Price: price, Size: size})
	}
	return out
}

// sideFromWire maps the upstream "BUY"/"SELL" side string (all upper or
// all lower case) to types.Side; any other value, mixed case included,
// returns an unrecognized side which book.State.ApplyDelta silently
// ignores.
func sideFromWire(s string) types.Side {
	switch s {
	case "BUY", "buy":
		return types.Buy
	case "SELL", "sell":
		return types.Sell
	default:
		return types.Side(s)
	}
}
