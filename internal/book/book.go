package book

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-arb/pkg/types"
)

// State is the feed-owned L2 order book for a single asset: two
// price→size maps (bids, asks), the last observed server timestamp, and
// content hash. Sorted views are produced on demand; ingestion never pays
// a sort cost.
//
// apply_snapshot is the only reset operation; apply_delta inserts,
// overwrites, or deletes a single price level. Both are guarded by the
// same mutex so a reader via Snapshot never observes a half-applied
// delta.
type State struct {
	mu sync.RWMutex

	bids map[string]types.PriceLevel // keyed by Price.String()
	asks map[string]types.PriceLevel

	lastTimestamp time.Time
	lastHash      string
}

// NewState returns an empty book.
func NewState() *State {
	return &State{
		bids: make(map[string]types.PriceLevel),
		asks: make(map[string]types.PriceLevel),
	}
}

// ApplySnapshot replaces both sides wholesale. Levels with non-positive
// size are dropped. Replaying the same snapshot twice yields the same
// state.
func (s *State) ApplySnapshot(bids, asks []types.PriceLevel, hash string, ts time.Time) {
	newBids := make(map[string]types.PriceLevel, len(bids))
	for _, l := range bids {
		if l.Size.IsPositive() {
			newBids[l.Price.String()] = l
		}
	}
	newAsks := make(map[string]types.PriceLevel, len(asks))
	for _, l := range asks {
		if l.Size.IsPositive() {
			newAsks[l.Price.String()] = l
		}
	}

	s.mu.Lock()
	s.bids = newBids
	s.asks = newAsks
	s.lastHash = hash
	s.lastTimestamp = ts
	s.mu.Unlock()
}

// ApplyDelta inserts, overwrites, or deletes a single level. size <= 0
// deletes the key. side must be types.Buy or types.Sell; any other value
// is silently ignored, matching the upstream protocol's tolerance for
// unrecognized side strings.
func (s *State) ApplyDelta(side types.Side, price, size decimal.Decimal, hash string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var m map[string]types.PriceLevel
	switch side {
	case types.Buy:
		m = s.bids
	case types.Sell:
		m = s.asks
	default:
		return
	}

	key := price.String()
	if size.Sign() <= 0 {
		delete(m, key)
	} else {
		m[key] = types.PriceLevel{Price: price, Size: size}
	}
	s.lastHash = hash
	s.lastTimestamp = ts
}

// Snapshot produces a sorted, read-only OutcomeBook: bids descending,
// asks ascending, zero sizes filtered (defensively — none should be
// stored, but a filter here keeps the invariant load-bearing rather than
// assumed).
func (s *State) Snapshot(tokenID string, outcome types.Outcome) types.OutcomeBook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return types.OutcomeBook{
		TokenID:   tokenID,
		Outcome:   outcome,
		Bids:      sortedLevels(s.bids, true),
		Asks:      sortedLevels(s.asks, false),
		UpdatedAt: s.lastTimestamp,
	}
}

func sortedLevels(m map[string]types.PriceLevel, descending bool) []types.PriceLevel {
	out := make([]types.PriceLevel, 0, len(m))
	for _, l := range m {
		if l.Size.IsPositive() {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// IsStale reports whether no frame has updated this book within maxAge.
// A book that has never received any update is considered stale.
func (s *State) IsStale(maxAge time.Duration, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastTimestamp.IsZero() {
		return true
	}
	return now.Sub(s.lastTimestamp) > maxAge
}

// LastUpdated returns the timestamp of the most recent snapshot or delta.
func (s *State) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTimestamp
}

// LastHash returns the server-provided content hash of the last applied
// event, for diagnostics.
func (s *State) LastHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastHash
}
