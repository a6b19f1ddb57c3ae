package book

import (
	"testing"
	"time"

	"polymarket-arb/pkg/types"
)

func TestApplySnapshotFiltersZeroSize(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.ApplySnapshot(
		[]types.PriceLevel{lvl("0.48", "100"), lvl("0.47", "0")},
		[]types.PriceLevel{lvl("0.52", "50")},
		"hash1",
		time.Now(),
	)

	snap := s.Snapshot("tok", types.Up)
	if len(snap.Bids) != 1 {
		t.Fatalf("len(Bids) = %d, want 1", len(snap.Bids))
	}
	if !snap.Bids[0].Price.Equal(dec("0.48")) {
		t.Errorf("Bids[0].Price = %v, want 0.48", snap.Bids[0].Price)
	}
}

func TestApplySnapshotIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewState()
	bids := []types.PriceLevel{lvl("0.48", "100")}
	asks := []types.PriceLevel{lvl("0.52", "50")}
	now := time.Now()

	s.ApplySnapshot(bids, asks, "h", now)
	first := s.Snapshot("tok", types.Up)
	s.ApplySnapshot(bids, asks, "h", now)
	second := s.Snapshot("tok", types.Up)

	if len(first.Bids) != len(second.Bids) || len(first.Asks) != len(second.Asks) {
		t.Error("replaying the same snapshot should yield the same state")
	}
}

func TestApplyDeltaRemovesAndAdds(t *testing.T) {
	t.Parallel()

	// Scenario 7: state has bid (0.48,100); delta (BUY,0.48,0) removes it;
	// delta (BUY,0.49,150) leaves bid (0.49,150) present.
	s := NewState()
	s.ApplySnapshot([]types.PriceLevel{lvl("0.48", "100")}, nil, "h0", time.Now())

	s.ApplyDelta(types.Buy, dec("0.48"), dec("0"), "h1", time.Now())
	snap := s.Snapshot("tok", types.Up)
	if len(snap.Bids) != 0 {
		t.Fatalf("len(Bids) after removal = %d, want 0", len(snap.Bids))
	}

	s.ApplyDelta(types.Buy, dec("0.49"), dec("150"), "h2", time.Now())
	snap = s.Snapshot("tok", types.Up)
	if len(snap.Bids) != 1 || !snap.Bids[0].Price.Equal(dec("0.49")) || !snap.Bids[0].Size.Equal(dec("150")) {
		t.Fatalf("Bids after insert = %+v, want [(0.49, 150)]", snap.Bids)
	}
}

func TestApplyDeltaOverwritesExistingPrice(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.ApplySnapshot(nil, []types.PriceLevel{lvl("0.52", "10")}, "h0", time.Now())
	s.ApplyDelta(types.Sell, dec("0.52"), dec("25"), "h1", time.Now())

	snap := s.Snapshot("tok", types.Up)
	if len(snap.Asks) != 1 || !snap.Asks[0].Size.Equal(dec("25")) {
		t.Fatalf("Asks = %+v, want one level with size 25", snap.Asks)
	}
}

func TestApplyDeltaIgnoresUnknownSide(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.ApplyDelta(types.Side("WHATEVER"), dec("0.50"), dec("10"), "h", time.Now())
	snap := s.Snapshot("tok", types.Up)
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Error("unknown side should be silently ignored")
	}
}

func TestSnapshotIsSortedAndStrict(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.ApplySnapshot(
		[]types.PriceLevel{lvl("0.45", "1"), lvl("0.48", "1"), lvl("0.40", "1")},
		[]types.PriceLevel{lvl("0.55", "1"), lvl("0.52", "1"), lvl("0.60", "1")},
		"h",
		time.Now(),
	)
	snap := s.Snapshot("tok", types.Up)

	for i := 1; i < len(snap.Bids); i++ {
		if !snap.Bids[i-1].Price.GreaterThan(snap.Bids[i].Price) {
			t.Errorf("bids not strictly descending: %+v", snap.Bids)
		}
	}
	for i := 1; i < len(snap.Asks); i++ {
		if !snap.Asks[i-1].Price.LessThan(snap.Asks[i].Price) {
			t.Errorf("asks not strictly increasing: %+v", snap.Asks)
		}
	}
}

func TestIsStale(t *testing.T) {
	t.Parallel()

	s := NewState()
	if !s.IsStale(time.Second, time.Now()) {
		t.Error("a book with no updates should be stale")
	}

	now := time.Now()
	s.ApplySnapshot([]types.PriceLevel{lvl("0.5", "1")}, nil, "h", now)
	if s.IsStale(time.Minute, now.Add(time.Second)) {
		t.Error("a freshly updated book should not be stale")
	}
	if !s.IsStale(time.Second, now.Add(time.Hour)) {
		t.Error("a book with no recent updates should go stale")
	}
}
