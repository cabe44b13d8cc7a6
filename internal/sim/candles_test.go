package sim

import (
	"reflect"
	"testing"
	"time"
)

func tradeAt(id int64, item, region, price, qty int64, sec int) TradeRecord {
	return TradeRecord{
		ID:             id,
		ItemID:         item,
		RegionID:       region,
		Tick:           7,
		UnitPriceCents: price,
		Quantity:       qty,
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, sec, 0, time.UTC),
	}
}

func TestComputeTickCandlesVWAPRoundsHalfUp(t *testing.T) {
	// (100×3 + 200×1 + 2) / 4 = 125 with round-half-up.
	trades := []TradeRecord{
		tradeAt(1, 5, 1, 100, 3, 0),
		tradeAt(2, 5, 1, 200, 1, 1),
	}
	candles, err := ComputeTickCandlesFromTrades(7, trades)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}
	c := candles[0]
	if c.VWAPCents != 125 {
		t.Fatalf("vwap = %d, want 125", c.VWAPCents)
	}
	if c.OpenCents != 100 || c.CloseCents != 200 || c.HighCents != 200 || c.LowCents != 100 {
		t.Fatalf("ohlc = %d/%d/%d/%d, want 100/200/100/200", c.OpenCents, c.HighCents, c.LowCents, c.CloseCents)
	}
	if c.Volume != 4 || c.TradeCount != 2 {
		t.Fatalf("volume=%d tradeCount=%d, want 4 and 2", c.Volume, c.TradeCount)
	}
}

func TestComputeTickCandlesOrderIndependent(t *testing.T) {
	trades := []TradeRecord{
		tradeAt(1, 3, 1, 100, 2, 0),
		tradeAt(2, 3, 1, 90, 1, 1),
		tradeAt(3, 3, 1, 110, 4, 2),
	}
	shuffled := []TradeRecord{trades[2], trades[0], trades[1]}

	a, err := ComputeTickCandlesFromTrades(7, trades)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ComputeTickCandlesFromTrades(7, shuffled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("candles differ by input order:\n%+v\n%+v", a, b)
	}
	if a[0].OpenCents != 100 || a[0].CloseCents != 110 {
		t.Fatalf("open/close = %d/%d, want 100/110", a[0].OpenCents, a[0].CloseCents)
	}
}

func TestComputeTickCandlesGroupsByRegionAndItem(t *testing.T) {
	trades := []TradeRecord{
		tradeAt(1, 2, 1, 100, 1, 0),
		tradeAt(2, 2, 2, 300, 1, 0),
		tradeAt(3, 1, 2, 200, 1, 0),
	}
	candles, err := ComputeTickCandlesFromTrades(7, trades)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}
	// Deterministic output order: region asc, then item asc.
	if candles[0].RegionID != 1 || candles[0].ItemID != 2 {
		t.Fatalf("candle[0] = region %d item %d", candles[0].RegionID, candles[0].ItemID)
	}
	if candles[1].RegionID != 2 || candles[1].ItemID != 1 {
		t.Fatalf("candle[1] = region %d item %d", candles[1].RegionID, candles[1].ItemID)
	}
}

func TestComputeTickCandlesTieBreaksByTradeID(t *testing.T) {
	same := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	trades := []TradeRecord{
		{ID: 2, ItemID: 1, RegionID: 1, Tick: 7, UnitPriceCents: 200, Quantity: 1, CreatedAt: same},
		{ID: 1, ItemID: 1, RegionID: 1, Tick: 7, UnitPriceCents: 100, Quantity: 1, CreatedAt: same},
	}
	candles, err := ComputeTickCandlesFromTrades(7, trades)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candles[0].OpenCents != 100 || candles[0].CloseCents != 200 {
		t.Fatalf("open/close = %d/%d, want id order 100/200", candles[0].OpenCents, candles[0].CloseCents)
	}
}

func TestComputeTickCandlesRejectsBadInput(t *testing.T) {
	if _, err := ComputeTickCandlesFromTrades(-1, nil); err == nil {
		t.Fatalf("expected negative tick to fail")
	}
	bad := []TradeRecord{tradeAt(1, 1, 1, 0, 1, 0)}
	if _, err := ComputeTickCandlesFromTrades(7, bad); err == nil {
		t.Fatalf("expected zero price to fail")
	}
	bad[0].UnitPriceCents = 100
	bad[0].Quantity = 0
	if _, err := ComputeTickCandlesFromTrades(7, bad); err == nil {
		t.Fatalf("expected zero quantity to fail")
	}
}

func TestComputeTickCandlesEmpty(t *testing.T) {
	candles, err := ComputeTickCandlesFromTrades(0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 0 {
		t.Fatalf("expected no candles for no trades")
	}
}
