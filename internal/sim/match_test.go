package sim

import "testing"

func TestPlanFillsPriceTimePriority(t *testing.T) {
	resting := []RestingOrder{
		{ID: 1, CompanyID: 10, RemainingQuantity: 1, UnitPriceCents: 100, TickPlaced: 1},
		{ID: 2, CompanyID: 11, RemainingQuantity: 1, UnitPriceCents: 105, TickPlaced: 1},
		{ID: 3, CompanyID: 12, RemainingQuantity: 1, UnitPriceCents: 100, TickPlaced: 2},
	}

	fills := planFills(SideBuy, 105, 2, resting)
	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	// Best price first; equal prices break by earlier tick.
	if fills[0].OrderID != 1 || fills[0].PriceCents != 100 {
		t.Fatalf("first fill = %+v, want order 1 at 100", fills[0])
	}
	if fills[1].OrderID != 3 || fills[1].PriceCents != 100 {
		t.Fatalf("second fill = %+v, want order 3 at 100", fills[1])
	}
}

func TestPlanFillsExecutesAtRestingPrice(t *testing.T) {
	resting := []RestingOrder{
		{ID: 7, CompanyID: 2, RemainingQuantity: 5, UnitPriceCents: 90, TickPlaced: 3},
	}
	fills := planFills(SideBuy, 120, 5, resting)
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].PriceCents != 90 {
		t.Fatalf("fill price = %d, want resting price 90", fills[0].PriceCents)
	}
}

func TestPlanFillsRespectsLimit(t *testing.T) {
	resting := []RestingOrder{
		{ID: 1, CompanyID: 2, RemainingQuantity: 5, UnitPriceCents: 110, TickPlaced: 1},
	}
	if fills := planFills(SideBuy, 100, 5, resting); len(fills) != 0 {
		t.Fatalf("buy at 100 must not cross an ask at 110, got %d fills", len(fills))
	}
	if fills := planFills(SideSell, 120, 5, resting); len(fills) != 0 {
		t.Fatalf("sell at 120 must not cross a bid at 110, got %d fills", len(fills))
	}
}

func TestPlanFillsPartialAndTiebreakByID(t *testing.T) {
	resting := []RestingOrder{
		{ID: 9, CompanyID: 4, RemainingQuantity: 3, UnitPriceCents: 50, TickPlaced: 2},
		{ID: 4, CompanyID: 3, RemainingQuantity: 3, UnitPriceCents: 50, TickPlaced: 2},
	}
	fills := planFills(SideBuy, 50, 4, resting)
	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	if fills[0].OrderID != 4 || fills[0].Quantity != 3 {
		t.Fatalf("first fill = %+v, want 3 units of order 4", fills[0])
	}
	if fills[1].OrderID != 9 || fills[1].Quantity != 1 {
		t.Fatalf("second fill = %+v, want 1 unit of order 9", fills[1])
	}
}

func TestPlanFillsSellSideOrdering(t *testing.T) {
	resting := []RestingOrder{
		{ID: 1, CompanyID: 1, RemainingQuantity: 2, UnitPriceCents: 95, TickPlaced: 1},
		{ID: 2, CompanyID: 2, RemainingQuantity: 2, UnitPriceCents: 105, TickPlaced: 1},
	}
	fills := planFills(SideSell, 90, 3, resting)
	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	// Highest bid fills first.
	if fills[0].OrderID != 2 || fills[0].PriceCents != 105 {
		t.Fatalf("first fill = %+v, want order 2 at 105", fills[0])
	}
	if fills[1].OrderID != 1 || fills[1].Quantity != 1 {
		t.Fatalf("second fill = %+v, want 1 unit of order 1", fills[1])
	}
}

func TestPlanFillsSkipsExhaustedOrders(t *testing.T) {
	resting := []RestingOrder{
		{ID: 1, CompanyID: 1, RemainingQuantity: 0, UnitPriceCents: 100, TickPlaced: 1},
	}
	if fills := planFills(SideBuy, 100, 1, resting); len(fills) != 0 {
		t.Fatalf("expected no fills against an exhausted order")
	}
}
