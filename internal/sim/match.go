package sim

import "sort"

// RestingOrder is the in-memory view of an OPEN counter-order considered by
// the fill planner. Rows are locked by the caller before planning.
type RestingOrder struct {
	ID                int64
	CompanyID         int64
	RemainingQuantity int64
	UnitPriceCents    int64
	TickPlaced        int64
}

// Fill is one planned match against a resting order. PriceCents is always the
// resting order's limit price (price improvement goes to the taker).
type Fill struct {
	OrderID    int64
	CompanyID  int64
	Quantity   int64
	PriceCents int64
}

// planFills applies strict price-time priority: best price first (lowest sell
// for an incoming buy, highest buy for an incoming sell), then earliest
// tickPlaced, then lowest id as the insertion-order tiebreak. Matching is
// greedy with no pro-rata allocation and stops when the incoming quantity is
// exhausted or no eligible counter-order remains.
func planFills(incomingSide string, limitPriceCents, quantity int64, resting []RestingOrder) []Fill {
	if quantity <= 0 {
		return nil
	}

	eligible := make([]RestingOrder, 0, len(resting))
	for _, r := range resting {
		if r.RemainingQuantity <= 0 {
			continue
		}
		if incomingSide == SideBuy && r.UnitPriceCents <= limitPriceCents {
			eligible = append(eligible, r)
		}
		if incomingSide == SideSell && r.UnitPriceCents >= limitPriceCents {
			eligible = append(eligible, r)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.UnitPriceCents != b.UnitPriceCents {
			if incomingSide == SideBuy {
				return a.UnitPriceCents < b.UnitPriceCents
			}
			return a.UnitPriceCents > b.UnitPriceCents
		}
		if a.TickPlaced != b.TickPlaced {
			return a.TickPlaced < b.TickPlaced
		}
		return a.ID < b.ID
	})

	remaining := quantity
	var fills []Fill
	for _, r := range eligible {
		if remaining == 0 {
			break
		}
		q := r.RemainingQuantity
		if q > remaining {
			q = remaining
		}
		fills = append(fills, Fill{
			OrderID:    r.ID,
			CompanyID:  r.CompanyID,
			Quantity:   q,
			PriceCents: r.UnitPriceCents,
		})
		remaining -= q
	}
	return fills
}
