package sim

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// TradeRecord is the minimal trade view the candle aggregator consumes.
type TradeRecord struct {
	ID             int64
	ItemID         int64
	RegionID       int64
	Tick           int64
	UnitPriceCents int64
	Quantity       int64
	CreatedAt      time.Time
}

// Candle is one (item, region, tick) OHLCV row. All prices are integer cents;
// no floating point anywhere in the aggregation.
type Candle struct {
	ItemID     int64 `json:"item_id"`
	RegionID   int64 `json:"region_id"`
	Tick       int64 `json:"tick"`
	OpenCents  int64 `json:"open_cents"`
	HighCents  int64 `json:"high_cents"`
	LowCents   int64 `json:"low_cents"`
	CloseCents int64 `json:"close_cents"`
	Volume     int64 `json:"volume"`
	TradeCount int64 `json:"trade_count"`
	VWAPCents  int64 `json:"vwap_cents"`
}

// ComputeTickCandlesFromTrades is pure and deterministic: identical input
// always yields identical output. Trades are grouped by (region, item) and
// ordered by (createdAt, id) so open/close selection never depends on input
// order. VWAP is round-half-up integer division: (Σ price×qty + ⌊vol/2⌋) / vol.
func ComputeTickCandlesFromTrades(tick int64, trades []TradeRecord) ([]Candle, error) {
	if tick < 0 {
		return nil, fmt.Errorf("%w: tick must be non-negative", ErrInvariant)
	}
	for _, t := range trades {
		if t.UnitPriceCents <= 0 {
			return nil, fmt.Errorf("%w: trade %d has non-positive price", ErrInvariant, t.ID)
		}
		if t.Quantity <= 0 {
			return nil, fmt.Errorf("%w: trade %d has non-positive quantity", ErrInvariant, t.ID)
		}
		if t.ItemID <= 0 || t.RegionID <= 0 {
			return nil, fmt.Errorf("%w: trade %d missing item/region identifier", ErrInvariant, t.ID)
		}
	}

	type key struct{ regionID, itemID int64 }
	groups := make(map[key][]TradeRecord)
	for _, t := range trades {
		k := key{t.RegionID, t.ItemID}
		groups[k] = append(groups[k], t)
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].regionID != keys[j].regionID {
			return keys[i].regionID < keys[j].regionID
		}
		return keys[i].itemID < keys[j].itemID
	})

	out := make([]Candle, 0, len(keys))
	for _, k := range keys {
		group := groups[k]
		sort.Slice(group, func(i, j int) bool {
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].ID < group[j].ID
		})

		c := Candle{
			ItemID:    k.itemID,
			RegionID:  k.regionID,
			Tick:      tick,
			OpenCents: group[0].UnitPriceCents,
			LowCents:  group[0].UnitPriceCents,
		}
		notional := new(big.Int)
		for _, t := range group {
			if t.UnitPriceCents > c.HighCents {
				c.HighCents = t.UnitPriceCents
			}
			if t.UnitPriceCents < c.LowCents {
				c.LowCents = t.UnitPriceCents
			}
			c.CloseCents = t.UnitPriceCents
			c.Volume += t.Quantity
			c.TradeCount++
			notional.Add(notional, new(big.Int).Mul(
				big.NewInt(t.UnitPriceCents), big.NewInt(t.Quantity)))
		}

		// Round half up: add half the divisor before truncating division.
		vwap := new(big.Int).Add(notional, big.NewInt(c.Volume/2))
		vwap.Div(vwap, big.NewInt(c.Volume))
		if !vwap.IsInt64() {
			return nil, fmt.Errorf("%w: vwap overflow for item %d region %d", ErrInvariant, k.itemID, k.regionID)
		}
		c.VWAPCents = vwap.Int64()
		out = append(out, c)
	}
	return out, nil
}

// aggregateTickCandlesTx recomputes and upserts candles for every trade that
// executed during the given tick. Upserting by (item, region, tick) makes the
// whole step idempotent.
func aggregateTickCandlesTx(ctx context.Context, tx pgx.Tx, tick int64) error {
	rows, err := tx.Query(ctx, `
		SELECT id, item_id, region_id, tick, unit_price_cents, quantity, created_at
		FROM sim.trades
		WHERE tick = $1
		ORDER BY id
	`, tick)
	if err != nil {
		return err
	}
	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.ItemID, &t.RegionID, &t.Tick, &t.UnitPriceCents, &t.Quantity, &t.CreatedAt); err != nil {
			rows.Close()
			return err
		}
		trades = append(trades, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(trades) == 0 {
		return nil
	}

	candles, err := ComputeTickCandlesFromTrades(tick, trades)
	if err != nil {
		return err
	}
	for _, c := range candles {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sim.item_tick_candles
			    (item_id, region_id, tick, open_cents, high_cents, low_cents,
			     close_cents, volume, trade_count, vwap_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (item_id, region_id, tick) DO UPDATE SET
			    open_cents = EXCLUDED.open_cents,
			    high_cents = EXCLUDED.high_cents,
			    low_cents = EXCLUDED.low_cents,
			    close_cents = EXCLUDED.close_cents,
			    volume = EXCLUDED.volume,
			    trade_count = EXCLUDED.trade_count,
			    vwap_cents = EXCLUDED.vwap_cents
		`, c.ItemID, c.RegionID, c.Tick, c.OpenCents, c.HighCents, c.LowCents,
			c.CloseCents, c.Volume, c.TradeCount, c.VWAPCents); err != nil {
			return err
		}
	}
	return nil
}

// Candles returns stored candles for an (item, region) over a tick range.
func (s *Service) Candles(ctx context.Context, itemID, regionID, fromTick, toTick int64) ([]Candle, error) {
	rows, err := s.db.Query(ctx, `
		SELECT item_id, region_id, tick, open_cents, high_cents, low_cents,
		       close_cents, volume, trade_count, vwap_cents
		FROM sim.item_tick_candles
		WHERE item_id = $1 AND region_id = $2 AND tick BETWEEN $3 AND $4
		ORDER BY tick
	`, itemID, regionID, fromTick, toTick)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Candle
	for rows.Next() {
		var c Candle
		if err := rows.Scan(&c.ItemID, &c.RegionID, &c.Tick, &c.OpenCents, &c.HighCents,
			&c.LowCents, &c.CloseCents, &c.Volume, &c.TradeCount, &c.VWAPCents); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
