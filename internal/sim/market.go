package sim

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PlaceMarketOrder validates and reserves, then matches the new order against
// the opposite side of the (item, region) book and settles every fill, all in
// one serializable transaction. Bot orders go through this exact path.
func (s *Service) PlaceMarketOrder(ctx context.Context, in PlaceOrderInput) (int64, error) {
	if !validSide(in.Side) {
		return 0, fmt.Errorf("%w: side must be BUY or SELL", ErrInvariant)
	}
	if in.Quantity <= 0 {
		return 0, fmt.Errorf("%w: quantity must be > 0", ErrInvariant)
	}
	if in.UnitPriceCents <= 0 {
		return 0, fmt.Errorf("%w: unit price must be > 0", ErrInvariant)
	}

	var orderID int64
	err := s.withSerializableRetry(ctx, func() error {
		tx, err := s.begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		tick, err := s.resolveTick(ctx, tx, in.Tick)
		if err != nil {
			return err
		}
		if err := checkItemRegion(ctx, tx, in.ItemID, in.RegionID); err != nil {
			return err
		}

		cash, reserved, _, err := lockCompany(ctx, tx, in.CompanyID)
		if err != nil {
			return err
		}

		var reserveCents int64
		switch in.Side {
		case SideBuy:
			reserveCents, err = notionalCents(in.UnitPriceCents, in.Quantity)
			if err != nil {
				return err
			}
			if cash-reserved < reserveCents {
				return ErrInsufficientFunds
			}
		case SideSell:
			qty, reservedQty, err := lockInventory(ctx, tx, in.CompanyID, in.ItemID, in.RegionID)
			if err != nil {
				return err
			}
			if qty-reservedQty < in.Quantity {
				return ErrInsufficientInventory
			}
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO sim.market_orders
			    (company_id, item_id, region_id, side, status, quantity,
			     remaining_quantity, unit_price_cents, reserved_cash_cents, tick_placed)
			VALUES ($1, $2, $3, $4, 'OPEN', $5, $5, $6, $7, $8)
			RETURNING id
		`, in.CompanyID, in.ItemID, in.RegionID, in.Side, in.Quantity,
			in.UnitPriceCents, reserveCents, tick).Scan(&orderID)
		if err != nil {
			return err
		}

		switch in.Side {
		case SideBuy:
			if _, err := applyCashDelta(ctx, tx, uuid.NewString(), in.CompanyID, tick,
				EntryOrderReserve, 0, reserveCents, "ORDER", orderID); err != nil {
				return err
			}
		case SideSell:
			if err := adjustInventory(ctx, tx, in.CompanyID, in.ItemID, in.RegionID, 0, in.Quantity); err != nil {
				return err
			}
		}

		resting, err := lockCounterOrders(ctx, tx, in.ItemID, in.RegionID, counterSide(in.Side))
		if err != nil {
			return err
		}
		fills := planFills(in.Side, in.UnitPriceCents, in.Quantity, resting)

		filled := int64(0)
		for _, fill := range fills {
			if err := s.settleFill(ctx, tx, tick, orderID, in, fill); err != nil {
				return err
			}
			filled += fill.Quantity
		}

		if filled > 0 {
			if err := closeOrReduceOrder(ctx, tx, orderID, tick, filled, in, fills); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	return orderID, nil
}

func counterSide(side string) string {
	if side == SideBuy {
		return SideSell
	}
	return SideBuy
}

func checkItemRegion(ctx context.Context, tx pgx.Tx, itemID, regionID int64) error {
	var ok bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sim.items WHERE id = $1)`, itemID).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return ErrItemNotFound
	}
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sim.regions WHERE id = $1)`, regionID).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return ErrRegionNotFound
	}
	return nil
}

// lockCounterOrders row-locks every OPEN counter-order in the book so no
// concurrent placement can double-match a resting order. Priority ordering is
// the planner's job; the lock order is kept stable by id.
func lockCounterOrders(ctx context.Context, tx pgx.Tx, itemID, regionID int64, side string) ([]RestingOrder, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, company_id, remaining_quantity, unit_price_cents, tick_placed
		FROM sim.market_orders
		WHERE item_id = $1 AND region_id = $2 AND side = $3 AND status = 'OPEN'
		ORDER BY id
		FOR UPDATE
	`, itemID, regionID, side)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RestingOrder
	for rows.Next() {
		var r RestingOrder
		if err := rows.Scan(&r.ID, &r.CompanyID, &r.RemainingQuantity, &r.UnitPriceCents, &r.TickPlaced); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// settleFill records one trade and moves cash and goods between the two
// parties: buyer's reserved cash (at the buyer's own limit) is released, the
// execution notional moves to the seller, and the goods move the other way.
func (s *Service) settleFill(ctx context.Context, tx pgx.Tx, tick, incomingOrderID int64, in PlaceOrderInput, fill Fill) error {
	execNotional, err := notionalCents(fill.PriceCents, fill.Quantity)
	if err != nil {
		return err
	}

	var buyOrderID, sellOrderID, buyerID, sellerID int64
	var buyerLimitCents int64
	if in.Side == SideBuy {
		buyOrderID, sellOrderID = incomingOrderID, fill.OrderID
		buyerID, sellerID = in.CompanyID, fill.CompanyID
		buyerLimitCents = in.UnitPriceCents
	} else {
		buyOrderID, sellOrderID = fill.OrderID, incomingOrderID
		buyerID, sellerID = fill.CompanyID, in.CompanyID
		// Resting buy: its reservation was taken at its own limit, which is
		// also the execution price.
		buyerLimitCents = fill.PriceCents
	}
	releaseCents, err := notionalCents(buyerLimitCents, fill.Quantity)
	if err != nil {
		return err
	}

	var tradeID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO sim.trades
		    (item_id, region_id, tick, buy_order_id, sell_order_id,
		     buyer_id, seller_id, unit_price_cents, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, in.ItemID, in.RegionID, tick, buyOrderID, sellOrderID,
		buyerID, sellerID, fill.PriceCents, fill.Quantity).Scan(&tradeID)
	if err != nil {
		return err
	}

	group := uuid.NewString()
	if _, err := applyCashDelta(ctx, tx, group, buyerID, tick,
		EntryTradeSettlement, -execNotional, -releaseCents, "TRADE", tradeID); err != nil {
		return err
	}
	if _, err := applyCashDelta(ctx, tx, group, sellerID, tick,
		EntryTradeSettlement, execNotional, 0, "TRADE", tradeID); err != nil {
		return err
	}

	if err := adjustInventory(ctx, tx, sellerID, in.ItemID, in.RegionID, -fill.Quantity, -fill.Quantity); err != nil {
		return err
	}
	if err := adjustInventory(ctx, tx, buyerID, in.ItemID, in.RegionID, fill.Quantity, 0); err != nil {
		return err
	}

	// Decrement the resting side and close it when exhausted.
	restingRelease := int64(0)
	if in.Side == SideSell {
		restingRelease = releaseCents
	}
	cmd, err := tx.Exec(ctx, `
		UPDATE sim.market_orders
		SET remaining_quantity = remaining_quantity - $1,
		    reserved_cash_cents = reserved_cash_cents - $2,
		    status = CASE WHEN remaining_quantity - $1 = 0 THEN 'FILLED' ELSE status END,
		    tick_closed = CASE WHEN remaining_quantity - $1 = 0 THEN $3 ELSE tick_closed END,
		    updated_at = now()
		WHERE id = $4 AND status = 'OPEN' AND remaining_quantity >= $1
	`, fill.Quantity, restingRelease, tick, fill.OrderID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: resting order %d mutated during settlement", ErrInvariant, fill.OrderID)
	}
	return nil
}

// closeOrReduceOrder applies the incoming order's aggregate fill result.
func closeOrReduceOrder(ctx context.Context, tx pgx.Tx, orderID, tick, filled int64, in PlaceOrderInput, fills []Fill) error {
	released := int64(0)
	if in.Side == SideBuy {
		for _, f := range fills {
			r, err := notionalCents(in.UnitPriceCents, f.Quantity)
			if err != nil {
				return err
			}
			released += r
		}
	}
	cmd, err := tx.Exec(ctx, `
		UPDATE sim.market_orders
		SET remaining_quantity = remaining_quantity - $1,
		    reserved_cash_cents = reserved_cash_cents - $2,
		    status = CASE WHEN remaining_quantity - $1 = 0 THEN 'FILLED' ELSE status END,
		    tick_closed = CASE WHEN remaining_quantity - $1 = 0 THEN $3 ELSE tick_closed END,
		    updated_at = now()
		WHERE id = $4 AND status = 'OPEN' AND remaining_quantity >= $1
	`, filled, released, tick, orderID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: incoming order %d mutated during settlement", ErrInvariant, orderID)
	}
	return nil
}

// CancelOrder releases the unfilled remainder's reservation and closes the
// order. Only OPEN orders may be cancelled; settled fills are untouched.
func (s *Service) CancelOrder(ctx context.Context, orderID int64) error {
	return s.withSerializableRetry(ctx, func() error {
		tx, err := s.begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		var companyID, itemID, regionID, remaining, reservedCash int64
		var side, status string
		err = tx.QueryRow(ctx, `
			SELECT company_id, item_id, region_id, side, status, remaining_quantity, reserved_cash_cents
			FROM sim.market_orders
			WHERE id = $1
			FOR UPDATE
		`, orderID).Scan(&companyID, &itemID, &regionID, &side, &status, &remaining, &reservedCash)
		if err == pgx.ErrNoRows {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if status != OrderOpen {
			return ErrOrderNotOpen
		}

		tick, err := s.resolveTick(ctx, tx, -1)
		if err != nil {
			return err
		}

		if _, _, _, err := lockCompany(ctx, tx, companyID); err != nil {
			return err
		}
		switch side {
		case SideBuy:
			if _, err := applyCashDelta(ctx, tx, uuid.NewString(), companyID, tick,
				EntryOrderReserve, 0, -reservedCash, "ORDER", orderID); err != nil {
				return err
			}
		case SideSell:
			if err := adjustInventory(ctx, tx, companyID, itemID, regionID, 0, -remaining); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE sim.market_orders
			SET status = 'CANCELLED', reserved_cash_cents = 0, tick_closed = $1, updated_at = now()
			WHERE id = $2
		`, tick, orderID); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// OpenOrders returns the OPEN book for one (item, region), best-priced first
// on each side.
func (s *Service) OpenOrders(ctx context.Context, itemID, regionID int64) ([]OrderView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, company_id, item_id, region_id, side, status, quantity,
		       remaining_quantity, unit_price_cents, reserved_cash_cents,
		       tick_placed, tick_closed, created_at
		FROM sim.market_orders
		WHERE item_id = $1 AND region_id = $2 AND status = 'OPEN'
		ORDER BY side, unit_price_cents DESC, tick_placed, id
	`, itemID, regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderView
	for rows.Next() {
		var o OrderView
		if err := rows.Scan(&o.ID, &o.CompanyID, &o.ItemID, &o.RegionID, &o.Side, &o.Status,
			&o.Quantity, &o.RemainingQuantity, &o.UnitPriceCents, &o.ReservedCashCents,
			&o.TickPlaced, &o.TickClosed, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CompanyOpenOrders returns a company's OPEN orders across all books.
func (s *Service) CompanyOpenOrders(ctx context.Context, companyID int64) ([]OrderView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, company_id, item_id, region_id, side, status, quantity,
		       remaining_quantity, unit_price_cents, reserved_cash_cents,
		       tick_placed, tick_closed, created_at
		FROM sim.market_orders
		WHERE company_id = $1 AND status = 'OPEN'
		ORDER BY id
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderView
	for rows.Next() {
		var o OrderView
		if err := rows.Scan(&o.ID, &o.CompanyID, &o.ItemID, &o.RegionID, &o.Side, &o.Status,
			&o.Quantity, &o.RemainingQuantity, &o.UnitPriceCents, &o.ReservedCashCents,
			&o.TickPlaced, &o.TickClosed, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
