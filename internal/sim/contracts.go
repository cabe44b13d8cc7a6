package sim

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateContract records a forward delivery agreement: at the due tick the
// seller delivers the full quantity and the buyer pays the full notional, or
// the contract defaults. Nothing is reserved at creation time.
func (s *Service) CreateContract(ctx context.Context, in CreateContractInput) (int64, error) {
	if in.Quantity <= 0 {
		return 0, fmt.Errorf("%w: contract quantity must be > 0", ErrInvariant)
	}
	if in.UnitPriceCents <= 0 {
		return 0, fmt.Errorf("%w: contract price must be > 0", ErrInvariant)
	}
	if in.BuyerID == in.SellerID {
		return 0, fmt.Errorf("%w: buyer and seller must differ", ErrInvariant)
	}
	if in.ShipmentFeeCents < 0 {
		return 0, fmt.Errorf("%w: shipment fee must be >= 0", ErrInvariant)
	}
	if _, err := notionalCents(in.UnitPriceCents, in.Quantity); err != nil {
		return 0, err
	}

	var contractID int64
	err := s.withSerializableRetry(ctx, func() error {
		tx, err := s.begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		state, err := worldStateTx(ctx, tx)
		if err != nil {
			return err
		}
		if in.DueTick <= state.CurrentTick {
			return fmt.Errorf("%w: due tick %d is not in the future (current %d)",
				ErrInvariant, in.DueTick, state.CurrentTick)
		}
		if err := checkItemRegion(ctx, tx, in.ItemID, in.RegionID); err != nil {
			return err
		}
		for _, companyID := range []int64{in.BuyerID, in.SellerID} {
			if _, _, _, err := lockCompany(ctx, tx, companyID); err != nil {
				return err
			}
		}

		fee := in.ShipmentFeeCents
		if fee == 0 {
			fee = DefaultShipmentFeeCents
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO sim.contracts
			    (buyer_id, seller_id, item_id, region_id, quantity, unit_price_cents,
			     shipment_fee_cents, status, tick_created, due_tick)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 'OPEN', $8, $9)
			RETURNING id
		`, in.BuyerID, in.SellerID, in.ItemID, in.RegionID, in.Quantity,
			in.UnitPriceCents, fee, state.CurrentTick, in.DueTick).Scan(&contractID)
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	return contractID, nil
}

// settleDueContracts resolves every OPEN contract whose due tick has arrived.
// Settlement is all-or-nothing: the buyer must cover the full notional and
// the seller must hold the full quantity unreserved, otherwise the contract
// is marked DEFAULTED with no partial transfer.
func settleDueContracts(ctx context.Context, tx pgx.Tx, nextTick int64) (settled, defaulted int64, err error) {
	rows, err := tx.Query(ctx, `
		SELECT id, buyer_id, seller_id, item_id, region_id, quantity,
		       unit_price_cents, shipment_fee_cents
		FROM sim.contracts
		WHERE status = 'OPEN' AND due_tick <= $1
		ORDER BY id
		FOR UPDATE
	`, nextTick)
	if err != nil {
		return 0, 0, err
	}
	type dueContract struct {
		id, buyerID, sellerID, itemID, regionID int64
		quantity, priceCents, feeCents          int64
	}
	var due []dueContract
	for rows.Next() {
		var c dueContract
		if err := rows.Scan(&c.id, &c.buyerID, &c.sellerID, &c.itemID, &c.regionID,
			&c.quantity, &c.priceCents, &c.feeCents); err != nil {
			rows.Close()
			return 0, 0, err
		}
		due = append(due, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}

	for _, c := range due {
		total, err := notionalCents(c.priceCents, c.quantity)
		if err != nil {
			return 0, 0, err
		}

		buyerCash, buyerReserved, _, err := lockCompany(ctx, tx, c.buyerID)
		if err != nil {
			return 0, 0, err
		}
		sellerCash, sellerReserved, _, err := lockCompany(ctx, tx, c.sellerID)
		if err != nil {
			return 0, 0, err
		}
		sellerQty, sellerReservedQty, err := lockInventory(ctx, tx, c.sellerID, c.itemID, c.regionID)
		if err != nil {
			return 0, 0, err
		}

		// The seller must also be able to cover the shipment fee after
		// receiving the notional, or the whole settlement defaults.
		if buyerCash-buyerReserved < total ||
			sellerQty-sellerReservedQty < c.quantity ||
			sellerCash-sellerReserved+total < c.feeCents {
			if err := markContract(ctx, tx, c.id, ContractDefaulted, nextTick); err != nil {
				return 0, 0, err
			}
			defaulted++
			continue
		}

		group := uuid.NewString()
		if _, err := applyCashDelta(ctx, tx, group, c.buyerID, nextTick,
			EntryContractSettlement, -total, 0, "CONTRACT", c.id); err != nil {
			return 0, 0, err
		}
		if _, err := applyCashDelta(ctx, tx, group, c.sellerID, nextTick,
			EntryContractSettlement, total, 0, "CONTRACT", c.id); err != nil {
			return 0, 0, err
		}
		if c.feeCents > 0 {
			if _, err := applyCashDelta(ctx, tx, group, c.sellerID, nextTick,
				EntryShipmentFee, -c.feeCents, 0, "CONTRACT", c.id); err != nil {
				return 0, 0, err
			}
		}
		if err := adjustInventory(ctx, tx, c.sellerID, c.itemID, c.regionID, -c.quantity, 0); err != nil {
			return 0, 0, err
		}
		if err := adjustInventory(ctx, tx, c.buyerID, c.itemID, c.regionID, c.quantity, 0); err != nil {
			return 0, 0, err
		}
		if err := markContract(ctx, tx, c.id, ContractSettled, nextTick); err != nil {
			return 0, 0, err
		}
		settled++
	}
	return settled, defaulted, nil
}

func markContract(ctx context.Context, tx pgx.Tx, contractID int64, status string, tick int64) error {
	cmd, err := tx.Exec(ctx, `
		UPDATE sim.contracts
		SET status = $1, settled_tick = $2, updated_at = now()
		WHERE id = $3 AND status = 'OPEN'
	`, status, tick, contractID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: contract %d resolved twice", ErrInvariant, contractID)
	}
	return nil
}
