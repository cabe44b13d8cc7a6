package sim

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// applyCashDelta mutates a company's cash and reserved-cash balances and
// appends the matching ledger entry with a post-balance snapshot. The company
// row should already be locked by the caller. All four reservation-invariant
// bounds are enforced after the update:
//
//	cash >= 0, 0 <= reserved <= cash
//
// Insufficient available cash surfaces as ErrInsufficientFunds when the delta
// spends money; any other bound breach is an internal invariant error.
func applyCashDelta(ctx context.Context, tx pgx.Tx, txGroupID string, companyID, tick int64,
	entryType string, deltaCash, deltaReserved int64, refType string, refID int64) (int64, error) {

	if !validEntryType(entryType) {
		return 0, fmt.Errorf("%w: unknown ledger entry type %q", ErrInvariant, entryType)
	}

	var cash, reserved int64
	err := tx.QueryRow(ctx, `
		UPDATE sim.companies
		SET cash_cents = cash_cents + $1,
		    reserved_cash_cents = reserved_cash_cents + $2,
		    updated_at = now()
		WHERE id = $3
		RETURNING cash_cents, reserved_cash_cents
	`, deltaCash, deltaReserved, companyID).Scan(&cash, &reserved)
	if err == pgx.ErrNoRows {
		return 0, ErrCompanyNotFound
	}
	if err != nil {
		return 0, err
	}
	if cash < 0 || reserved > cash {
		if deltaCash < 0 || deltaReserved > 0 {
			return 0, ErrInsufficientFunds
		}
		return 0, fmt.Errorf("%w: company %d cash=%d reserved=%d after %s",
			ErrInvariant, companyID, cash, reserved, entryType)
	}
	if reserved < 0 {
		return 0, fmt.Errorf("%w: company %d negative reservation after %s",
			ErrInvariant, companyID, entryType)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sim.ledger_entries
		    (tx_group_id, company_id, tick, entry_type, delta_cash_cents,
		     delta_reserved_cash_cents, balance_after_cents, reference_type, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, txGroupID, companyID, tick, entryType, deltaCash, deltaReserved, cash, refType, refID)
	if err != nil {
		return 0, err
	}
	return cash, nil
}

// lockCompany reads a company row FOR UPDATE, returning cash balances.
func lockCompany(ctx context.Context, tx pgx.Tx, companyID int64) (cash, reserved int64, regionID int64, err error) {
	err = tx.QueryRow(ctx, `
		SELECT cash_cents, reserved_cash_cents, region_id
		FROM sim.companies
		WHERE id = $1
		FOR UPDATE
	`, companyID).Scan(&cash, &reserved, &regionID)
	if err == pgx.ErrNoRows {
		err = ErrCompanyNotFound
	}
	return cash, reserved, regionID, err
}

// lockInventory reads (and creates when absent) the inventory row for
// (company, item, region) FOR UPDATE.
func lockInventory(ctx context.Context, tx pgx.Tx, companyID, itemID, regionID int64) (quantity, reservedQty int64, err error) {
	err = tx.QueryRow(ctx, `
		SELECT quantity, reserved_quantity
		FROM sim.inventories
		WHERE company_id = $1 AND item_id = $2 AND region_id = $3
		FOR UPDATE
	`, companyID, itemID, regionID).Scan(&quantity, &reservedQty)
	if err == nil || err != pgx.ErrNoRows {
		return quantity, reservedQty, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO sim.inventories (company_id, item_id, region_id, quantity, reserved_quantity)
		VALUES ($1, $2, $3, 0, 0)
		ON CONFLICT (company_id, item_id, region_id) DO NOTHING
	`, companyID, itemID, regionID)
	if err != nil {
		return 0, 0, err
	}
	err = tx.QueryRow(ctx, `
		SELECT quantity, reserved_quantity
		FROM sim.inventories
		WHERE company_id = $1 AND item_id = $2 AND region_id = $3
		FOR UPDATE
	`, companyID, itemID, regionID).Scan(&quantity, &reservedQty)
	return quantity, reservedQty, err
}

// adjustInventory applies quantity/reservation deltas and enforces
// 0 <= reserved <= quantity.
func adjustInventory(ctx context.Context, tx pgx.Tx, companyID, itemID, regionID, deltaQty, deltaReserved int64) error {
	var qty, reserved int64
	err := tx.QueryRow(ctx, `
		UPDATE sim.inventories
		SET quantity = quantity + $1,
		    reserved_quantity = reserved_quantity + $2,
		    updated_at = now()
		WHERE company_id = $3 AND item_id = $4 AND region_id = $5
		RETURNING quantity, reserved_quantity
	`, deltaQty, deltaReserved, companyID, itemID, regionID).Scan(&qty, &reserved)
	if err == pgx.ErrNoRows {
		// Only a pure credit can materialize a missing row.
		if deltaQty < 0 || deltaReserved != 0 {
			return ErrInsufficientInventory
		}
		if _, lockErr := tx.Exec(ctx, `
			INSERT INTO sim.inventories (company_id, item_id, region_id, quantity, reserved_quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, companyID, itemID, regionID, deltaQty, deltaReserved); lockErr != nil {
			return lockErr
		}
		return nil
	}
	if err != nil {
		return err
	}
	if qty < 0 || reserved > qty {
		return ErrInsufficientInventory
	}
	if reserved < 0 {
		return fmt.Errorf("%w: company %d item %d negative inventory reservation",
			ErrInvariant, companyID, itemID)
	}
	return nil
}

// CompanyLedger returns the most recent ledger entries for a company.
func (s *Service) CompanyLedger(ctx context.Context, companyID int64, limit int) ([]LedgerEntryView, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, tx_group_id, company_id, tick, entry_type, delta_cash_cents,
		       delta_reserved_cash_cents, balance_after_cents, reference_type, reference_id, created_at
		FROM sim.ledger_entries
		WHERE company_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerEntryView
	for rows.Next() {
		var e LedgerEntryView
		if err := rows.Scan(&e.ID, &e.TxGroupID, &e.CompanyID, &e.Tick, &e.EntryType,
			&e.DeltaCashCents, &e.DeltaReservedCashCents, &e.BalanceAfterCents,
			&e.ReferenceType, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
