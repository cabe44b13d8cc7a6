package sim

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AdjustCompanyCash applies an operator-initiated cash delta as a
// MANUAL_ADJUSTMENT ledger entry. Negative deltas may not dip below the
// reserved balance.
func (s *Service) AdjustCompanyCash(ctx context.Context, companyID, deltaCents int64, reason string) (int64, error) {
	if deltaCents == 0 {
		return 0, fmt.Errorf("%w: adjustment delta must be non-zero", ErrInvariant)
	}
	var balance int64
	err := s.withSerializableRetry(ctx, func() error {
		tx, err := s.begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		tick, err := s.resolveTick(ctx, tx, -1)
		if err != nil {
			return err
		}
		if _, _, _, err := lockCompany(ctx, tx, companyID); err != nil {
			return err
		}
		balance, err = applyCashDelta(ctx, tx, uuid.NewString(), companyID, tick,
			EntryManualAdjustment, deltaCents, 0, "ADJUSTMENT", 0)
		if err != nil {
			return err
		}
		s.log.Info("manual cash adjustment",
			"company_id", companyID, "delta_cents", deltaCents, "reason", reason)
		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// CompanyIDByCode resolves a company code to its id.
func (s *Service) CompanyIDByCode(ctx context.Context, code string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		SELECT id FROM sim.companies WHERE code = $1
	`, code).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, ErrCompanyNotFound
	}
	return id, err
}

// Company returns the dashboard view: balances, inventory, and open orders.
func (s *Service) Company(ctx context.Context, companyID int64) (*CompanyView, error) {
	var v CompanyView
	err := s.db.QueryRow(ctx, `
		SELECT id, code, name, region_id, cash_cents, reserved_cash_cents,
		       is_player, specialization
		FROM sim.companies
		WHERE id = $1
	`, companyID).Scan(&v.ID, &v.Code, &v.Name, &v.RegionID, &v.CashCents,
		&v.ReservedCashCents, &v.IsPlayer, &v.Specialization)
	if err == pgx.ErrNoRows {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, err
	}

	invRows, err := s.db.Query(ctx, `
		SELECT item_id, region_id, quantity, reserved_quantity
		FROM sim.inventories
		WHERE company_id = $1 AND quantity > 0
		ORDER BY region_id, item_id
	`, companyID)
	if err != nil {
		return nil, err
	}
	for invRows.Next() {
		var inv InventoryView
		if err := invRows.Scan(&inv.ItemID, &inv.RegionID, &inv.Quantity, &inv.ReservedQuantity); err != nil {
			invRows.Close()
			return nil, err
		}
		v.Inventory = append(v.Inventory, inv)
	}
	invRows.Close()
	if err := invRows.Err(); err != nil {
		return nil, err
	}

	orders, err := s.CompanyOpenOrders(ctx, companyID)
	if err != nil {
		return nil, err
	}
	v.OpenOrders = orders
	return &v, nil
}
