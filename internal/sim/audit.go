package sim

import (
	"context"
	"fmt"
)

// AuditWorld scans the whole world read-only and reports every broken
// invariant: reservation bounds, open-order reservation totals against the
// company and inventory balances, and a full ledger replay of each company's
// cash. A clean world returns an empty Violations slice.
func (s *Service) AuditWorld(ctx context.Context) (*AuditReport, error) {
	state, err := s.GetWorldTickState(ctx)
	if err != nil {
		return nil, err
	}
	report := &AuditReport{Tick: state.CurrentTick, Violations: []AuditViolation{}}

	// Company balances, reservation bounds, and reserved-cash cross-check
	// against the open buy-order book, plus a ledger replay from zero.
	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.cash_cents, c.reserved_cash_cents,
		       COALESCE((SELECT SUM(o.reserved_cash_cents)
		                 FROM sim.market_orders o
		                 WHERE o.company_id = c.id AND o.side = 'BUY' AND o.status = 'OPEN'), 0),
		       COALESCE((SELECT SUM(l.delta_cash_cents)
		                 FROM sim.ledger_entries l
		                 WHERE l.company_id = c.id), 0)
		FROM sim.companies c
		ORDER BY c.id
	`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id, cash, reserved, openBuyReserved, ledgerSum int64
		if err := rows.Scan(&id, &cash, &reserved, &openBuyReserved, &ledgerSum); err != nil {
			rows.Close()
			return nil, err
		}
		report.CompaniesScanned++
		report.TotalCashCents += cash
		report.TotalReservedCents += reserved
		if cash < 0 || reserved < 0 || reserved > cash {
			report.Violations = append(report.Violations, AuditViolation{
				Kind: "CASH_BOUNDS", CompanyID: id,
				Detail: fmt.Sprintf("cash=%d reserved=%d", cash, reserved),
			})
		}
		if reserved != openBuyReserved {
			report.Violations = append(report.Violations, AuditViolation{
				Kind: "RESERVED_CASH_MISMATCH", CompanyID: id,
				Detail: fmt.Sprintf("company reserved=%d, open buy orders reserve=%d", reserved, openBuyReserved),
			})
		}
		if ledgerSum != cash {
			report.Violations = append(report.Violations, AuditViolation{
				Kind: "LEDGER_REPLAY_MISMATCH", CompanyID: id,
				Detail: fmt.Sprintf("ledger sum=%d, cash=%d", ledgerSum, cash),
			})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Inventory bounds and reserved-quantity cross-check against the open
	// sell-order book.
	invRows, err := s.db.Query(ctx, `
		SELECT i.company_id, i.item_id, i.region_id, i.quantity, i.reserved_quantity,
		       COALESCE((SELECT SUM(o.remaining_quantity)
		                 FROM sim.market_orders o
		                 WHERE o.company_id = i.company_id AND o.item_id = i.item_id
		                   AND o.region_id = i.region_id
		                   AND o.side = 'SELL' AND o.status = 'OPEN'), 0)
		FROM sim.inventories i
		ORDER BY i.company_id, i.region_id, i.item_id
	`)
	if err != nil {
		return nil, err
	}
	for invRows.Next() {
		var companyID, itemID, regionID, qty, reserved, openSellQty int64
		if err := invRows.Scan(&companyID, &itemID, &regionID, &qty, &reserved, &openSellQty); err != nil {
			invRows.Close()
			return nil, err
		}
		report.InventoryRowsScanned++
		if qty < 0 || reserved < 0 || reserved > qty {
			report.Violations = append(report.Violations, AuditViolation{
				Kind: "INVENTORY_BOUNDS", CompanyID: companyID, ItemID: itemID, RegionID: regionID,
				Detail: fmt.Sprintf("quantity=%d reserved=%d", qty, reserved),
			})
		}
		if reserved != openSellQty {
			report.Violations = append(report.Violations, AuditViolation{
				Kind: "RESERVED_QUANTITY_MISMATCH", CompanyID: companyID, ItemID: itemID, RegionID: regionID,
				Detail: fmt.Sprintf("inventory reserved=%d, open sell remainder=%d", reserved, openSellQty),
			})
		}
	}
	invRows.Close()
	if err := invRows.Err(); err != nil {
		return nil, err
	}

	return report, nil
}
