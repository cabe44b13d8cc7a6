package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

type orderRow struct {
	ID                int64  `json:"id"`
	CompanyID         int64  `json:"company_id"`
	Side              string `json:"side"`
	RemainingQuantity int64  `json:"remaining_quantity"`
	UnitPriceCents    int64  `json:"unit_price_cents"`
	TickPlaced        int64  `json:"tick_placed"`
}

type candleRow struct {
	Tick       int64 `json:"tick"`
	OpenCents  int64 `json:"open_cents"`
	HighCents  int64 `json:"high_cents"`
	LowCents   int64 `json:"low_cents"`
	CloseCents int64 `json:"close_cents"`
	Volume     int64 `json:"volume"`
	VWAPCents  int64 `json:"vwap_cents"`
}

type ledgerRow struct {
	Tick              int64  `json:"tick"`
	EntryType         string `json:"entry_type"`
	DeltaCashCents    int64  `json:"delta_cash_cents"`
	BalanceAfterCents int64  `json:"balance_after_cents"`
	ReferenceType     string `json:"reference_type"`
	ReferenceID       int64  `json:"reference_id"`
}

type inventoryRow struct {
	ItemID           int64 `json:"item_id"`
	RegionID         int64 `json:"region_id"`
	Quantity         int64 `json:"quantity"`
	ReservedQuantity int64 `json:"reserved_quantity"`
}

type violationRow struct {
	Kind      string `json:"kind"`
	CompanyID int64  `json:"company_id"`
	Detail    string `json:"detail"`
}

func renderState(out map[string]any) {
	accent.Printf("tick %v", out["current_tick"])
	neutral.Printf("  (lock version %v, last advanced %v)\n", out["lock_version"], out["last_advanced_at"])
}

func renderOrderBook(out map[string]any) error {
	var payload struct {
		Orders []orderRow `json:"orders"`
	}
	if err := remarshal(out, &payload); err != nil {
		return err
	}
	if len(payload.Orders) == 0 {
		neutral.Println("book is empty")
		return nil
	}
	accent.Printf("%-8s %-6s %10s %12s %8s\n", "ORDER", "SIDE", "REMAINING", "PRICE", "TICK")
	for _, o := range payload.Orders {
		line := neutral
		if o.Side == "BUY" {
			line = success
		}
		line.Printf("%-8d %-6s %10d %12s %8d\n",
			o.ID, o.Side, o.RemainingQuantity, formatCents(o.UnitPriceCents), o.TickPlaced)
	}
	return nil
}

func renderCandles(out map[string]any) error {
	var payload struct {
		Candles []candleRow `json:"candles"`
	}
	if err := remarshal(out, &payload); err != nil {
		return err
	}
	if len(payload.Candles) == 0 {
		neutral.Println("no candles in range")
		return nil
	}
	accent.Printf("%-6s %10s %10s %10s %10s %8s %10s\n", "TICK", "OPEN", "HIGH", "LOW", "CLOSE", "VOL", "VWAP")
	for _, c := range payload.Candles {
		neutral.Printf("%-6d %10s %10s %10s %10s %8d %10s\n",
			c.Tick, formatCents(c.OpenCents), formatCents(c.HighCents),
			formatCents(c.LowCents), formatCents(c.CloseCents), c.Volume, formatCents(c.VWAPCents))
	}
	return nil
}

func renderCompany(out map[string]any) error {
	var payload struct {
		Code              string         `json:"code"`
		Name              string         `json:"name"`
		CashCents         int64          `json:"cash_cents"`
		ReservedCashCents int64          `json:"reserved_cash_cents"`
		Specialization    string         `json:"specialization"`
		Inventory         []inventoryRow `json:"inventory"`
		OpenOrders        []orderRow     `json:"open_orders"`
	}
	if err := remarshal(out, &payload); err != nil {
		return err
	}
	accent.Printf("%s — %s\n", payload.Code, payload.Name)
	neutral.Printf("cash %s (reserved %s)", formatCents(payload.CashCents), formatCents(payload.ReservedCashCents))
	if payload.Specialization != "" {
		neutral.Printf("  specialization %s", payload.Specialization)
	}
	fmt.Println()
	if len(payload.Inventory) > 0 {
		accent.Println("inventory:")
		for _, inv := range payload.Inventory {
			neutral.Printf("  item %d region %d: %d (reserved %d)\n",
				inv.ItemID, inv.RegionID, inv.Quantity, inv.ReservedQuantity)
		}
	}
	if len(payload.OpenOrders) > 0 {
		accent.Printf("open orders: %d\n", len(payload.OpenOrders))
	}
	return nil
}

func renderLedger(out map[string]any) error {
	var payload struct {
		Entries []ledgerRow `json:"entries"`
	}
	if err := remarshal(out, &payload); err != nil {
		return err
	}
	if len(payload.Entries) == 0 {
		neutral.Println("no ledger entries")
		return nil
	}
	accent.Printf("%-6s %-30s %14s %14s %s\n", "TICK", "TYPE", "DELTA", "BALANCE", "REF")
	for _, e := range payload.Entries {
		line := neutral
		if e.DeltaCashCents < 0 {
			line = danger
		} else if e.DeltaCashCents > 0 {
			line = success
		}
		line.Printf("%-6d %-30s %14s %14s %s/%d\n",
			e.Tick, e.EntryType, formatCents(e.DeltaCashCents),
			formatCents(e.BalanceAfterCents), e.ReferenceType, e.ReferenceID)
	}
	return nil
}

func renderAudit(out map[string]any) error {
	var payload struct {
		Tick               int64          `json:"tick"`
		TotalCashCents     int64          `json:"total_cash_cents"`
		TotalReservedCents int64          `json:"total_reserved_cents"`
		CompaniesScanned   int64          `json:"companies_scanned"`
		Violations         []violationRow `json:"violations"`
	}
	if err := remarshal(out, &payload); err != nil {
		return err
	}
	accent.Printf("audit at tick %d: %d companies, total cash %s (reserved %s)\n",
		payload.Tick, payload.CompaniesScanned,
		formatCents(payload.TotalCashCents), formatCents(payload.TotalReservedCents))
	if len(payload.Violations) == 0 {
		success.Println("all invariants hold")
		return nil
	}
	danger.Printf("%d violation(s):\n", len(payload.Violations))
	for _, v := range payload.Violations {
		danger.Printf("  [%s] company %d: %s\n", v.Kind, v.CompanyID, v.Detail)
	}
	return nil
}

// remarshal converts a loosely-typed response map into a typed payload.
func remarshal(in map[string]any, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}
