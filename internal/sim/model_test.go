package sim

import (
	"math"
	"testing"
)

func TestNotionalCents(t *testing.T) {
	got, err := notionalCents(125, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 500 {
		t.Fatalf("got %d want 500", got)
	}
}

func TestNotionalCentsOverflow(t *testing.T) {
	if _, err := notionalCents(math.MaxInt64, 2); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestValidSide(t *testing.T) {
	for _, side := range []string{SideBuy, SideSell} {
		if !validSide(side) {
			t.Fatalf("expected side %q to be valid", side)
		}
	}
	for _, side := range []string{"buy", "HOLD", ""} {
		if validSide(side) {
			t.Fatalf("expected side %q to be invalid", side)
		}
	}
}

func TestValidEntryType(t *testing.T) {
	valid := []string{
		EntryOrderReserve, EntryTradeSettlement, EntryContractSettlement,
		EntryShipmentFee, EntryResearchPayment, EntryProductionCompletion,
		EntryProductionCost, EntrySalaryExpense, EntryRecruitmentExpense,
		EntryManualAdjustment,
	}
	for _, e := range valid {
		if !validEntryType(e) {
			t.Fatalf("expected entry type %q to be valid", e)
		}
	}
	if validEntryType("INTEREST_ACCRUAL") {
		t.Fatalf("expected unknown entry type to be invalid")
	}
}
