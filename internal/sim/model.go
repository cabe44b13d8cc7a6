package sim

import (
	"errors"
	"fmt"
	"math/big"
)

const (
	// DefaultReferencePriceCents is the last-resort bot reference price when
	// neither trades, quotes, nor the static fallback table resolve one.
	DefaultReferencePriceCents = int64(100)

	// StarterCashCents is credited to seeded companies via a
	// MANUAL_ADJUSTMENT ledger entry so the replay invariant holds from zero.
	StarterCashCents = int64(5_000_000) // 50,000.00 in cents

	DefaultShipmentFeeCents = int64(2_500)
)

// Order sides and statuses are stored as uppercase text columns.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderOpen      = "OPEN"
	OrderFilled    = "FILLED"
	OrderCancelled = "CANCELLED"

	JobInProgress = "IN_PROGRESS"
	JobCompleted  = "COMPLETED"
	JobCancelled  = "CANCELLED"

	ContractOpen      = "OPEN"
	ContractSettled   = "SETTLED"
	ContractDefaulted = "DEFAULTED"

	ResearchLocked    = "LOCKED"
	ResearchAvailable = "AVAILABLE"
	ResearchCompleted = "COMPLETED"

	SpecializationLiquidity = "liquidity"
	SpecializationProducer  = "producer"
)

// Ledger entry types. Every cash- or reservation-affecting event appends
// exactly one row per company touched.
const (
	EntryOrderReserve         = "ORDER_RESERVE"
	EntryTradeSettlement      = "TRADE_SETTLEMENT"
	EntryContractSettlement   = "CONTRACT_SETTLEMENT"
	EntryShipmentFee          = "SHIPMENT_FEE"
	EntryResearchPayment      = "RESEARCH_PAYMENT"
	EntryProductionCompletion = "PRODUCTION_COMPLETION"
	EntryProductionCost       = "PRODUCTION_COST"
	EntrySalaryExpense        = "WORKFORCE_SALARY_EXPENSE"
	EntryRecruitmentExpense   = "WORKFORCE_RECRUITMENT_EXPENSE"
	EntryManualAdjustment     = "MANUAL_ADJUSTMENT"
)

var (
	ErrInvalidTickCount      = errors.New("ticks must be a positive integer")
	ErrLockConflict          = errors.New("world tick state was advanced concurrently")
	ErrTxConflict            = errors.New("transaction conflict, retry")
	ErrInsufficientFunds     = errors.New("insufficient available cash")
	ErrInsufficientInventory = errors.New("insufficient available inventory")
	ErrOrderNotOpen          = errors.New("order is not open")
	ErrOrderNotFound         = errors.New("order not found")
	ErrCompanyNotFound       = errors.New("company not found")
	ErrItemNotFound          = errors.New("item not found")
	ErrRegionNotFound        = errors.New("region not found")
	ErrRecipeNotFound        = errors.New("recipe not found")
	ErrRecipeLocked          = errors.New("recipe is not unlocked for this company")
	ErrResearchUnavailable   = errors.New("research node is not available")
	ErrNoWorkforce           = errors.New("company has no employees to run production")
	ErrInvariant             = errors.New("economic invariant violated")
)

// notionalCents computes quantity × unitPriceCents with an overflow guard.
func notionalCents(unitPriceCents, quantity int64) (int64, error) {
	v := new(big.Int).Mul(big.NewInt(unitPriceCents), big.NewInt(quantity))
	if !v.IsInt64() {
		return 0, fmt.Errorf("notional overflow: price=%d qty=%d", unitPriceCents, quantity)
	}
	return v.Int64(), nil
}

func validSide(side string) bool {
	return side == SideBuy || side == SideSell
}

func validEntryType(entryType string) bool {
	switch entryType {
	case EntryOrderReserve, EntryTradeSettlement, EntryContractSettlement,
		EntryShipmentFee, EntryResearchPayment, EntryProductionCompletion,
		EntryProductionCost, EntrySalaryExpense, EntryRecruitmentExpense,
		EntryManualAdjustment:
		return true
	}
	return false
}
