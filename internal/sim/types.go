package sim

import "time"

type WorldTickState struct {
	CurrentTick    int64      `json:"current_tick"`
	LockVersion    int64      `json:"lock_version"`
	LastAdvancedAt *time.Time `json:"last_advanced_at"`
}

type PlaceOrderInput struct {
	CompanyID      int64
	ItemID         int64
	RegionID       int64
	Side           string
	Quantity       int64
	UnitPriceCents int64
	// Tick < 0 means "resolve from the persisted world tick state".
	Tick int64
}

type OrderView struct {
	ID                int64     `json:"id"`
	CompanyID         int64     `json:"company_id"`
	ItemID            int64     `json:"item_id"`
	RegionID          int64     `json:"region_id"`
	Side              string    `json:"side"`
	Status            string    `json:"status"`
	Quantity          int64     `json:"quantity"`
	RemainingQuantity int64     `json:"remaining_quantity"`
	UnitPriceCents    int64     `json:"unit_price_cents"`
	ReservedCashCents int64     `json:"reserved_cash_cents"`
	TickPlaced        int64     `json:"tick_placed"`
	TickClosed        *int64    `json:"tick_closed"`
	CreatedAt         time.Time `json:"created_at"`
}

type CompanyView struct {
	ID                int64           `json:"id"`
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	RegionID          int64           `json:"region_id"`
	CashCents         int64           `json:"cash_cents"`
	ReservedCashCents int64           `json:"reserved_cash_cents"`
	IsPlayer          bool            `json:"is_player"`
	Specialization    string          `json:"specialization"`
	Inventory         []InventoryView `json:"inventory"`
	OpenOrders        []OrderView     `json:"open_orders"`
}

type InventoryView struct {
	ItemID           int64 `json:"item_id"`
	RegionID         int64 `json:"region_id"`
	Quantity         int64 `json:"quantity"`
	ReservedQuantity int64 `json:"reserved_quantity"`
}

type LedgerEntryView struct {
	ID                     int64     `json:"id"`
	TxGroupID              string    `json:"tx_group_id"`
	CompanyID              int64     `json:"company_id"`
	Tick                   int64     `json:"tick"`
	EntryType              string    `json:"entry_type"`
	DeltaCashCents         int64     `json:"delta_cash_cents"`
	DeltaReservedCashCents int64     `json:"delta_reserved_cash_cents"`
	BalanceAfterCents      int64     `json:"balance_after_cents"`
	ReferenceType          string    `json:"reference_type"`
	ReferenceID            int64     `json:"reference_id"`
	CreatedAt              time.Time `json:"created_at"`
}

type StartProductionInput struct {
	CompanyID int64
	RecipeID  int64
	Runs      int64
	Tick      int64 // < 0 resolves from world tick state
}

type StartResearchInput struct {
	CompanyID int64
	NodeID    int64
	Tick      int64 // < 0 resolves from world tick state
}

type RecruitInput struct {
	CompanyID int64
	RoleCode  string
	Tick      int64 // < 0 resolves from world tick state
}

type CreateContractInput struct {
	BuyerID          int64
	SellerID         int64
	ItemID           int64
	RegionID         int64
	Quantity         int64
	UnitPriceCents   int64
	ShipmentFeeCents int64
	DueTick          int64
}

type BotRunResult struct {
	PlacedOrders          int `json:"placed_orders"`
	StartedProductionJobs int `json:"started_production_jobs"`
}

type AuditViolation struct {
	Kind      string `json:"kind"`
	CompanyID int64  `json:"company_id,omitempty"`
	ItemID    int64  `json:"item_id,omitempty"`
	RegionID  int64  `json:"region_id,omitempty"`
	Detail    string `json:"detail"`
}

type AuditReport struct {
	Tick                 int64            `json:"tick"`
	TotalCashCents       int64            `json:"total_cash_cents"`
	TotalReservedCents   int64            `json:"total_reserved_cents"`
	CompaniesScanned     int64            `json:"companies_scanned"`
	InventoryRowsScanned int64            `json:"inventory_rows_scanned"`
	Violations           []AuditViolation `json:"violations"`
}
