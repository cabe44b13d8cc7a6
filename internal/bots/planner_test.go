package bots

import (
	"reflect"
	"testing"
)

func liquidityCompany(code string, cash int64, items ...ItemState) CompanySnapshot {
	return CompanySnapshot{
		Code:               code,
		Specialization:     SpecializationLiquidity,
		AvailableCashCents: cash,
		Items:              items,
	}
}

func TestPlanBotActionsDeterministic(t *testing.T) {
	snap := Snapshot{
		Tick: 12,
		Companies: []CompanySnapshot{
			liquidityCompany("NV-TRADER-1", 1_000_000,
				ItemState{ItemID: 1, RegionID: 1, LastTradePriceCents: 120, AvailableQuantity: 40},
				ItemState{ItemID: 2, RegionID: 1, FallbackPriceCents: 60},
			),
			{
				Code:               "NV-MINER-1",
				Specialization:     SpecializationProducer,
				AvailableCashCents: 50_000,
				Recipes: []RecipeState{
					{RecipeID: 1, OutputItemID: 1, OutputQuantity: 10, CostCents: 100, Startable: true},
				},
			},
		},
	}
	cfg := DefaultConfig()

	a := PlanBotActions(snap, cfg)
	b := PlanBotActions(snap, cfg)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("plans differ across identical calls:\n%+v\n%+v", a, b)
	}
}

func TestLiquidityBotBracketsReferencePrice(t *testing.T) {
	snap := Snapshot{
		Tick: 3,
		Companies: []CompanySnapshot{
			liquidityCompany("NV-TRADER-1", 1_000_000,
				ItemState{ItemID: 1, RegionID: 1, LastTradePriceCents: 1000, AvailableQuantity: 25},
			),
		},
	}
	plan := PlanBotActions(snap, Config{SpreadBps: 200, TargetQuantity: 5})
	if len(plan.Orders) != 2 {
		t.Fatalf("expected bid and ask, got %d orders", len(plan.Orders))
	}
	var bid, ask *PlannedOrder
	for i := range plan.Orders {
		switch plan.Orders[i].Side {
		case SideBuy:
			bid = &plan.Orders[i]
		case SideSell:
			ask = &plan.Orders[i]
		}
	}
	if bid == nil || ask == nil {
		t.Fatalf("missing bid or ask: %+v", plan.Orders)
	}
	// 200 bps of 1000 is a 20 cent half-spread.
	if bid.UnitPriceCents != 980 {
		t.Fatalf("bid = %d, want 980", bid.UnitPriceCents)
	}
	if ask.UnitPriceCents != 1020 {
		t.Fatalf("ask = %d, want 1020", ask.UnitPriceCents)
	}
	if bid.Quantity != 5 || ask.Quantity != 5 {
		t.Fatalf("quantities = %d/%d, want 5/5", bid.Quantity, ask.Quantity)
	}
}

func TestReferencePricePriority(t *testing.T) {
	tests := []struct {
		name string
		item ItemState
		want int64
	}{
		{"last trade wins", ItemState{LastTradePriceCents: 150, BestBidCents: 90, BestAskCents: 110, FallbackPriceCents: 50}, 150},
		{"midpoint next", ItemState{BestBidCents: 90, BestAskCents: 110, FallbackPriceCents: 50}, 100},
		{"fallback next", ItemState{FallbackPriceCents: 50}, 50},
		{"default last", ItemState{}, DefaultReferencePriceCents},
		{"one-sided book uses fallback", ItemState{BestBidCents: 90, FallbackPriceCents: 50}, 50},
	}
	for _, tc := range tests {
		if got := referencePrice(tc.item); got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, got, tc.want)
		}
	}
}

func TestLiquidityBotSkipsQuotedSides(t *testing.T) {
	snap := Snapshot{
		Companies: []CompanySnapshot{
			liquidityCompany("NV-TRADER-1", 1_000_000,
				ItemState{ItemID: 1, RegionID: 1, LastTradePriceCents: 100,
					AvailableQuantity: 10, HasOpenBuy: true, HasOpenSell: true},
			),
		},
	}
	plan := PlanBotActions(snap, DefaultConfig())
	if len(plan.Orders) != 0 {
		t.Fatalf("expected no new quotes on already-quoted sides, got %+v", plan.Orders)
	}
}

func TestLiquidityBotRespectsNotionalBudget(t *testing.T) {
	snap := Snapshot{
		Companies: []CompanySnapshot{
			liquidityCompany("NV-TRADER-1", 10_000_000,
				ItemState{ItemID: 1, RegionID: 1, LastTradePriceCents: 1000},
				ItemState{ItemID: 2, RegionID: 1, LastTradePriceCents: 1000},
			),
		},
	}
	// Budget covers exactly one 10-unit bid at 980.
	plan := PlanBotActions(snap, Config{SpreadBps: 200, TargetQuantity: 10, MaxNotionalCentsPerTick: 9_900})
	buys := 0
	for _, o := range plan.Orders {
		if o.Side == SideBuy {
			buys++
		}
	}
	if buys != 1 {
		t.Fatalf("expected budget to allow exactly 1 buy quote, got %d", buys)
	}
}

func TestLiquidityBotSellCappedByInventory(t *testing.T) {
	snap := Snapshot{
		Companies: []CompanySnapshot{
			liquidityCompany("NV-TRADER-1", 0,
				ItemState{ItemID: 1, RegionID: 1, LastTradePriceCents: 100, AvailableQuantity: 3},
			),
		},
	}
	plan := PlanBotActions(snap, Config{TargetQuantity: 10})
	var sell *PlannedOrder
	for i := range plan.Orders {
		if plan.Orders[i].Side == SideSell {
			sell = &plan.Orders[i]
		}
	}
	if sell == nil {
		t.Fatalf("expected a sell quote")
	}
	if sell.Quantity != 3 {
		t.Fatalf("sell quantity = %d, want inventory cap 3", sell.Quantity)
	}
}

func TestProducerCadenceGatesJobs(t *testing.T) {
	company := CompanySnapshot{
		Code:               "NV-MINER-1",
		Specialization:     SpecializationProducer,
		AvailableCashCents: 10_000,
		Items: []ItemState{
			{ItemID: 1, RegionID: 1, LastTradePriceCents: 40},
		},
		Recipes: []RecipeState{
			{RecipeID: 1, OutputItemID: 1, OutputQuantity: 10, CostCents: 100, Startable: true},
		},
	}
	cfg := Config{ProducerCadenceTicks: 4, MaxJobsPerTick: 1}

	active := 0
	for tick := int64(0); tick < 4; tick++ {
		plan := PlanBotActions(Snapshot{Tick: tick, Companies: []CompanySnapshot{company}}, cfg)
		active += len(plan.ProductionJobs)
	}
	if active != 1 {
		t.Fatalf("expected exactly 1 active tick per cadence window, got %d", active)
	}
}

func TestProducerPrefersCheapestStartable(t *testing.T) {
	company := CompanySnapshot{
		Code:               "EP-WORKS-1",
		Specialization:     SpecializationProducer,
		AvailableCashCents: 10_000,
		Items: []ItemState{
			{ItemID: 1, RegionID: 1, LastTradePriceCents: 500},
		},
		Recipes: []RecipeState{
			{RecipeID: 3, OutputItemID: 1, OutputQuantity: 4, CostCents: 900, Startable: true},
			{RecipeID: 1, OutputItemID: 1, OutputQuantity: 4, CostCents: 200, Startable: true},
			{RecipeID: 2, OutputItemID: 1, OutputQuantity: 4, CostCents: 500, Startable: false},
		},
	}
	cfg := Config{ProducerCadenceTicks: 1, MaxJobsPerTick: 1}
	plan := PlanBotActions(Snapshot{Tick: 0, Companies: []CompanySnapshot{company}}, cfg)
	if len(plan.ProductionJobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(plan.ProductionJobs))
	}
	if plan.ProductionJobs[0].RecipeID != 1 {
		t.Fatalf("started recipe %d, want cheapest startable (1)", plan.ProductionJobs[0].RecipeID)
	}
}

func TestProducerSkipsUnprofitableRecipes(t *testing.T) {
	company := CompanySnapshot{
		Code:               "EP-WORKS-1",
		Specialization:     SpecializationProducer,
		AvailableCashCents: 1_000_000,
		Items: []ItemState{
			{ItemID: 7, RegionID: 1, LastTradePriceCents: 10},
		},
		Recipes: []RecipeState{
			// One unit of a 10-cent item can never recover a 100,000-cent run.
			{RecipeID: 1, OutputItemID: 7, OutputQuantity: 1, CostCents: 100_000, Startable: true},
		},
	}
	cfg := Config{ProducerCadenceTicks: 1, MaxJobsPerTick: 1}
	plan := PlanBotActions(Snapshot{Tick: 0, Companies: []CompanySnapshot{company}}, cfg)
	if len(plan.ProductionJobs) != 0 {
		t.Fatalf("expected no jobs for an unprofitable recipe, got %+v", plan.ProductionJobs)
	}
}

func TestProducerProfitGateCountsInputCosts(t *testing.T) {
	items := []ItemState{
		{ItemID: 1, RegionID: 1, LastTradePriceCents: 100}, // output
		{ItemID: 2, RegionID: 1, LastTradePriceCents: 80},  // input
	}
	recipe := RecipeState{
		RecipeID:       1,
		OutputItemID:   1,
		OutputQuantity: 5,
		CostCents:      100,
		Inputs:         []RecipeInput{{ItemID: 2, Quantity: 5}},
		Startable:      true,
	}
	company := CompanySnapshot{
		Code:               "NV-MINER-1",
		Specialization:     SpecializationProducer,
		AvailableCashCents: 10_000,
		Items:              items,
		Recipes:            []RecipeState{recipe},
	}
	cfg := Config{ProducerCadenceTicks: 1, MaxJobsPerTick: 1}
	// Revenue 500 vs cost 100 + inputs worth 400: break-even is not enough.
	plan := PlanBotActions(Snapshot{Tick: 0, Companies: []CompanySnapshot{company}}, cfg)
	if len(plan.ProductionJobs) != 0 {
		t.Fatalf("expected break-even recipe to be skipped, got %+v", plan.ProductionJobs)
	}

	// Cheaper inputs tip the same recipe into profit.
	company.Items[1].LastTradePriceCents = 50
	plan = PlanBotActions(Snapshot{Tick: 0, Companies: []CompanySnapshot{company}}, cfg)
	if len(plan.ProductionJobs) != 1 {
		t.Fatalf("expected 1 job once inputs are cheap enough, got %+v", plan.ProductionJobs)
	}
}

func TestSpecializationFallbackByCode(t *testing.T) {
	trader := CompanySnapshot{Code: "LEGACY-TRADER-9"}
	if specializationOf(trader) != SpecializationLiquidity {
		t.Fatalf("TRADER code should fall back to liquidity")
	}
	other := CompanySnapshot{Code: "LEGACY-MILL-9"}
	if specializationOf(other) != SpecializationProducer {
		t.Fatalf("non-trader code should fall back to producer")
	}
	explicit := CompanySnapshot{Code: "LEGACY-TRADER-9", Specialization: SpecializationProducer}
	if specializationOf(explicit) != SpecializationProducer {
		t.Fatalf("persisted specialization must win over the code heuristic")
	}
}
