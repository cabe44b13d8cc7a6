// Package bots plans the actions of computer-controlled companies. Planning
// is pure: it reads a snapshot and produces a plan, with no I/O, no clock,
// and no randomness, so a given snapshot always yields the same plan.
package bots

import (
	"hash/fnv"
	"sort"
	"strings"
)

const (
	SpecializationLiquidity = "liquidity"
	SpecializationProducer  = "producer"

	SideBuy  = "BUY"
	SideSell = "SELL"

	// DefaultReferencePriceCents anchors quoting when nothing else resolves
	// a price for an item.
	DefaultReferencePriceCents = int64(100)
)

// Config tunes planning without changing its shape.
type Config struct {
	// SpreadBps is the half-spread, in basis points of the reference price,
	// at which liquidity bots bracket the market.
	SpreadBps int64
	// TargetQuantity is the size of each quote a liquidity bot places.
	TargetQuantity int64
	// MaxNotionalCentsPerTick caps the cash a single bot commits to new buy
	// quotes in one planning pass.
	MaxNotionalCentsPerTick int64
	// ProducerCadenceTicks staggers producer bots: each bot acts only on
	// ticks matching its hash modulo this cadence.
	ProducerCadenceTicks int64
	// MaxJobsPerTick caps production jobs started by one bot in one pass.
	MaxJobsPerTick int
}

// DefaultConfig returns the planner tuning used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		SpreadBps:               200,
		TargetQuantity:          10,
		MaxNotionalCentsPerTick: 100_000,
		ProducerCadenceTicks:    4,
		MaxJobsPerTick:          1,
	}
}

// ItemState is one (item, region) market as a company sees it.
type ItemState struct {
	ItemID              int64
	RegionID            int64
	LastTradePriceCents int64 // 0 when no trade has executed yet
	BestBidCents        int64 // 0 when the buy side is empty
	BestAskCents        int64 // 0 when the sell side is empty
	FallbackPriceCents  int64 // 0 when no static reference exists
	AvailableQuantity   int64
	HasOpenBuy          bool
	HasOpenSell         bool
}

// RecipeInput is one ingredient requirement of a recipe.
type RecipeInput struct {
	ItemID   int64
	Quantity int64
}

// RecipeState is a recipe a company could run, with a precomputed
// startability flag covering unlocks, inputs on hand, and workforce.
type RecipeState struct {
	RecipeID       int64
	OutputItemID   int64
	OutputQuantity int64
	CostCents      int64
	Inputs         []RecipeInput
	Startable      bool
}

// CompanySnapshot is everything the planner may consider for one company.
type CompanySnapshot struct {
	Code               string
	Specialization     string
	AvailableCashCents int64
	Items              []ItemState
	Recipes            []RecipeState
}

// Snapshot is the world as of one tick, restricted to bot companies.
type Snapshot struct {
	Tick      int64
	Companies []CompanySnapshot
}

// PlannedOrder is one limit order the executor should place.
type PlannedOrder struct {
	CompanyCode    string
	ItemID         int64
	RegionID       int64
	Side           string
	Quantity       int64
	UnitPriceCents int64
}

// PlannedJob is one production job the executor should start.
type PlannedJob struct {
	CompanyCode string
	RecipeID    int64
	Runs        int64
}

// Plan is the full action set for one tick.
type Plan struct {
	Orders         []PlannedOrder
	ProductionJobs []PlannedJob
}

// PlanBotActions plans every bot company's actions for the snapshot tick.
// Companies are processed in snapshot order; callers should present them in
// a stable order (the executor sorts by company code).
func PlanBotActions(snap Snapshot, cfg Config) Plan {
	if cfg.SpreadBps <= 0 {
		cfg.SpreadBps = DefaultConfig().SpreadBps
	}
	if cfg.TargetQuantity <= 0 {
		cfg.TargetQuantity = DefaultConfig().TargetQuantity
	}
	if cfg.MaxNotionalCentsPerTick <= 0 {
		cfg.MaxNotionalCentsPerTick = DefaultConfig().MaxNotionalCentsPerTick
	}
	if cfg.ProducerCadenceTicks <= 0 {
		cfg.ProducerCadenceTicks = DefaultConfig().ProducerCadenceTicks
	}
	if cfg.MaxJobsPerTick <= 0 {
		cfg.MaxJobsPerTick = DefaultConfig().MaxJobsPerTick
	}

	var plan Plan
	for _, c := range snap.Companies {
		switch specializationOf(c) {
		case SpecializationLiquidity:
			plan.Orders = append(plan.Orders, planLiquidity(c, cfg)...)
		case SpecializationProducer:
			plan.ProductionJobs = append(plan.ProductionJobs, planProduction(snap.Tick, c, cfg)...)
		}
	}
	return plan
}

// specializationOf prefers the persisted specialization; company codes
// containing "TRADER" remain a fallback for rows seeded before the column
// existed.
func specializationOf(c CompanySnapshot) string {
	switch c.Specialization {
	case SpecializationLiquidity, SpecializationProducer:
		return c.Specialization
	}
	if strings.Contains(c.Code, "TRADER") {
		return SpecializationLiquidity
	}
	return SpecializationProducer
}

// planLiquidity brackets each item the company tracks with a bid below and
// an ask above the reference price. A side with an existing open quote is
// left alone so the book does not fill with stacked self-quotes.
func planLiquidity(c CompanySnapshot, cfg Config) []PlannedOrder {
	var orders []PlannedOrder
	budget := cfg.MaxNotionalCentsPerTick
	if budget > c.AvailableCashCents {
		budget = c.AvailableCashCents
	}

	items := make([]ItemState, len(c.Items))
	copy(items, c.Items)
	sort.Slice(items, func(i, j int) bool {
		if items[i].RegionID != items[j].RegionID {
			return items[i].RegionID < items[j].RegionID
		}
		return items[i].ItemID < items[j].ItemID
	})

	for _, it := range items {
		ref := referencePrice(it)
		halfSpread := ref * cfg.SpreadBps / 10_000
		if halfSpread < 1 {
			halfSpread = 1
		}
		bid := ref - halfSpread
		ask := ref + halfSpread
		if bid < 1 {
			bid = 1
		}

		if !it.HasOpenBuy {
			notional := bid * cfg.TargetQuantity
			if notional <= budget {
				orders = append(orders, PlannedOrder{
					CompanyCode:    c.Code,
					ItemID:         it.ItemID,
					RegionID:       it.RegionID,
					Side:           SideBuy,
					Quantity:       cfg.TargetQuantity,
					UnitPriceCents: bid,
				})
				budget -= notional
			}
		}
		if !it.HasOpenSell && it.AvailableQuantity > 0 {
			qty := cfg.TargetQuantity
			if qty > it.AvailableQuantity {
				qty = it.AvailableQuantity
			}
			orders = append(orders, PlannedOrder{
				CompanyCode:    c.Code,
				ItemID:         it.ItemID,
				RegionID:       it.RegionID,
				Side:           SideSell,
				Quantity:       qty,
				UnitPriceCents: ask,
			})
		}
	}
	return orders
}

// referencePrice resolves in priority order: last trade, book midpoint,
// static fallback, global default.
func referencePrice(it ItemState) int64 {
	if it.LastTradePriceCents > 0 {
		return it.LastTradePriceCents
	}
	if it.BestBidCents > 0 && it.BestAskCents > 0 {
		return (it.BestBidCents + it.BestAskCents) / 2
	}
	if it.FallbackPriceCents > 0 {
		return it.FallbackPriceCents
	}
	return DefaultReferencePriceCents
}

// planProduction starts the cheapest profitable startable recipes on the
// company's cadence tick. Hashing the code staggers bots so they do not all
// queue jobs on the same tick.
func planProduction(tick int64, c CompanySnapshot, cfg Config) []PlannedJob {
	if tick%cfg.ProducerCadenceTicks != cadencePhase(c.Code, cfg.ProducerCadenceTicks) {
		return nil
	}

	refs := make(map[int64]int64, len(c.Items))
	for _, it := range c.Items {
		refs[it.ItemID] = referencePrice(it)
	}

	recipes := make([]RecipeState, 0, len(c.Recipes))
	for _, r := range c.Recipes {
		if r.Startable && recipeProfitable(r, refs) {
			recipes = append(recipes, r)
		}
	}
	sort.Slice(recipes, func(i, j int) bool {
		if recipes[i].CostCents != recipes[j].CostCents {
			return recipes[i].CostCents < recipes[j].CostCents
		}
		return recipes[i].RecipeID < recipes[j].RecipeID
	})

	cash := c.AvailableCashCents
	var jobs []PlannedJob
	for _, r := range recipes {
		if len(jobs) == cfg.MaxJobsPerTick {
			break
		}
		if r.CostCents > cash {
			continue
		}
		jobs = append(jobs, PlannedJob{CompanyCode: c.Code, RecipeID: r.RecipeID, Runs: 1})
		cash -= r.CostCents
	}
	return jobs
}

// recipeProfitable judges one run against the resolved reference prices: the
// output's market value must exceed the run cost plus the value of the inputs
// it consumes.
func recipeProfitable(r RecipeState, refs map[int64]int64) bool {
	revenue := r.OutputQuantity * refPriceOf(r.OutputItemID, refs)
	spend := r.CostCents
	for _, in := range r.Inputs {
		spend += in.Quantity * refPriceOf(in.ItemID, refs)
	}
	return revenue > spend
}

func refPriceOf(itemID int64, refs map[int64]int64) int64 {
	if p, ok := refs[itemID]; ok && p > 0 {
		return p
	}
	return DefaultReferencePriceCents
}

func cadencePhase(code string, cadence int64) int64 {
	h := fnv.New32a()
	h.Write([]byte(code))
	return int64(h.Sum32()) % cadence
}
