package sim

import (
	"context"

	"github.com/google/uuid"
)

// SeedWorld populates an empty world with a small but complete economy:
// regions, a three-stage item chain, recipes, a research tree, reference
// prices, and a roster of bot companies with starter cash and stock. Seeding
// is a no-op when regions already exist, so it is safe to run at every boot.
func (s *Service) SeedWorld(ctx context.Context) error {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(1) FROM sim.regions`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	regions := []struct {
		Code string
		Name string
	}{
		{"NORTHVALE", "Northvale Basin"},
		{"EASTPORT", "Eastport Harbor"},
	}
	regionIDs := map[string]int64{}
	for _, r := range regions {
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO sim.regions (code, name) VALUES ($1, $2) RETURNING id
		`, r.Code, r.Name).Scan(&id); err != nil {
			return err
		}
		regionIDs[r.Code] = id
	}

	items := []struct {
		Code string
		Name string
	}{
		{"ORE", "Raw Ore"},
		{"INGOT", "Refined Ingot"},
		{"COMPONENT", "Machined Component"},
		{"MACHINE", "Assembled Machine"},
	}
	itemIDs := map[string]int64{}
	for _, it := range items {
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO sim.items (code, name) VALUES ($1, $2) RETURNING id
		`, it.Code, it.Name).Scan(&id); err != nil {
			return err
		}
		itemIDs[it.Code] = id
	}

	// Fallback reference prices used by bots when a book has no trades or
	// quotes yet.
	prices := []struct {
		Item  string
		Cents int64
	}{
		{"ORE", 40},
		{"INGOT", 150},
		{"COMPONENT", 600},
		{"MACHINE", 2_800},
	}
	for _, rc := range regions {
		for _, p := range prices {
			if _, err := tx.Exec(ctx, `
				INSERT INTO sim.reference_prices (item_id, region_id, price_cents)
				VALUES ($1, $2, $3)
			`, itemIDs[p.Item], regionIDs[rc.Code], p.Cents); err != nil {
				return err
			}
		}
	}

	nodes := []struct {
		Code     string
		Name     string
		Cost     int64
		Duration int64
		Prereqs  []string
	}{
		{"SMELTING", "Industrial Smelting", 50_000, 3, nil},
		{"MACHINING", "Precision Machining", 120_000, 5, []string{"SMELTING"}},
		{"ASSEMBLY", "Automated Assembly", 250_000, 8, []string{"MACHINING"}},
	}
	nodeIDs := map[string]int64{}
	for _, n := range nodes {
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO sim.research_nodes (code, name, cost_cents, duration_ticks)
			VALUES ($1, $2, $3, $4) RETURNING id
		`, n.Code, n.Name, n.Cost, n.Duration).Scan(&id); err != nil {
			return err
		}
		nodeIDs[n.Code] = id
	}
	for _, n := range nodes {
		for _, p := range n.Prereqs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO sim.research_prereqs (node_id, prereq_id) VALUES ($1, $2)
			`, nodeIDs[n.Code], nodeIDs[p]); err != nil {
				return err
			}
		}
	}

	recipes := []struct {
		Code     string
		Output   string
		OutQty   int64
		Duration int64
		Cost     int64
		Research string
		Inputs   map[string]int64
	}{
		{"MINE_ORE", "ORE", 10, 2, 100, "", nil},
		{"SMELT_INGOT", "INGOT", 4, 3, 250, "SMELTING", map[string]int64{"ORE": 10}},
		{"MILL_COMPONENT", "COMPONENT", 2, 4, 600, "MACHINING", map[string]int64{"INGOT": 4}},
		{"BUILD_MACHINE", "MACHINE", 1, 6, 1_500, "ASSEMBLY", map[string]int64{"COMPONENT": 3, "INGOT": 2}},
	}
	recipeIDs := map[string]int64{}
	for _, r := range recipes {
		var nodeID *int64
		if r.Research != "" {
			id := nodeIDs[r.Research]
			nodeID = &id
		}
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO sim.recipes
			    (code, output_item_id, output_quantity, duration_ticks, cost_cents, research_node_id)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
		`, r.Code, itemIDs[r.Output], r.OutQty, r.Duration, r.Cost, nodeID).Scan(&id); err != nil {
			return err
		}
		recipeIDs[r.Code] = id
		for item, qty := range r.Inputs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO sim.recipe_inputs (recipe_id, item_id, quantity) VALUES ($1, $2, $3)
			`, id, itemIDs[item], qty); err != nil {
				return err
			}
		}
	}

	companies := []struct {
		Code           string
		Name           string
		Region         string
		Specialization string
		Stock          map[string]int64
		Employees      int
		Unlocks        []string
	}{
		{"NV-TRADER-1", "Northvale Trading Desk", "NORTHVALE", SpecializationLiquidity,
			map[string]int64{"ORE": 500, "INGOT": 100}, 0, nil},
		{"EP-TRADER-1", "Eastport Trading Desk", "EASTPORT", SpecializationLiquidity,
			map[string]int64{"ORE": 500, "INGOT": 100}, 0, nil},
		{"NV-MINER-1", "Basin Extraction Co", "NORTHVALE", SpecializationProducer,
			map[string]int64{"ORE": 50}, 2, nil},
		{"NV-FORGE-1", "Northvale Foundry", "NORTHVALE", SpecializationProducer,
			map[string]int64{"ORE": 200}, 2, []string{"SMELT_INGOT"}},
		{"EP-WORKS-1", "Harborside Works", "EASTPORT", SpecializationProducer,
			map[string]int64{"INGOT": 60}, 3, []string{"SMELT_INGOT", "MILL_COMPONENT"}},
	}
	for _, c := range companies {
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO sim.companies
			    (code, name, region_id, cash_cents, reserved_cash_cents, is_player, specialization)
			VALUES ($1, $2, $3, 0, 0, false, $4)
			RETURNING id
		`, c.Code, c.Name, regionIDs[c.Region], c.Specialization).Scan(&id); err != nil {
			return err
		}
		// Starter cash flows through the ledger so a replay from zero still
		// reproduces every balance.
		if _, err := applyCashDelta(ctx, tx, uuid.NewString(), id, 0,
			EntryManualAdjustment, StarterCashCents, 0, "SEED", 0); err != nil {
			return err
		}
		for item, qty := range c.Stock {
			if err := adjustInventory(ctx, tx, id, itemIDs[item], regionIDs[c.Region], qty, 0); err != nil {
				return err
			}
		}
		for i := 0; i < c.Employees; i++ {
			role := workforceRoles[i%len(workforceRoles)]
			if _, err := tx.Exec(ctx, `
				INSERT INTO sim.employees (company_id, role_code, salary_cents_per_tick, tick_hired)
				VALUES ($1, $2, $3, 0)
			`, id, role.Code, role.SalaryCentsPerTick); err != nil {
				return err
			}
		}
		for _, rc := range c.Unlocks {
			if _, err := tx.Exec(ctx, `
				INSERT INTO sim.recipe_unlocks (company_id, recipe_id) VALUES ($1, $2)
			`, id, recipeIDs[rc]); err != nil {
				return err
			}
		}
	}

	if _, err := worldStateTx(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.log.Info("seeded world",
		"regions", len(regions), "items", len(items),
		"recipes", len(recipes), "companies", len(companies))
	return nil
}
