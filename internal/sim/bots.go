package sim

import (
	"context"
	"sort"

	"magnate/internal/bots"
)

// RunBotsForTick snapshots the world, asks the planner for this tick's bot
// actions, and executes them through the same order and production paths
// players use. One failing action is logged and skipped; it never aborts the
// rest of the run.
func (s *Service) RunBotsForTick(ctx context.Context, tick int64, cfg bots.Config) (*BotRunResult, error) {
	if tick < 0 {
		state, err := s.GetWorldTickState(ctx)
		if err != nil {
			return nil, err
		}
		tick = state.CurrentTick
	}

	snap, companyIDs, err := s.buildBotSnapshot(ctx, tick)
	if err != nil {
		return nil, err
	}
	plan := bots.PlanBotActions(*snap, cfg)

	sort.Slice(plan.Orders, func(i, j int) bool {
		return plan.Orders[i].CompanyCode < plan.Orders[j].CompanyCode
	})
	sort.Slice(plan.ProductionJobs, func(i, j int) bool {
		return plan.ProductionJobs[i].CompanyCode < plan.ProductionJobs[j].CompanyCode
	})

	result := &BotRunResult{}
	for _, o := range plan.Orders {
		companyID, ok := companyIDs[o.CompanyCode]
		if !ok {
			continue
		}
		_, err := s.PlaceMarketOrder(ctx, PlaceOrderInput{
			CompanyID:      companyID,
			ItemID:         o.ItemID,
			RegionID:       o.RegionID,
			Side:           o.Side,
			Quantity:       o.Quantity,
			UnitPriceCents: o.UnitPriceCents,
			Tick:           tick,
		})
		if err != nil {
			s.log.Warn("bot order skipped",
				"company", o.CompanyCode, "item_id", o.ItemID, "side", o.Side, "err", err)
			continue
		}
		result.PlacedOrders++
	}
	for _, j := range plan.ProductionJobs {
		companyID, ok := companyIDs[j.CompanyCode]
		if !ok {
			continue
		}
		_, err := s.StartProductionJob(ctx, StartProductionInput{
			CompanyID: companyID,
			RecipeID:  j.RecipeID,
			Runs:      j.Runs,
			Tick:      tick,
		})
		if err != nil {
			s.log.Warn("bot production skipped",
				"company", j.CompanyCode, "recipe_id", j.RecipeID, "err", err)
			continue
		}
		result.StartedProductionJobs++
	}
	return result, nil
}

// buildBotSnapshot assembles the planner's read-only view: every non-player
// company, the market state of each item in its home region, and its
// startable recipes. Companies are ordered by code so plans are stable.
func (s *Service) buildBotSnapshot(ctx context.Context, tick int64) (*bots.Snapshot, map[string]int64, error) {
	snap := &bots.Snapshot{Tick: tick}
	companyIDs := map[string]int64{}

	rows, err := s.db.Query(ctx, `
		SELECT id, code, region_id, specialization,
		       cash_cents - reserved_cash_cents,
		       (SELECT COUNT(1) FROM sim.employees e WHERE e.company_id = c.id)
		FROM sim.companies c
		WHERE is_player = false
		ORDER BY code
	`)
	if err != nil {
		return nil, nil, err
	}
	type botCompany struct {
		id, regionID, employees int64
		code, specialization    string
		availableCash           int64
	}
	var companies []botCompany
	for rows.Next() {
		var c botCompany
		if err := rows.Scan(&c.id, &c.code, &c.regionID, &c.specialization, &c.availableCash, &c.employees); err != nil {
			rows.Close()
			return nil, nil, err
		}
		companies = append(companies, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	for _, c := range companies {
		companyIDs[c.code] = c.id
		cs := bots.CompanySnapshot{
			Code:               c.code,
			Specialization:     c.specialization,
			AvailableCashCents: c.availableCash,
		}

		items, err := s.botItemStates(ctx, c.id, c.regionID)
		if err != nil {
			return nil, nil, err
		}
		cs.Items = items

		recipes, err := s.botRecipeStates(ctx, c.id, c.regionID, c.employees, c.availableCash, items)
		if err != nil {
			return nil, nil, err
		}
		cs.Recipes = recipes

		snap.Companies = append(snap.Companies, cs)
	}
	return snap, companyIDs, nil
}

func (s *Service) botItemStates(ctx context.Context, companyID, regionID int64) ([]bots.ItemState, error) {
	rows, err := s.db.Query(ctx, `
		SELECT i.id,
		       COALESCE((SELECT t.unit_price_cents FROM sim.trades t
		                 WHERE t.item_id = i.id AND t.region_id = $2
		                 ORDER BY t.id DESC LIMIT 1), 0),
		       COALESCE((SELECT MAX(o.unit_price_cents) FROM sim.market_orders o
		                 WHERE o.item_id = i.id AND o.region_id = $2
		                   AND o.side = 'BUY' AND o.status = 'OPEN'), 0),
		       COALESCE((SELECT MIN(o.unit_price_cents) FROM sim.market_orders o
		                 WHERE o.item_id = i.id AND o.region_id = $2
		                   AND o.side = 'SELL' AND o.status = 'OPEN'), 0),
		       COALESCE((SELECT p.price_cents FROM sim.reference_prices p
		                 WHERE p.item_id = i.id AND p.region_id = $2), 0),
		       COALESCE((SELECT inv.quantity - inv.reserved_quantity FROM sim.inventories inv
		                 WHERE inv.company_id = $1 AND inv.item_id = i.id AND inv.region_id = $2), 0),
		       EXISTS (SELECT 1 FROM sim.market_orders o
		               WHERE o.company_id = $1 AND o.item_id = i.id AND o.region_id = $2
		                 AND o.side = 'BUY' AND o.status = 'OPEN'),
		       EXISTS (SELECT 1 FROM sim.market_orders o
		               WHERE o.company_id = $1 AND o.item_id = i.id AND o.region_id = $2
		                 AND o.side = 'SELL' AND o.status = 'OPEN')
		FROM sim.items i
		ORDER BY i.id
	`, companyID, regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []bots.ItemState
	for rows.Next() {
		it := bots.ItemState{RegionID: regionID}
		if err := rows.Scan(&it.ItemID, &it.LastTradePriceCents, &it.BestBidCents,
			&it.BestAskCents, &it.FallbackPriceCents, &it.AvailableQuantity,
			&it.HasOpenBuy, &it.HasOpenSell); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Service) botRecipeStates(ctx context.Context, companyID, regionID, employees, availableCash int64, items []bots.ItemState) ([]bots.RecipeState, error) {
	available := make(map[int64]int64, len(items))
	for _, it := range items {
		available[it.ItemID] = it.AvailableQuantity
	}

	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.output_item_id, r.output_quantity, r.cost_cents,
		       r.research_node_id IS NULL
		           OR EXISTS (SELECT 1 FROM sim.recipe_unlocks u
		                      WHERE u.company_id = $1 AND u.recipe_id = r.id)
		FROM sim.recipes r
		ORDER BY r.id
	`, companyID)
	if err != nil {
		return nil, err
	}
	type recipeRow struct {
		state    bots.RecipeState
		unlocked bool
	}
	var recipes []recipeRow
	for rows.Next() {
		var r recipeRow
		if err := rows.Scan(&r.state.RecipeID, &r.state.OutputItemID,
			&r.state.OutputQuantity, &r.state.CostCents, &r.unlocked); err != nil {
			rows.Close()
			return nil, err
		}
		recipes = append(recipes, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]bots.RecipeState, 0, len(recipes))
	for _, r := range recipes {
		inputRows, err := s.db.Query(ctx, `
			SELECT item_id, quantity FROM sim.recipe_inputs
			WHERE recipe_id = $1 ORDER BY item_id
		`, r.state.RecipeID)
		if err != nil {
			return nil, err
		}
		inputsOK := true
		for inputRows.Next() {
			var in bots.RecipeInput
			if err := inputRows.Scan(&in.ItemID, &in.Quantity); err != nil {
				inputRows.Close()
				return nil, err
			}
			r.state.Inputs = append(r.state.Inputs, in)
			if available[in.ItemID] < in.Quantity {
				inputsOK = false
			}
		}
		inputRows.Close()
		if err := inputRows.Err(); err != nil {
			return nil, err
		}

		r.state.Startable = r.unlocked && inputsOK &&
			employees > 0 && r.state.CostCents <= availableCash
		out = append(out, r.state)
	}
	return out, nil
}
