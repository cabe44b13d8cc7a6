package sim

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StartProductionJob consumes the recipe's inputs and cost up front and
// queues a job that the due-job resolver completes at tick + duration.
func (s *Service) StartProductionJob(ctx context.Context, in StartProductionInput) (int64, error) {
	if in.Runs <= 0 {
		return 0, fmt.Errorf("%w: runs must be > 0", ErrInvariant)
	}

	var jobID int64
	err := s.withSerializableRetry(ctx, func() error {
		tx, err := s.begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		tick, err := s.resolveTick(ctx, tx, in.Tick)
		if err != nil {
			return err
		}
		cash, reserved, regionID, err := lockCompany(ctx, tx, in.CompanyID)
		if err != nil {
			return err
		}

		var outputItemID, outputQty, durationTicks, costCents int64
		var researchNodeID *int64
		err = tx.QueryRow(ctx, `
			SELECT output_item_id, output_quantity, duration_ticks, cost_cents, research_node_id
			FROM sim.recipes
			WHERE id = $1
		`, in.RecipeID).Scan(&outputItemID, &outputQty, &durationTicks, &costCents, &researchNodeID)
		if err == pgx.ErrNoRows {
			return ErrRecipeNotFound
		}
		if err != nil {
			return err
		}

		if researchNodeID != nil {
			var unlocked bool
			if err := tx.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT 1 FROM sim.recipe_unlocks
					WHERE company_id = $1 AND recipe_id = $2
				)
			`, in.CompanyID, in.RecipeID).Scan(&unlocked); err != nil {
				return err
			}
			if !unlocked {
				return ErrRecipeLocked
			}
		}

		var employees int64
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(1) FROM sim.employees WHERE company_id = $1
		`, in.CompanyID).Scan(&employees); err != nil {
			return err
		}
		if employees == 0 {
			return ErrNoWorkforce
		}

		totalCost, err := notionalCents(costCents, in.Runs)
		if err != nil {
			return err
		}
		if cash-reserved < totalCost {
			return ErrInsufficientFunds
		}

		// Consume inputs immediately; the job holds no inventory reservation.
		inputRows, err := tx.Query(ctx, `
			SELECT item_id, quantity
			FROM sim.recipe_inputs
			WHERE recipe_id = $1
			ORDER BY item_id
		`, in.RecipeID)
		if err != nil {
			return err
		}
		type input struct{ itemID, qty int64 }
		var inputs []input
		for inputRows.Next() {
			var i input
			if err := inputRows.Scan(&i.itemID, &i.qty); err != nil {
				inputRows.Close()
				return err
			}
			inputs = append(inputs, i)
		}
		inputRows.Close()
		if err := inputRows.Err(); err != nil {
			return err
		}
		for _, i := range inputs {
			need, err := notionalCents(i.qty, in.Runs)
			if err != nil {
				return err
			}
			qty, reservedQty, err := lockInventory(ctx, tx, in.CompanyID, i.itemID, regionID)
			if err != nil {
				return err
			}
			if qty-reservedQty < need {
				return ErrInsufficientInventory
			}
			if err := adjustInventory(ctx, tx, in.CompanyID, i.itemID, regionID, -need, 0); err != nil {
				return err
			}
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO sim.production_jobs
			    (company_id, recipe_id, region_id, runs, status, tick_started, due_tick)
			VALUES ($1, $2, $3, $4, 'IN_PROGRESS', $5, $6)
			RETURNING id
		`, in.CompanyID, in.RecipeID, regionID, in.Runs, tick, tick+durationTicks).Scan(&jobID)
		if err != nil {
			return err
		}

		if totalCost > 0 {
			if _, err := applyCashDelta(ctx, tx, uuid.NewString(), in.CompanyID, tick,
				EntryProductionCost, -totalCost, 0, "PRODUCTION_JOB", jobID); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	return jobID, nil
}

// completeDueProductionJobs credits outputs for every IN_PROGRESS job whose
// due tick has arrived and closes each exactly once (the status filter is the
// idempotency guard). Within a company, earlier-queued jobs complete first.
func completeDueProductionJobs(ctx context.Context, tx pgx.Tx, nextTick int64) (int64, error) {
	rows, err := tx.Query(ctx, `
		SELECT j.id, j.company_id, j.region_id, j.runs, r.output_item_id, r.output_quantity
		FROM sim.production_jobs j
		JOIN sim.recipes r ON r.id = j.recipe_id
		WHERE j.status = 'IN_PROGRESS' AND j.due_tick <= $1
		ORDER BY j.company_id, j.due_tick, j.created_at, j.id
		FOR UPDATE OF j
	`, nextTick)
	if err != nil {
		return 0, err
	}
	type dueJob struct {
		id, companyID, regionID, runs, outputItemID, outputQty int64
	}
	var due []dueJob
	for rows.Next() {
		var j dueJob
		if err := rows.Scan(&j.id, &j.companyID, &j.regionID, &j.runs, &j.outputItemID, &j.outputQty); err != nil {
			rows.Close()
			return 0, err
		}
		due = append(due, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, j := range due {
		credit, err := notionalCents(j.outputQty, j.runs)
		if err != nil {
			return 0, err
		}
		if err := adjustInventory(ctx, tx, j.companyID, j.outputItemID, j.regionID, credit, 0); err != nil {
			return 0, err
		}
		cmd, err := tx.Exec(ctx, `
			UPDATE sim.production_jobs
			SET status = 'COMPLETED', completed_tick = $1, updated_at = now()
			WHERE id = $2 AND status = 'IN_PROGRESS'
		`, nextTick, j.id)
		if err != nil {
			return 0, err
		}
		if cmd.RowsAffected() == 0 {
			return 0, fmt.Errorf("%w: production job %d completed twice", ErrInvariant, j.id)
		}
		// Zero-delta audit marker tying the inventory credit to the job.
		if _, err := applyCashDelta(ctx, tx, uuid.NewString(), j.companyID, nextTick,
			EntryProductionCompletion, 0, 0, "PRODUCTION_JOB", j.id); err != nil {
			return 0, err
		}
	}
	return int64(len(due)), nil
}

// StartResearchJob debits the node cost and queues completion. The node must
// be AVAILABLE for the company (all prerequisites completed).
func (s *Service) StartResearchJob(ctx context.Context, in StartResearchInput) (int64, error) {
	var jobID int64
	err := s.withSerializableRetry(ctx, func() error {
		tx, err := s.begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		tick, err := s.resolveTick(ctx, tx, in.Tick)
		if err != nil {
			return err
		}
		cash, reserved, _, err := lockCompany(ctx, tx, in.CompanyID)
		if err != nil {
			return err
		}

		var costCents, durationTicks int64
		err = tx.QueryRow(ctx, `
			SELECT cost_cents, duration_ticks
			FROM sim.research_nodes
			WHERE id = $1
		`, in.NodeID).Scan(&costCents, &durationTicks)
		if err == pgx.ErrNoRows {
			return ErrResearchUnavailable
		}
		if err != nil {
			return err
		}

		status, err := researchStatusTx(ctx, tx, in.CompanyID, in.NodeID)
		if err != nil {
			return err
		}
		if status != ResearchAvailable {
			return ErrResearchUnavailable
		}
		var running bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM sim.research_jobs
				WHERE company_id = $1 AND node_id = $2 AND status = 'IN_PROGRESS'
			)
		`, in.CompanyID, in.NodeID).Scan(&running); err != nil {
			return err
		}
		if running {
			return ErrResearchUnavailable
		}

		if cash-reserved < costCents {
			return ErrInsufficientFunds
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO sim.research_jobs
			    (company_id, node_id, status, tick_started, due_tick)
			VALUES ($1, $2, 'IN_PROGRESS', $3, $4)
			RETURNING id
		`, in.CompanyID, in.NodeID, tick, tick+durationTicks).Scan(&jobID)
		if err != nil {
			return err
		}
		if costCents > 0 {
			if _, err := applyCashDelta(ctx, tx, uuid.NewString(), in.CompanyID, tick,
				EntryResearchPayment, -costCents, 0, "RESEARCH_JOB", jobID); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	return jobID, nil
}

// researchStatusTx resolves a company's status for a node. Nodes without a
// row are AVAILABLE when every prerequisite is completed, LOCKED otherwise.
func researchStatusTx(ctx context.Context, tx pgx.Tx, companyID, nodeID int64) (string, error) {
	var status string
	err := tx.QueryRow(ctx, `
		SELECT status FROM sim.company_research
		WHERE company_id = $1 AND node_id = $2
	`, companyID, nodeID).Scan(&status)
	if err == nil {
		return status, nil
	}
	if err != pgx.ErrNoRows {
		return "", err
	}
	var unmet int64
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(1)
		FROM sim.research_prereqs p
		WHERE p.node_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM sim.company_research cr
			WHERE cr.company_id = $2 AND cr.node_id = p.prereq_id AND cr.status = 'COMPLETED'
		  )
	`, nodeID, companyID).Scan(&unmet); err != nil {
		return "", err
	}
	if unmet == 0 {
		return ResearchAvailable, nil
	}
	return ResearchLocked, nil
}

// completeDueResearchJobs closes due research jobs, records the node as
// completed, unlocks every recipe gated behind it, and promotes dependent
// nodes whose prerequisites are now all complete.
func completeDueResearchJobs(ctx context.Context, tx pgx.Tx, nextTick int64) (int64, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, company_id, node_id
		FROM sim.research_jobs
		WHERE status = 'IN_PROGRESS' AND due_tick <= $1
		ORDER BY company_id, due_tick, created_at, id
		FOR UPDATE
	`, nextTick)
	if err != nil {
		return 0, err
	}
	type dueJob struct{ id, companyID, nodeID int64 }
	var due []dueJob
	for rows.Next() {
		var j dueJob
		if err := rows.Scan(&j.id, &j.companyID, &j.nodeID); err != nil {
			rows.Close()
			return 0, err
		}
		due = append(due, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, j := range due {
		cmd, err := tx.Exec(ctx, `
			UPDATE sim.research_jobs
			SET status = 'COMPLETED', completed_tick = $1, updated_at = now()
			WHERE id = $2 AND status = 'IN_PROGRESS'
		`, nextTick, j.id)
		if err != nil {
			return 0, err
		}
		if cmd.RowsAffected() == 0 {
			return 0, fmt.Errorf("%w: research job %d completed twice", ErrInvariant, j.id)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO sim.company_research (company_id, node_id, status)
			VALUES ($1, $2, 'COMPLETED')
			ON CONFLICT (company_id, node_id) DO UPDATE SET status = 'COMPLETED', updated_at = now()
		`, j.companyID, j.nodeID); err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO sim.recipe_unlocks (company_id, recipe_id)
			SELECT $1, r.id FROM sim.recipes r WHERE r.research_node_id = $2
			ON CONFLICT (company_id, recipe_id) DO NOTHING
		`, j.companyID, j.nodeID); err != nil {
			return 0, err
		}
		// Promote dependents whose prerequisites are all satisfied now.
		if _, err := tx.Exec(ctx, `
			INSERT INTO sim.company_research (company_id, node_id, status)
			SELECT $1, p.node_id, 'AVAILABLE'
			FROM sim.research_prereqs p
			WHERE p.prereq_id = $2
			  AND NOT EXISTS (
				SELECT 1 FROM sim.research_prereqs p2
				WHERE p2.node_id = p.node_id
				  AND NOT EXISTS (
					SELECT 1 FROM sim.company_research cr
					WHERE cr.company_id = $1 AND cr.node_id = p2.prereq_id AND cr.status = 'COMPLETED'
				  )
			  )
			ON CONFLICT (company_id, node_id) DO UPDATE SET
			    status = CASE WHEN sim.company_research.status = 'COMPLETED'
			                  THEN sim.company_research.status ELSE 'AVAILABLE' END,
			    updated_at = now()
		`, j.companyID, j.nodeID); err != nil {
			return 0, err
		}
	}
	return int64(len(due)), nil
}
