package sim

import (
	"context"
	"errors"
)

// AdvanceSimulationTicks applies exactly n single-tick advances, each in its
// own transaction, so partial progress survives a mid-run failure. A lock
// conflict aborts the current advance and is surfaced to the caller; the
// engine never auto-retries a conflict, since the caller must re-read state.
func (s *Service) AdvanceSimulationTicks(ctx context.Context, ticks int64) error {
	if ticks <= 0 {
		return ErrInvalidTickCount
	}
	for i := int64(0); i < ticks; i++ {
		if err := s.advanceOneTick(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) advanceOneTick(ctx context.Context) error {
	return s.withSerializableRetry(ctx, func() error {
		tx, err := s.begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		state, err := worldStateTx(ctx, tx)
		if err != nil {
			return err
		}
		nextTick := state.CurrentTick + 1

		produced, err := completeDueProductionJobs(ctx, tx, nextTick)
		if err != nil {
			return err
		}
		researched, err := completeDueResearchJobs(ctx, tx, nextTick)
		if err != nil {
			return err
		}
		settled, defaulted, err := settleDueContracts(ctx, tx, nextTick)
		if err != nil {
			return err
		}
		if err := paySalariesTx(ctx, tx, nextTick); err != nil {
			return err
		}
		// Close the books on the tick that just ended.
		if err := aggregateTickCandlesTx(ctx, tx, state.CurrentTick); err != nil {
			return err
		}

		if err := casAdvanceWorldState(ctx, tx, state, nextTick); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}

		s.log.Info("tick advanced",
			"tick", nextTick,
			"production_completed", produced,
			"research_completed", researched,
			"contracts_settled", settled,
			"contracts_defaulted", defaulted)
		return nil
	})
}

// IsLockConflict reports whether err is the optimistic-lock conflict callers
// should retry after a fresh state read.
func IsLockConflict(err error) bool {
	return errors.Is(err, ErrLockConflict)
}
