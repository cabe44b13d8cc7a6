package sim

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// worldState mirrors the singleton sim.world_state row (id = 1).
type worldState struct {
	ID             int64
	CurrentTick    int64
	LockVersion    int64
	LastAdvancedAt *time.Time
}

// GetWorldTickState returns the current tick state, creating the singleton
// row at tick 0 on first access.
func (s *Service) GetWorldTickState(ctx context.Context) (WorldTickState, error) {
	var out WorldTickState
	err := s.withSerializableRetry(ctx, func() error {
		tx, err := s.begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)
		state, err := worldStateTx(ctx, tx)
		if err != nil {
			return err
		}
		out = WorldTickState{
			CurrentTick:    state.CurrentTick,
			LockVersion:    state.LockVersion,
			LastAdvancedAt: state.LastAdvancedAt,
		}
		return tx.Commit(ctx)
	})
	return out, err
}

// worldStateTx reads the singleton row, inserting it at tick 0 when absent.
func worldStateTx(ctx context.Context, tx pgx.Tx) (worldState, error) {
	var st worldState
	err := tx.QueryRow(ctx, `
		SELECT id, current_tick, lock_version, last_advanced_at
		FROM sim.world_state
		WHERE id = 1
	`).Scan(&st.ID, &st.CurrentTick, &st.LockVersion, &st.LastAdvancedAt)
	if err == nil {
		return st, nil
	}
	if err != pgx.ErrNoRows {
		return st, err
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO sim.world_state (id, current_tick, lock_version)
		VALUES (1, 0, 0)
		ON CONFLICT (id) DO UPDATE SET id = sim.world_state.id
		RETURNING id, current_tick, lock_version, last_advanced_at
	`).Scan(&st.ID, &st.CurrentTick, &st.LockVersion, &st.LastAdvancedAt)
	return st, err
}

// casAdvanceWorldState performs the optimistic-lock version bump. A zero
// rows-affected result means a concurrent advancer committed first.
func casAdvanceWorldState(ctx context.Context, tx pgx.Tx, st worldState, nextTick int64) error {
	cmd, err := tx.Exec(ctx, `
		UPDATE sim.world_state
		SET current_tick = $1,
		    lock_version = lock_version + 1,
		    last_advanced_at = now()
		WHERE id = $2 AND lock_version = $3
	`, nextTick, st.ID, st.LockVersion)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrLockConflict
	}
	return nil
}
