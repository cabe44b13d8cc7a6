package sim

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service holds the world simulation core. Every mutating method runs inside
// a single serializable transaction; concurrency control is the database's
// isolation plus the optimistic lock on the world tick state row.
type Service struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewService(db *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, log: logger}
}

func (s *Service) begin(ctx context.Context) (pgx.Tx, error) {
	return s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// withSerializableRetry re-runs fn on serialization failures with bounded
// exponential backoff. Optimistic-lock conflicts are NOT retried here: the
// caller must re-read state first.
func (s *Service) withSerializableRetry(ctx context.Context, fn func() error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

// resolveTick returns tick unchanged when the caller supplied one, otherwise
// falls back to the persisted world tick state.
func (s *Service) resolveTick(ctx context.Context, tx pgx.Tx, tick int64) (int64, error) {
	if tick >= 0 {
		return tick, nil
	}
	state, err := worldStateTx(ctx, tx)
	if err != nil {
		return 0, err
	}
	return state.CurrentTick, nil
}
