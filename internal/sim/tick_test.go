package sim

import (
	"context"
	"errors"
	"testing"
)

func TestAdvanceSimulationTicksRejectsNonPositive(t *testing.T) {
	s := NewService(nil, nil)
	for _, n := range []int64{0, -1, -100} {
		err := s.AdvanceSimulationTicks(context.Background(), n)
		if !errors.Is(err, ErrInvalidTickCount) {
			t.Fatalf("ticks=%d: got %v, want ErrInvalidTickCount", n, err)
		}
	}
}

func TestIsLockConflict(t *testing.T) {
	if !IsLockConflict(ErrLockConflict) {
		t.Fatalf("expected ErrLockConflict to be a lock conflict")
	}
	if IsLockConflict(ErrTxConflict) {
		t.Fatalf("serialization retry exhaustion is not a lock conflict")
	}
	if IsLockConflict(nil) {
		t.Fatalf("nil is not a lock conflict")
	}
}
