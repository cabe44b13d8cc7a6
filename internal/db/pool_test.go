package db

import (
	"testing"
	"time"
)

func TestPoolConfigDefaults(t *testing.T) {
	got := PoolConfig{}.withDefaults()
	want := PoolConfig{
		MaxConns:        20,
		MinConns:        2,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}
	if got != want {
		t.Fatalf("defaults = %+v, want %+v", got, want)
	}
}

func TestPoolConfigKeepsExplicitLimits(t *testing.T) {
	in := PoolConfig{
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	}
	if got := in.withDefaults(); got != in {
		t.Fatalf("explicit limits changed: got %+v, want %+v", got, in)
	}
}

func TestPoolConfigFillsOnlyZeroFields(t *testing.T) {
	in := PoolConfig{MaxConns: 50}
	got := in.withDefaults()
	if got.MaxConns != 50 {
		t.Fatalf("MaxConns = %d, want 50", got.MaxConns)
	}
	if got.MinConns != 2 || got.MaxConnLifetime != 30*time.Minute || got.MaxConnIdleTime != 10*time.Minute {
		t.Fatalf("zero fields not defaulted: %+v", got)
	}
}
