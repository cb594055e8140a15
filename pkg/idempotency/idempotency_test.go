package idempotency

import (
	"testing"
	"time"

	"parley/pkg/apperr"
	"parley/pkg/ids"
)

func TestConsumeRejectsDuplicateInsideWindow(t *testing.T) {
	g := NewGuard(time.Minute)
	if err := g.Consume("key-1"); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := g.Consume("key-1"); !apperr.IsKind(err, apperr.KindDuplicateRequest) {
		t.Fatalf("expected DuplicateRequest, got %v", err)
	}
	if err := g.Consume("key-2"); err != nil {
		t.Fatalf("distinct key should pass: %v", err)
	}
}

func TestConsumeAllowsReplayAfterWindow(t *testing.T) {
	g := NewGuard(time.Minute)
	clock := time.Now()
	g.now = func() time.Time { return clock }

	if err := g.Consume("key"); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	clock = clock.Add(61 * time.Second)
	if err := g.Consume("key"); err != nil {
		t.Fatalf("expired key should pass: %v", err)
	}
}

func TestSweepDropsOnlyExpired(t *testing.T) {
	g := NewGuard(time.Minute)
	clock := time.Now()
	g.now = func() time.Time { return clock }

	g.Consume("old")
	clock = clock.Add(2 * time.Minute)
	g.Consume("new")

	if removed := g.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if g.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", g.Len())
	}
}

func TestKeyGeneratesWhenAbsent(t *testing.T) {
	if Key("client-key") != "client-key" {
		t.Fatal("provided key must pass through")
	}
	generated := Key("")
	if !ids.IsULID(generated) {
		t.Fatalf("generated key should be a ULID: %q", generated)
	}
	if Key("") == generated {
		t.Fatal("generated keys must be unique")
	}
}

func TestEmptyKeyIsNoOp(t *testing.T) {
	g := NewGuard(time.Minute)
	if err := g.Consume(""); err != nil {
		t.Fatalf("empty key: %v", err)
	}
	if err := g.Consume(""); err != nil {
		t.Fatalf("empty key again: %v", err)
	}
	if g.Len() != 0 {
		t.Fatal("empty keys must not be remembered")
	}
}
