package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGetSetAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(10)
	m.now = func() time.Time { return now }

	if _, ok, _ := m.Get(ctx, "missing"); ok {
		t.Fatalf("expected miss")
	}
	if err := m.Set(ctx, "short:abc", "https://www.google.com/maps/@22.19,113.54,17z", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := m.Get(ctx, "short:abc")
	if err != nil || !ok || value != "https://www.google.com/maps/@22.19,113.54,17z" {
		t.Fatalf("unexpected get: %q %v %v", value, ok, err)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := m.Get(ctx, "short:abc"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestMemoryEvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)
	_ = m.Set(ctx, "a", "1", 0)
	_ = m.Set(ctx, "b", "2", 0)
	_ = m.Set(ctx, "c", "3", 0)
	if len(m.items) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m.items))
	}
	if value, ok, _ := m.Get(ctx, "c"); !ok || value != "3" {
		t.Fatalf("expected newest entry to be kept")
	}
}

func TestMemoryImplementsStore(t *testing.T) {
	var _ Store = NewMemory(1)
	var _ Store = (*Valkey)(nil)
}
