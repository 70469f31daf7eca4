package lock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestKeyFor_KnownValues(t *testing.T) {
	cases := []struct {
		id   string
		want int64
	}{
		// Первые 64 бита канонической формы как знаковое число
		{"00000000-0000-0000-0000-000000000000", 0},
		{"00000000-0000-0001-0000-000000000000", 1},
		{"ffffffff-ffff-ffff-0000-000000000000", -1},
		{"80000000-0000-0000-0000-000000000000", math.MinInt64},
		{"7fffffff-ffff-ffff-0000-000000000000", math.MaxInt64},
	}

	for _, c := range cases {
		id := uuid.MustParse(c.id)
		if got := KeyFor(id); got != c.want {
			t.Errorf("KeyFor(%s): expected %d, got %d", c.id, c.want, got)
		}
	}
}

func TestKeyFor_Deterministic(t *testing.T) {
	id := uuid.New()
	first := KeyFor(id)
	for i := 0; i < 100; i++ {
		if got := KeyFor(id); got != first {
			t.Fatalf("KeyFor not deterministic: %d != %d", got, first)
		}
	}
}

func TestKeyFor_IgnoresLowBits(t *testing.T) {
	// Ключ зависит только от первых 8 байт
	a := uuid.MustParse("11223344-5566-7788-0000-000000000000")
	b := uuid.MustParse("11223344-5566-7788-ffff-ffffffffffff")
	if KeyFor(a) != KeyFor(b) {
		t.Error("keys should match when the first 64 bits match")
	}
}

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	lease, err := locker.TryAcquire(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !locker.Held(42) {
		t.Error("key 42 should be held after acquire")
	}

	// Повторная попытка того же ключа — busy
	if _, err := locker.TryAcquire(ctx, 42); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	// Другой ключ свободен
	other, err := locker.TryAcquire(ctx, 43)
	if err != nil {
		t.Fatalf("unexpected error for key 43: %v", err)
	}
	_ = other.Release(ctx)

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if locker.Held(42) {
		t.Error("key 42 should be free after release")
	}

	// После release ключ снова берётся
	lease, err = locker.TryAcquire(ctx, 42)
	if err != nil {
		t.Fatalf("re-acquire after release: %v", err)
	}
	_ = lease.Release(ctx)
}

func TestMemoryLocker_DoubleRelease(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	lease, err := locker.TryAcquire(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("first release: %v", err)
	}

	// Второй release — no-op, не должен трогать чужую блокировку
	second, err := locker.TryAcquire(ctx, 7)
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("double release: %v", err)
	}
	if !locker.Held(7) {
		t.Error("double release must not free a lock held by someone else")
	}
	_ = second.Release(ctx)
}
