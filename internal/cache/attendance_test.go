package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/sortie/internal/domain"
)

func newTestCache(t *testing.T, ttl time.Duration) (*AttendanceCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, ttl), mr
}

func TestAttendanceCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, time.Minute)
	eventID := uuid.New()

	// Пусто до записи
	if _, ok := c.Get(ctx, eventID); ok {
		t.Error("expected miss on empty cache")
	}

	counts := domain.AttendanceCounts{Accepted: 7, Tentative: 2, Declined: 1}
	c.Set(ctx, eventID, counts)

	got, ok := c.Get(ctx, eventID)
	if !ok {
		t.Fatal("expected hit after set")
	}
	if got != counts {
		t.Errorf("expected %+v, got %+v", counts, got)
	}

	// Чужое событие — промах
	if _, ok := c.Get(ctx, uuid.New()); ok {
		t.Error("expected miss for another event")
	}
}

func TestAttendanceCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, 30*time.Second)
	eventID := uuid.New()

	c.Set(ctx, eventID, domain.AttendanceCounts{Accepted: 1})
	mr.FastForward(time.Minute)

	if _, ok := c.Get(ctx, eventID); ok {
		t.Error("expected miss after TTL expiry")
	}
}

func TestAttendanceCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, time.Minute)
	eventID := uuid.New()

	c.Set(ctx, eventID, domain.AttendanceCounts{Accepted: 3})
	c.Invalidate(ctx, eventID)

	if _, ok := c.Get(ctx, eventID); ok {
		t.Error("expected miss after invalidate")
	}
}

func TestAttendanceCache_NilSafe(t *testing.T) {
	ctx := context.Background()
	var c *AttendanceCache

	// Nil-кеш молча не работает, не падает
	if _, ok := c.Get(ctx, uuid.New()); ok {
		t.Error("nil cache must always miss")
	}
	c.Set(ctx, uuid.New(), domain.AttendanceCounts{})
	c.Invalidate(ctx, uuid.New())
}
