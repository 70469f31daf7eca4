// Package cache — снапшоты посещаемости в Redis.
//
// Кеш обслуживает только путь живого обратного отсчёта: правки каждые
// 1-60 минут на событие перечитывают посещаемость, и Redis снимает
// эту нагрузку с Postgres. Кеш — исключительно оптимизация: все пути,
// влияющие на корректность (напоминания, публикации), всегда читают
// хранилище напрямую.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/sortie/internal/domain"
	"github.com/shaiso/sortie/internal/telemetry"
)

// DefaultTTL — время жизни снапшота по умолчанию.
const DefaultTTL = time.Minute

// AttendanceCache — кеш сводной посещаемости события.
// Nil-значение допустимо: все методы превращаются в no-op,
// движок работает без Redis.
type AttendanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New создаёт кеш поверх клиента Redis. ttl <= 0 — DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *AttendanceCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &AttendanceCache{client: client, ttl: ttl}
}

// Get возвращает снапшот посещаемости события и признак попадания.
func (c *AttendanceCache) Get(ctx context.Context, eventID uuid.UUID) (domain.AttendanceCounts, bool) {
	var counts domain.AttendanceCounts
	if c == nil || c.client == nil {
		return counts, false
	}

	data, err := c.client.Get(ctx, key(eventID)).Bytes()
	if err != nil {
		telemetry.CacheRequests.WithLabelValues("miss").Inc()
		return counts, false
	}
	if err := json.Unmarshal(data, &counts); err != nil {
		telemetry.CacheRequests.WithLabelValues("miss").Inc()
		return domain.AttendanceCounts{}, false
	}

	telemetry.CacheRequests.WithLabelValues("hit").Inc()
	return counts, true
}

// Set записывает снапшот. Ошибки Redis проглатываются: кеш не смеет
// ломать путь, который он ускоряет.
func (c *AttendanceCache) Set(ctx context.Context, eventID uuid.UUID, counts domain.AttendanceCounts) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(counts)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key(eventID), payload, c.ttl).Err()
}

// Invalidate сбрасывает снапшот события (зачистка при удалении).
func (c *AttendanceCache) Invalidate(ctx context.Context, eventID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, key(eventID)).Err()
}

func key(eventID uuid.UUID) string {
	return fmt.Sprintf("attendance:%s", eventID)
}
