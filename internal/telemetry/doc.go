// Package telemetry обеспечивает наблюдаемость движка.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Процесс движка экспортирует метрики на /metrics endpoint;
// формат логов единый для всех компонентов.
package telemetry
