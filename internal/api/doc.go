// Package api содержит ops HTTP API движка.
//
// Это не CRUD-интерфейс событий (он живёт в веб-части), а диагностика
// работающего процесса: состояние очередей, статистика заданий,
// таймеры обратного отсчёта и ручной запуск задания вне расписания.
//
// Структура:
//   - handler.go           — Handler с DI (оркестратор, счётчики, logger)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, recovery)
//   - response.go          — унифицированные JSON-ответы
//   - dto.go               — Data Transfer Objects
//   - status_handler.go    — GET /status
//   - job_handler.go       — GET /jobs, POST /jobs/{name}/run
//   - countdown_handler.go — GET /countdown
package api
