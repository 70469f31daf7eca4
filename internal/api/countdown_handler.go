package api

import (
	"net/http"
)

// ListCountdown возвращает активные таймеры обратного отсчёта,
// ближайшие первыми.
// GET /api/v1/countdown
func (h *Handler) ListCountdown(w http.ResponseWriter, _ *http.Request) {
	timers := h.countdown.Timers()
	List(w, timers, len(timers))
}
