package api

import (
	"net/http"
	"time"
)

// Status возвращает сводку состояния движка.
// GET /api/v1/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pending, err := h.publications.CountPending(ctx)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	reminders, err := h.reminders.CountPending(ctx)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	active, err := h.events.CountActive(ctx)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, StatusResponse{
		Status:              "ok",
		Uptime:              time.Since(h.started).Round(time.Second).String(),
		PendingPublications: pending,
		PendingReminders:    reminders,
		ActiveEvents:        active,
		CountdownTimers:     h.countdown.TimerCount(),
	})
}
