package api

import (
	"net/http"
)

// RegisterRoutes регистрирует маршруты ops API.
// Health и metrics остаются за main: им не нужен access log.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	mux.Handle("GET /api/v1/status", chain(http.HandlerFunc(h.Status)))
	mux.Handle("GET /api/v1/jobs", chain(http.HandlerFunc(h.ListJobs)))
	mux.Handle("POST /api/v1/jobs/{name}/run", chain(http.HandlerFunc(h.RunJob)))
	mux.Handle("GET /api/v1/countdown", chain(http.HandlerFunc(h.ListCountdown)))
}
