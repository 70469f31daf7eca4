package api

import (
	"errors"
	"net/http"

	"github.com/shaiso/sortie/internal/orchestrator"
)

// ListJobs возвращает задания оркестратора со статистикой,
// в порядке выполнения.
// GET /api/v1/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	names := h.jobs.JobNames()
	stats := h.jobs.Stats()

	jobs := make([]JobStatus, len(names))
	for i, name := range names {
		jobs[i] = JobStatusFrom(name, stats[name])
	}

	List(w, jobs, len(jobs))
}

// RunJob немедленно выполняет задание вне расписания.
// POST /api/v1/jobs/{name}/run
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := h.jobs.RunJob(r.Context(), name); err != nil {
		if errors.Is(err, orchestrator.ErrUnknownJob) {
			NotFound(w, err.Error())
			return
		}
		// Ошибка задания — полезная диагностика, не прячем её
		Error(w, http.StatusInternalServerError, ErrCodeJobFailed, err.Error())
		return
	}

	Success(w, JobStatusFrom(name, h.jobs.Stats()[name]))
}
