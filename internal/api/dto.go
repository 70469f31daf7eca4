package api

import (
	"time"

	"github.com/shaiso/sortie/internal/orchestrator"
)

// StatusResponse — сводка состояния движка.
type StatusResponse struct {
	Status              string `json:"status"`
	Uptime              string `json:"uptime"`
	PendingPublications int    `json:"pending_publications"`
	PendingReminders    int    `json:"pending_reminders"`
	ActiveEvents        int    `json:"active_events"`
	CountdownTimers     int    `json:"countdown_timers"`
}

// JobStatus — состояние одного задания оркестратора.
type JobStatus struct {
	Name         string     `json:"name"`
	Runs         int        `json:"runs"`
	Failures     int        `json:"failures"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastDuration string     `json:"last_duration,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// JobStatusFrom собирает JobStatus из накопленной статистики задания.
func JobStatusFrom(name string, st orchestrator.JobStats) JobStatus {
	js := JobStatus{
		Name:      name,
		Runs:      st.Runs,
		Failures:  st.Failures,
		LastError: st.LastError,
	}
	if !st.LastRun.IsZero() {
		lastRun := st.LastRun
		js.LastRun = &lastRun
		js.LastDuration = st.LastDuration.String()
	}
	return js
}
