package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/sortie/internal/countdown"
	"github.com/shaiso/sortie/internal/orchestrator"
)

// JobRunner — оркестратор заданий с точки зрения API.
type JobRunner interface {
	JobNames() []string
	Stats() map[string]orchestrator.JobStats
	RunJob(ctx context.Context, name string) error
}

// CountdownView — планировщик обратного отсчёта с точки зрения API.
type CountdownView interface {
	Timers() []countdown.TimerInfo
	TimerCount() int
}

// PendingCounter — очередь с числом необработанных строк.
type PendingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

// ActiveCounter — число незавершённых событий.
type ActiveCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// Handler — главный обработчик ops API с зависимостями.
type Handler struct {
	jobs         JobRunner
	countdown    CountdownView
	publications PendingCounter
	reminders    PendingCounter
	events       ActiveCounter
	logger       *slog.Logger
	started      time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	Jobs         JobRunner
	Countdown    CountdownView
	Publications PendingCounter
	Reminders    PendingCounter
	Events       ActiveCounter
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		jobs:         cfg.Jobs,
		countdown:    cfg.Countdown,
		publications: cfg.Publications,
		reminders:    cfg.Reminders,
		events:       cfg.Events,
		logger:       logger,
		started:      time.Now(),
	}
}
