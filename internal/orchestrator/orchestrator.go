package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/sortie/internal/telemetry"
)

// defaultInterval — интервал между проходами заданий.
const defaultInterval = time.Minute

// Job — периодическое задание движка.
type Job interface {
	// Name возвращает имя задания. Имя попадает в логи, метрики
	// и ops API, поэтому должно быть уникальным.
	Name() string

	// Run выполняет один проход задания.
	Run(ctx context.Context) error
}

// Orchestrator выполняет зарегистрированные задания по расписанию.
//
// Каждое задание получает свой слот в cron с постоянным интервалом.
// Ошибки и паники заданий изолированы: неудачный проход логируется
// и учитывается в статистике, следующий запуск идёт по расписанию.
type Orchestrator struct {
	jobs     []Job
	interval time.Duration
	cron     *cron.Cron
	logger   *slog.Logger

	// Статистика по имени задания
	mu    sync.RWMutex
	stats map[string]JobStats

	// Lifecycle
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// JobStats — накопленная статистика одного задания.
type JobStats struct {
	LastRun      time.Time     `json:"last_run"`
	LastDuration time.Duration `json:"last_duration_ns"`
	LastError    string        `json:"last_error,omitempty"`
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Jobs — задания в порядке выполнения стартового прохода.
	Jobs []Job

	// Interval — интервал между проходами (default: 1m).
	Interval time.Duration

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		jobs:     cfg.Jobs,
		interval: interval,
		cron:     cron.New(),
		logger:   logger,
		stats:    make(map[string]JobStats),
	}
}

// Start запускает оркестратор: регистрирует задания в cron и делает
// первый проход по всем заданиям, не дожидаясь интервала.
// Не блокирует.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	// 1. Регистрируем задания с постоянным интервалом
	for _, job := range o.jobs {
		o.cron.Schedule(cron.Every(o.interval), cron.FuncJob(func() {
			o.runJob(ctx, job)
		}))
	}

	// 2. Стартовый проход: задания в порядке регистрации,
	// чтобы анонсы ушли раньше напоминаний по тем же событиям
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runStartupPass(ctx)
	}()

	o.cron.Start()

	o.logger.Info("orchestrator started",
		"jobs", o.JobNames(),
		"interval", o.interval,
	)
}

// Stop останавливает оркестратор и дожидается завершения текущих
// проходов.
func (o *Orchestrator) Stop() {
	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	// Stop не прерывает уже идущие задания, только ждёт их
	<-o.cron.Stop().Done()
	o.wg.Wait()

	o.logger.Info("orchestrator stopped")
}

// RunJob немедленно выполняет задание по имени, вне расписания.
// Используется ops API для ручного запуска.
func (o *Orchestrator) RunJob(ctx context.Context, name string) error {
	for _, job := range o.jobs {
		if job.Name() == name {
			return o.runJob(ctx, job)
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownJob, name)
}

// JobNames возвращает имена заданий в порядке регистрации.
func (o *Orchestrator) JobNames() []string {
	names := make([]string, 0, len(o.jobs))
	for _, job := range o.jobs {
		names = append(names, job.Name())
	}
	return names
}

// Stats возвращает копию накопленной статистики заданий.
func (o *Orchestrator) Stats() map[string]JobStats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	stats := make(map[string]JobStats, len(o.stats))
	for name, st := range o.stats {
		stats[name] = st
	}
	return stats
}

// runStartupPass выполняет все задания один раз, последовательно.
func (o *Orchestrator) runStartupPass(ctx context.Context) {
	for _, job := range o.jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		o.runJob(ctx, job)
	}
}

// runJob выполняет одно задание: замеряет длительность, пишет метрики
// и статистику. Ошибка задания не распространяется дальше вызова.
func (o *Orchestrator) runJob(ctx context.Context, job Job) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	start := time.Now()
	err := o.safeRun(ctx, job)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		telemetry.WithJob(o.logger, job.Name()).Error("job failed",
			"duration", elapsed,
			"error", err,
		)
	}

	telemetry.JobRuns.WithLabelValues(job.Name(), status).Inc()
	telemetry.JobDuration.WithLabelValues(job.Name()).Observe(elapsed.Seconds())
	o.record(job.Name(), start, elapsed, err)

	return err
}

// safeRun выполняет задание, превращая панику в ошибку.
func (o *Orchestrator) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

// record обновляет статистику задания.
func (o *Orchestrator) record(name string, start time.Time, elapsed time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.stats[name]
	st.LastRun = start
	st.LastDuration = elapsed
	st.Runs++
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	} else {
		st.LastError = ""
	}
	o.stats[name] = st
}
