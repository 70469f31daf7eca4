package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка. Экспортируются процессом на /metrics.
var (
	// PublicationsSent — отправленные анонсы по направлениям.
	PublicationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sortie_publications_sent_total",
		Help: "Event announcements delivered to destinations",
	})

	// PublicationErrors — ошибки доставки анонсов (по направлению).
	PublicationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sortie_publication_errors_total",
		Help: "Failed announcement deliveries",
	})

	// RemindersSent — отправленные напоминания по направлениям.
	RemindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sortie_reminders_sent_total",
		Help: "Reminder messages delivered to destinations",
	})

	// ReminderRecipients — размер списка получателей напоминания.
	ReminderRecipients = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sortie_reminder_recipients",
		Help:    "Resolved recipients per reminder",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})

	// LockContention — пропуски строк из-за занятой блокировки.
	LockContention = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sortie_lock_contention_total",
		Help: "Rows skipped because another worker held the lock",
	})

	// CountdownEdits — правки живого обратного отсчёта.
	CountdownEdits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sortie_countdown_edits_total",
		Help: "Live countdown message edits",
	})

	// CountdownTimers — активные таймеры обратного отсчёта.
	CountdownTimers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sortie_countdown_timers",
		Help: "Live countdown timers currently scheduled",
	})

	// JobRuns — запуски заданий оркестратора по исходам.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sortie_job_runs_total",
		Help: "Orchestrator job runs by outcome",
	}, []string{"job", "status"})

	// JobDuration — длительность заданий оркестратора.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sortie_job_duration_seconds",
		Help:    "Orchestrator job duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	// CacheRequests — обращения к кешу посещаемости.
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sortie_attendance_cache_total",
		Help: "Attendance cache lookups by result",
	}, []string{"result"})
)
