// Sortie Engine — воркер расписания событий эскадрилий.
//
// Движок:
//   - Публикует анонсы наступивших публикаций по направлениям
//   - Рассылает напоминания участникам по их ответам
//   - Ведёт события по жизненному циклу (start/conclude)
//   - Держит живой обратный отсчёт на анонсах
//   - Чистит артефакты удалённых событий (по сообщению event.deleted)
//
// Масштабируется горизонтально: строки расписания защищены
// advisory-блокировками Postgres, поэтому несколько процессов
// не дублируют отправку.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/sortie/internal/api"
	"github.com/shaiso/sortie/internal/cache"
	"github.com/shaiso/sortie/internal/config"
	"github.com/shaiso/sortie/internal/countdown"
	"github.com/shaiso/sortie/internal/lock"
	"github.com/shaiso/sortie/internal/mq"
	"github.com/shaiso/sortie/internal/orchestrator"
	"github.com/shaiso/sortie/internal/platform"
	"github.com/shaiso/sortie/internal/publish"
	"github.com/shaiso/sortie/internal/recipients"
	"github.com/shaiso/sortie/internal/remind"
	"github.com/shaiso/sortie/internal/repo"
	"github.com/shaiso/sortie/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// .env — удобство локальной разработки, в проде его нет
	_ = godotenv.Load()

	logger := telemetry.SetupLogger()
	logger.Info("starting sortie-engine")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool + схема
	pool, err := repo.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.InitSchema(ctx, pool); err != nil {
		logger.Error("failed to init schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready")

	// Репозитории
	eventRepo := repo.NewEventRepo(pool)
	squadronRepo := repo.NewSquadronRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)
	publicationRepo := repo.NewPublicationRepo(pool)
	reminderRepo := repo.NewReminderRepo(pool)
	attendanceRepo := repo.NewAttendanceRepo(pool)
	settingsRepo := repo.NewSettingsRepo(pool)

	locker := lock.NewAdvisoryLocker(pool)

	// Redis-кеш посещаемости (опционально)
	var attCache *cache.AttendanceCache
	if cfg.CacheEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not available, attendance cache disabled", "error", err)
		} else {
			attCache = cache.New(rdb, cfg.Redis.CacheTTL)
			logger.Info("redis connected", "addr", cfg.Redis.Addr)
		}
	}

	// RabbitMQ (опционально)
	var mqConn *mq.Connection
	var publisher *mq.Publisher
	if cfg.MQEnabled() {
		mqConn, err = mq.NewConnection(cfg.MQ.URL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
			mqConn = nil
		} else {
			defer mqConn.Close()
			if err := mq.SetupTopology(mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			publisher = mq.NewPublisher(mqConn, logger)
			logger.Info("RabbitMQ connected")
		}
	}

	// Клиент шлюза чат-платформы
	client := platform.NewHTTPClient(cfg.Platform.BaseURL, cfg.Platform.Token)

	// Компоненты движка
	resolver := recipients.New(recipients.Config{
		Attendance: attendanceRepo,
		Roster:     squadronRepo,
		Logger:     logger,
	})

	cd := countdown.New(countdown.Config{
		Events:     eventRepo,
		Attendance: attendanceRepo,
		Settings:   settingsRepo,
		Cache:      attCache,
		Client:     client,
		Logger:     logger,
	})

	pub := publish.New(publish.Config{
		Schedules:    scheduleRepo,
		Events:       eventRepo,
		Publications: publicationRepo,
		Squadrons:    squadronRepo,
		Reminders:    reminderRepo,
		Settings:     settingsRepo,
		Client:       client,
		Locker:       locker,
		Countdown:    cd,
		Publisher:    publisher,
		Logger:       logger,
		BatchSize:    cfg.Engine.BatchSize,
	})

	rem := remind.New(remind.Config{
		Reminders:    reminderRepo,
		Events:       eventRepo,
		Publications: publicationRepo,
		Squadrons:    squadronRepo,
		Resolver:     resolver,
		Client:       client,
		Locker:       locker,
		Logger:       logger,
		BatchSize:    cfg.Engine.BatchSize,
	})

	transitions := orchestrator.TransitionConfig{
		Events:    eventRepo,
		Locker:    locker,
		Logger:    logger,
		BatchSize: cfg.Engine.BatchSize,
	}

	orch := orchestrator.New(orchestrator.Config{
		Jobs: []orchestrator.Job{
			orchestrator.NewTickJob("publications", pub),
			orchestrator.NewTickJob("reminders", rem),
			orchestrator.NewStartedJob(transitions),
			orchestrator.NewConcludedJob(transitions),
		},
		Interval: cfg.Engine.TickInterval,
		Logger:   logger,
	})

	// Отсчёт поднимаем раньше оркестратора: стартовый проход
	// публикаций уже вешает таймеры
	if err := cd.Start(ctx); err != nil {
		logger.Error("failed to start countdown", "error", err)
		os.Exit(1)
	}
	orch.Start(ctx)

	// Consumers сообщений веб-части
	if mqConn != nil {
		cleaner := publish.NewCleaner(publish.CleanerConfig{
			Client:     client,
			Attendance: attendanceRepo,
			Cache:      attCache,
			Countdown:  cd,
			Logger:     logger,
		})

		startConsumer(ctx, logger, mq.NewConsumer(mqConn, mq.ConsumerConfig{
			Queue:   mq.QueueEventsDeleted,
			Handler: cleaner.HandleEventDeleted,
			Logger:  logger,
		}))
		startConsumer(ctx, logger, mq.NewConsumer(mqConn, mq.ConsumerConfig{
			Queue:   mq.QueueEventsPublished,
			Handler: cd.HandleEventPublished,
			Logger:  logger,
		}))
	}

	// HTTP: healthz, metrics, ops API
	handler := api.NewHandler(api.Config{
		Jobs:         orch,
		Countdown:    cd,
		Publications: scheduleRepo,
		Reminders:    reminderRepo,
		Events:       eventRepo,
		Logger:       logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.Engine.Addr(),
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	orch.Stop()
	cd.Stop()

	logger.Info("sortie-engine stopped")
}

// startConsumer запускает consumer в горутине; тот работает до
// отмены контекста, переживая разрывы соединения.
func startConsumer(ctx context.Context, logger *slog.Logger, c *mq.Consumer) {
	go func() {
		if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consumer stopped", "error", err)
		}
	}()
}
