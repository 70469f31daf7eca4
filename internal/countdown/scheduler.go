// Package countdown — живой обратный отсчёт на анонсах: по мере
// приближения старта события строка отсчёта и сводка посещаемости
// на каждом опубликованном сообщении правятся всё чаще.
package countdown

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/sortie/internal/cache"
	"github.com/shaiso/sortie/internal/domain"
	"github.com/shaiso/sortie/internal/mq"
	"github.com/shaiso/sortie/internal/platform"
	"github.com/shaiso/sortie/internal/render"
	"github.com/shaiso/sortie/internal/repo"
	"github.com/shaiso/sortie/internal/telemetry"
)

// Интервалы правок по оставшемуся до старта времени.
const (
	intervalNear = time.Minute
	intervalMid  = 15 * time.Minute
	intervalFar  = time.Hour
	intervalIdle = 24 * time.Hour

	// retryInterval — пауза перед повтором после сбоя загрузки события.
	retryInterval = time.Minute

	// idleWait — сон цикла без единого таймера; AddEvent будит раньше.
	idleWait = time.Hour
)

// CalculateInterval возвращает период правок анонса для события,
// начинающегося в start: чем ближе старт, тем чаще правки.
// Ноль — старт наступил, отсчёт закончен.
func CalculateInterval(now, start time.Time) time.Duration {
	until := start.Sub(now)
	switch {
	case until <= 0:
		return 0
	case until <= time.Hour:
		return intervalNear
	case until <= 6*time.Hour:
		return intervalMid
	case until <= 24*time.Hour:
		return intervalFar
	default:
		return intervalIdle
	}
}

// EventStore — чтение событий с публикациями.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	ListActive(ctx context.Context) ([]domain.Event, error)
}

// AttendanceStore — чтение отметок для сводки на анонсе.
type AttendanceStore interface {
	ListForMessages(ctx context.Context, messageIDs []string) ([]domain.AttendanceRecord, error)
}

// SettingsStore — общие настройки хранилища.
type SettingsStore interface {
	Get(ctx context.Context) (domain.EngineSettings, error)
}

// timer — один анонс под отсчётом.
type timer struct {
	eventID    uuid.UUID
	messageID  string
	serverID   string
	channelID  string
	nextFireAt time.Time
}

// TimerInfo — снапшот таймера для операторского API.
type TimerInfo struct {
	EventID    uuid.UUID `json:"event_id"`
	MessageID  string    `json:"message_id"`
	ServerID   string    `json:"server_id"`
	ChannelID  string    `json:"channel_id"`
	NextFireAt time.Time `json:"next_fire_at"`
}

// timerHeap — min-куча по nextFireAt.
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool { return h[i].nextFireAt.Before(h[j].nextFireAt) }

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) { *h = append(*h, x.(*timer)) }

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Scheduler держит таймеры отсчёта и правит анонсы в их сроки.
//
// Один Scheduler — одна горутина правок: спит до ближайшего таймера,
// просыпается на добавление и снятие событий. Блокировок строк не
// берёт: правка анонса идемпотентна, и даже одновременная правка
// двумя процессами заканчивается одинаковым текстом.
type Scheduler struct {
	events     EventStore
	attendance AttendanceStore
	settings   SettingsStore
	cache      *cache.AttendanceCache
	client     platform.Client
	logger     *slog.Logger

	mu     sync.Mutex
	timers timerHeap
	wake   chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config — конфигурация Scheduler.
type Config struct {
	Events     EventStore
	Attendance AttendanceStore
	Settings   SettingsStore
	Cache      *cache.AttendanceCache // опционально; nil — счёт напрямую из хранилища
	Client     platform.Client
	Logger     *slog.Logger
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		events:     cfg.Events,
		attendance: cfg.Attendance,
		settings:   cfg.Settings,
		cache:      cfg.Cache,
		client:     cfg.Client,
		logger:     logger,
		wake:       make(chan struct{}, 1),
	}
}

// Start восстанавливает таймеры по активным событиям и запускает цикл
// правок. Восстановленные таймеры срабатывают сразу: после простоя
// анонсы несут устаревший отсчёт, и первый проход их чинит.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild countdown timers: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()

	s.logger.Info("countdown scheduler started", "timers", s.TimerCount())
	return nil
}

// Stop останавливает цикл и сбрасывает таймеры.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.timers = nil
	s.mu.Unlock()
	telemetry.CountdownTimers.Set(0)

	s.logger.Info("countdown scheduler stopped")
}

// AddEvent ставит анонсы только что опубликованного события под отсчёт.
// Вызывается процессором публикаций напрямую либо consumer'ом
// event.published при работе через брокер; повторная доставка nudge
// дубликатов не создаёт.
func (s *Scheduler) AddEvent(ctx context.Context, eventID uuid.UUID) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !settings.CountdownEnabled {
		return nil
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}

	now := time.Now()
	interval := CalculateInterval(now, event.StartAt)
	if interval == 0 {
		return nil
	}

	s.mu.Lock()
	known := make(map[string]bool, len(s.timers))
	for _, tm := range s.timers {
		if tm.eventID == eventID {
			known[tm.messageID] = true
		}
	}
	added := 0
	for _, pub := range event.Publications {
		if known[pub.MessageID] {
			continue
		}
		heap.Push(&s.timers, &timer{
			eventID:    eventID,
			messageID:  pub.MessageID,
			serverID:   pub.ServerID,
			channelID:  pub.ChannelID,
			nextFireAt: now.Add(interval),
		})
		added++
	}
	count := len(s.timers)
	s.mu.Unlock()

	telemetry.CountdownTimers.Set(float64(count))
	if added > 0 {
		s.logger.Debug("countdown timers added", "event_id", eventID, "count", added)
		s.notify()
	}
	return nil
}

// RemoveEvent снимает все таймеры события. Вызывается зачисткой
// при удалении и переводом события в завершённые.
func (s *Scheduler) RemoveEvent(eventID uuid.UUID) {
	s.mu.Lock()
	kept := s.timers[:0]
	removed := 0
	for _, tm := range s.timers {
		if tm.eventID == eventID {
			removed++
			continue
		}
		kept = append(kept, tm)
	}
	s.timers = kept
	heap.Init(&s.timers)
	count := len(s.timers)
	s.mu.Unlock()

	if removed > 0 {
		telemetry.CountdownTimers.Set(float64(count))
		s.logger.Debug("countdown timers removed", "event_id", eventID, "count", removed)
		s.notify()
	}
}

// HandleEventPublished — обработчик сообщений event.published.
// Событие, удалённое до доставки nudge, отбрасывается без requeue.
func (s *Scheduler) HandleEventPublished(ctx context.Context, msg *mq.Message) error {
	payload, err := mq.ParsePayload[mq.EventPublishedPayload](msg)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	if err := s.AddEvent(ctx, payload.EventID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Info("event gone before countdown nudge", "event_id", payload.EventID)
			return nil
		}
		return err
	}
	return nil
}

// Timers возвращает снапшот таймеров, ближайшие первыми.
func (s *Scheduler) Timers() []TimerInfo {
	s.mu.Lock()
	out := make([]TimerInfo, len(s.timers))
	for i, tm := range s.timers {
		out[i] = TimerInfo{
			EventID:    tm.eventID,
			MessageID:  tm.messageID,
			ServerID:   tm.serverID,
			ChannelID:  tm.channelID,
			NextFireAt: tm.nextFireAt,
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].NextFireAt.Before(out[j].NextFireAt) })
	return out
}

// TimerCount возвращает количество активных таймеров.
func (s *Scheduler) TimerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// rebuild восстанавливает таймеры по активным опубликованным событиям.
func (s *Scheduler) rebuild(ctx context.Context) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !settings.CountdownEnabled {
		s.logger.Info("countdown disabled by settings")
		return nil
	}

	events, err := s.events.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active events: %w", err)
	}

	now := time.Now()
	s.mu.Lock()
	s.timers = nil
	for i := range events {
		event := &events[i]
		if CalculateInterval(now, event.StartAt) == 0 {
			continue
		}
		for _, pub := range event.Publications {
			heap.Push(&s.timers, &timer{
				eventID:    event.ID,
				messageID:  pub.MessageID,
				serverID:   pub.ServerID,
				channelID:  pub.ChannelID,
				nextFireAt: now,
			})
		}
	}
	count := len(s.timers)
	s.mu.Unlock()

	telemetry.CountdownTimers.Set(float64(count))
	return nil
}

// run — горутина правок: спит до ближайшего таймера, просыпается
// на изменение набора таймеров.
func (s *Scheduler) run(ctx context.Context) {
	t := time.NewTimer(idleWait)
	defer t.Stop()

	for {
		wait := idleWait
		if next, ok := s.earliest(); ok {
			wait = time.Until(next)
			if wait < 0 {
				wait = 0
			}
		}
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		t.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-t.C:
			s.fireDue(ctx, time.Now())
		}
	}
}

// fireDue правит все анонсы, чей срок наступил, и перепланирует их
// от свежего времени старта.
func (s *Scheduler) fireDue(ctx context.Context, now time.Time) {
	due := s.popDue(now)
	if len(due) == 0 {
		return
	}

	// Одна загрузка события и посещаемости на все его анонсы
	byEvent := make(map[uuid.UUID][]*timer)
	for _, tm := range due {
		byEvent[tm.eventID] = append(byEvent[tm.eventID], tm)
	}

	fallbackTZ := s.defaultTimezone(ctx)
	for eventID, timers := range byEvent {
		s.fireEvent(ctx, eventID, timers, fallbackTZ, now)
	}

	s.mu.Lock()
	count := len(s.timers)
	s.mu.Unlock()
	telemetry.CountdownTimers.Set(float64(count))
}

// fireEvent перечитывает событие и правит его до-срочные анонсы.
// Таймеры сняты с кучи: каждый исход решает, возвращать ли таймер.
func (s *Scheduler) fireEvent(ctx context.Context, eventID uuid.UUID, timers []*timer, fallbackTZ string, now time.Time) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Info("event gone, dropping countdown timers", "event_id", eventID)
			return
		}
		s.logger.Error("failed to load event for countdown",
			"event_id", eventID,
			"error", err,
		)
		s.requeue(timers, now.Add(retryInterval))
		return
	}

	interval := CalculateInterval(now, event.StartAt)
	if interval == 0 || !event.Status.IsActive() {
		s.logger.Debug("countdown finished", "event_id", eventID)
		return
	}

	counts, err := s.countsFor(ctx, event)
	if err != nil {
		s.logger.Error("failed to load attendance for countdown",
			"event_id", eventID,
			"error", err,
		)
		s.requeue(timers, now.Add(interval))
		return
	}

	content := platform.Message{Content: render.Announcement(event, counts, fallbackTZ, now)}
	next := now.Add(interval)
	for _, tm := range timers {
		if err := s.client.EditMessage(ctx, tm.channelID, tm.messageID, content); err != nil {
			if errors.Is(err, platform.ErrNotFound) {
				// Анонс удалили руками — таймер снимается навсегда
				s.logger.Warn("announcement gone, dropping countdown timer",
					"event_id", eventID,
					"message_id", tm.messageID,
				)
				continue
			}
			s.logger.Error("failed to edit countdown message",
				"event_id", eventID,
				"message_id", tm.messageID,
				"error", err,
			)
		} else {
			telemetry.CountdownEdits.Inc()
		}
		tm.nextFireAt = next
		s.push(tm)
	}
}

// countsFor возвращает сводку посещаемости: из кеша, если снапшот
// свежий, иначе из хранилища с прогревом кеша.
func (s *Scheduler) countsFor(ctx context.Context, event *domain.Event) (domain.AttendanceCounts, error) {
	if counts, ok := s.cache.Get(ctx, event.ID); ok {
		return counts, nil
	}

	records, err := s.attendance.ListForMessages(ctx, event.MessageIDs())
	if err != nil {
		return domain.AttendanceCounts{}, fmt.Errorf("list attendance: %w", err)
	}

	counts := domain.CountResponses(domain.LatestByIdentity(records))
	s.cache.Set(ctx, event.ID, counts)
	return counts, nil
}

func (s *Scheduler) defaultTimezone(ctx context.Context) string {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Warn("failed to load settings, using default timezone", "error", err)
		return domain.DefaultEngineSettings().DefaultTimezone
	}
	return settings.DefaultTimezone
}

func (s *Scheduler) earliest() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return time.Time{}, false
	}
	return s.timers[0].nextFireAt, true
}

func (s *Scheduler) popDue(now time.Time) []*timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*timer
	for len(s.timers) > 0 && !s.timers[0].nextFireAt.After(now) {
		due = append(due, heap.Pop(&s.timers).(*timer))
	}
	return due
}

func (s *Scheduler) push(tm *timer) {
	s.mu.Lock()
	heap.Push(&s.timers, tm)
	s.mu.Unlock()
}

func (s *Scheduler) requeue(timers []*timer, at time.Time) {
	s.mu.Lock()
	for _, tm := range timers {
		tm.nextFireAt = at
		heap.Push(&s.timers, tm)
	}
	s.mu.Unlock()
}

// notify будит цикл, чтобы тот пересчитал ближайший срок.
func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
