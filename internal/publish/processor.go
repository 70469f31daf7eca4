// Package publish — процессор публикаций: превращает due строки
// расписания в сообщения-анонсы по направлениям события.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/sortie/internal/domain"
	"github.com/shaiso/sortie/internal/lock"
	"github.com/shaiso/sortie/internal/mq"
	"github.com/shaiso/sortie/internal/platform"
	"github.com/shaiso/sortie/internal/render"
	"github.com/shaiso/sortie/internal/repo"
	"github.com/shaiso/sortie/internal/telemetry"
)

// ScheduleStore — строки расписания публикаций.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledPublication, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// EventStore — чтение событий.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)
}

// PublicationStore — записи о публикациях события.
type PublicationStore interface {
	Create(ctx context.Context, pub *domain.Publication) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Publication, error)
}

// SquadronStore — чтение эскадрилий.
type SquadronStore interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Squadron, error)
}

// ReminderStore — строки расписания напоминаний.
type ReminderStore interface {
	Create(ctx context.Context, rem *domain.Reminder) error
}

// SettingsStore — общие настройки движка.
type SettingsStore interface {
	Get(ctx context.Context) (domain.EngineSettings, error)
}

// Countdown — приёмник уведомлений о свежих публикациях.
type Countdown interface {
	AddEvent(ctx context.Context, eventID uuid.UUID) error
}

// Processor — процессор публикаций.
type Processor struct {
	schedules    ScheduleStore
	events       EventStore
	publications PublicationStore
	squadrons    SquadronStore
	reminders    ReminderStore
	settings     SettingsStore
	client       platform.Client
	locker       lock.Locker
	countdown    Countdown
	publisher    *mq.Publisher
	logger       *slog.Logger
	batchSize    int
}

// Config — конфигурация Processor.
type Config struct {
	Schedules    ScheduleStore
	Events       EventStore
	Publications PublicationStore
	Squadrons    SquadronStore
	Reminders    ReminderStore
	Settings     SettingsStore
	Client       platform.Client
	Locker       lock.Locker
	Countdown    Countdown     // опционально
	Publisher    *mq.Publisher // опционально
	Logger       *slog.Logger
	BatchSize    int // строк за один тик (default: 100)
}

// New создаёт новый Processor.
func New(cfg Config) *Processor {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		schedules:    cfg.Schedules,
		events:       cfg.Events,
		publications: cfg.Publications,
		squadrons:    cfg.Squadrons,
		reminders:    cfg.Reminders,
		settings:     cfg.Settings,
		client:       cfg.Client,
		locker:       cfg.Locker,
		countdown:    cfg.Countdown,
		publisher:    cfg.Publisher,
		logger:       logger,
		batchSize:    batchSize,
	}
}

// rowOutcome — исход обработки одной строки расписания.
type rowOutcome int

const (
	// rowFailed — строка не обработана, останется due.
	rowFailed rowOutcome = iota

	// rowSkipped — строку или её событие держит другой воркер.
	rowSkipped

	// rowRetired — строка погашена без новых отправок
	// (событие уже опубликовано или удалено).
	rowRetired

	// rowPublished — хотя бы одно направление получило анонс.
	rowPublished
)

// Tick выполняет один проход процессора публикаций.
//
// 1. Находит due строки расписания (sent=false, scheduled_at <= now)
// 2. Для каждой строки берёт блокировки строки и события;
//    занято — молча пропускает до следующего тика
// 3. Публикует анонс в каждое уникальное направление события
// 4. При хотя бы одной успешной доставке планирует напоминания
//    и помечает строку sent
//
// Ошибки одной строки не блокируют обработку остальных; все ошибки
// собираются и возвращаются одним списком.
func (p *Processor) Tick(ctx context.Context) error {
	now := time.Now()

	rows, err := p.schedules.ListDue(ctx, now, p.batchSize)
	if err != nil {
		return fmt.Errorf("list due publications: %w", err)
	}

	if len(rows) == 0 {
		return nil
	}

	p.logger.Debug("found due publications", "count", len(rows))

	var published, retired, skipped, failed int
	var rowErrs []error
	for i := range rows {
		row := &rows[i]

		outcome, err := p.processRow(ctx, row, now)
		if err != nil {
			p.logger.Error("scheduled publication processed with errors",
				"schedule_id", row.ID,
				"event_id", row.EventID,
				"error", err,
			)
			rowErrs = append(rowErrs, fmt.Errorf("schedule %s: %w", row.ID, err))
		}

		switch outcome {
		case rowPublished:
			published++
		case rowRetired:
			retired++
		case rowSkipped:
			skipped++
		case rowFailed:
			failed++
		}
	}

	p.logger.Info("publication tick completed",
		"due", len(rows),
		"published", published,
		"retired", retired,
		"skipped", skipped,
		"failed", failed,
	)

	return errors.Join(rowErrs...)
}

// processRow обрабатывает одну строку расписания.
//
// Исход и ошибка независимы: строка может быть опубликована частично —
// тогда исход rowPublished, а ошибки неудачных направлений
// возвращаются вызывающему.
func (p *Processor) processRow(ctx context.Context, row *domain.ScheduledPublication, now time.Time) (rowOutcome, error) {
	// 1. Блокировка строки: ровно один воркер на строку
	rowLease, err := p.locker.TryAcquire(ctx, lock.KeyFor(row.ID))
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			telemetry.LockContention.Inc()
			p.logger.Debug("schedule row held by another worker", "schedule_id", row.ID)
			return rowSkipped, nil
		}
		return rowFailed, fmt.Errorf("acquire row lock: %w", err)
	}
	defer p.release(ctx, rowLease, "schedule", row.ID)

	// 2. Блокировка события: две строки одного события не должны
	// публиковать наперегонки
	eventLease, err := p.locker.TryAcquire(ctx, lock.KeyFor(row.EventID))
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			telemetry.LockContention.Inc()
			p.logger.Debug("event held by another worker", "event_id", row.EventID)
			return rowSkipped, nil
		}
		return rowFailed, fmt.Errorf("acquire event lock: %w", err)
	}
	defer p.release(ctx, eventLease, "event", row.EventID)

	// 3. Загружаем событие
	event, err := p.events.GetByID(ctx, row.EventID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Событие удалили между планированием и публикацией.
			// Гасим строку, иначе она останется due навсегда.
			p.logger.Error("event not found for scheduled publication, retiring row",
				"schedule_id", row.ID,
				"event_id", row.EventID,
			)
			if err := p.schedules.MarkSent(ctx, row.ID); err != nil {
				return rowFailed, fmt.Errorf("mark sent: %w", err)
			}
			return rowRetired, nil
		}
		return rowFailed, fmt.Errorf("get event: %w", err)
	}

	// 4. Событие уже опубликовано — ручной публикацией или гонкой
	// с прошлым тиком. Повторная публикация не нужна.
	if event.HasPublications() {
		p.logger.Debug("event already published, retiring row",
			"schedule_id", row.ID,
			"event_id", event.ID,
		)
		if err := p.schedules.MarkSent(ctx, row.ID); err != nil {
			return rowFailed, fmt.Errorf("mark sent: %w", err)
		}
		return rowRetired, nil
	}

	// 5. Участвующие эскадрильи
	squadrons, err := p.squadrons.ListByIDs(ctx, event.SquadronIDs)
	if err != nil {
		return rowFailed, fmt.Errorf("list squadrons: %w", err)
	}
	if len(squadrons) == 0 {
		// Строка остаётся due: состав события могут дозаполнить
		return rowFailed, fmt.Errorf("event %s has no participating squadrons", event.ID)
	}

	// 6. Направления: одна публикация на уникальную пару (сервер, канал)
	groups, unconfigured := domain.GroupByDestination(squadrons)
	for i := range unconfigured {
		p.logger.Warn("squadron has no configured destination, skipping",
			"event_id", event.ID,
			"squadron_id", unconfigured[i].ID,
			"squadron_name", unconfigured[i].Name,
		)
	}
	if len(groups) == 0 {
		return rowFailed, fmt.Errorf("event %s: no squadron has a configured destination", event.ID)
	}

	content := platform.Message{
		Content: render.Announcement(event, domain.AttendanceCounts{}, p.defaultTimezone(ctx), now),
	}

	// 7. Публикуем по направлениям; сбой одного направления
	// не мешает остальным
	var sent, reused int
	var destErrs []error
	for _, group := range groups {
		isNew, err := p.publishDestination(ctx, event, group, content)
		if err != nil {
			telemetry.PublicationErrors.Inc()
			p.logger.Error("failed to publish to destination",
				"event_id", event.ID,
				"destination", group.Destination.String(),
				"error", err,
			)
			destErrs = append(destErrs, fmt.Errorf("destination %s: %w", group.Destination, err))
			continue
		}
		if isNew {
			sent++
		} else {
			reused++
		}
	}

	if sent+reused == 0 {
		// Ни одно направление не получило анонс — строка остаётся due
		return rowFailed, errors.Join(destErrs...)
	}

	// 8. Напоминания выводятся из настроек один раз, при первой
	// успешной публикации
	p.scheduleReminders(ctx, event, now)

	if err := p.schedules.MarkSent(ctx, row.ID); err != nil {
		destErrs = append(destErrs, fmt.Errorf("mark sent: %w", err))
		return rowFailed, errors.Join(destErrs...)
	}

	p.logger.Info("event published",
		"event_id", event.ID,
		"event_name", event.Name,
		"destinations", len(groups),
		"sent", sent,
		"reused", reused,
	)

	p.notify(ctx, event)

	return rowPublished, errors.Join(destErrs...)
}

// publishDestination публикует анонс в одно направление.
// Возвращает true, если отправлено новое сообщение, и false, если
// направление уже покрыто конкурентной публикацией.
func (p *Processor) publishDestination(ctx context.Context, event *domain.Event, group domain.DestinationGroup, content platform.Message) (bool, error) {
	dest := group.Destination
	log := telemetry.WithEventID(p.logger, event.ID)

	// Fresh check: направление могла занять ручная публикация
	// уже после загрузки события
	existing, err := p.publications.ListByEvent(ctx, event.ID)
	if err != nil {
		return false, fmt.Errorf("fresh publication check: %w", err)
	}
	for i := range existing {
		if existing[i].Destination() == dest {
			log.Debug("destination already published, reusing message",
				"destination", dest.String(),
				"message_id", existing[i].MessageID,
			)
			event.Publications = append(event.Publications, existing[i])
			return false, nil
		}
	}

	messageID, err := p.client.SendMessage(ctx, dest.ServerID, dest.ChannelID, content)
	if err != nil {
		return false, fmt.Errorf("send message: %w", err)
	}

	pub := &domain.Publication{
		ID:         uuid.New(),
		EventID:    event.ID,
		ServerID:   dest.ServerID,
		ChannelID:  dest.ChannelID,
		SquadronID: group.Squadrons[0].ID,
		MessageID:  messageID,
		Thread:     domain.NoThread(),
		CreatedAt:  time.Now(),
	}

	if err := p.publications.Create(ctx, pub); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			// Гонку выиграла конкурентная публикация; наше сообщение —
			// дубль, убираем его best-effort
			log.Warn("lost publication race, removing duplicate message",
				"destination", dest.String(),
				"message_id", messageID,
			)
			if derr := p.client.DeleteMessage(ctx, dest.ChannelID, messageID); derr != nil {
				log.Warn("failed to remove duplicate message",
					"message_id", messageID,
					"error", derr,
				)
			}
			return false, nil
		}
		return false, fmt.Errorf("persist publication: %w", err)
	}

	event.Publications = append(event.Publications, *pub)
	telemetry.PublicationsSent.Inc()

	return true, nil
}

// scheduleReminders выводит строки напоминаний из настроек события.
// Просроченные смещения молча пропускаются; дубликат вида гасится
// уникальностью (event_id, kind). Сбой планирования не отменяет
// публикацию: повторный заход строки сюда уже не попадёт.
func (p *Processor) scheduleReminders(ctx context.Context, event *domain.Event, now time.Time) {
	offsets := []struct {
		kind domain.ReminderKind
		off  *domain.ReminderOffset
	}{
		{domain.ReminderFirst, event.Settings.FirstReminder},
		{domain.ReminderSecond, event.Settings.SecondReminder},
	}

	log := telemetry.WithEventID(p.logger, event.ID)
	for _, o := range offsets {
		if o.off == nil {
			continue
		}

		rem := domain.NewReminder(event, o.kind, *o.off, now)
		if rem == nil {
			log.Debug("reminder time already passed, not scheduling", "kind", o.kind)
			continue
		}

		if err := p.reminders.Create(ctx, rem); err != nil {
			if errors.Is(err, repo.ErrAlreadyExists) {
				continue
			}
			log.Error("failed to schedule reminder", "kind", o.kind, "error", err)
		}
	}
}

// notify сообщает о свежей публикации счётчику обратного отсчёта
// и соседним процессам через MQ. Оба получателя опциональны; ошибки
// не фатальны — публикация уже зафиксирована в хранилище, и таймеры
// подхватят её при следующей пересборке расписания.
func (p *Processor) notify(ctx context.Context, event *domain.Event) {
	log := telemetry.WithEventID(p.logger, event.ID)

	if p.countdown != nil {
		if err := p.countdown.AddEvent(ctx, event.ID); err != nil {
			log.Warn("failed to schedule countdown timers", "error", err)
		}
	}

	if p.publisher != nil {
		if err := p.publisher.PublishEventPublished(ctx, event.ID, event.MessageIDs()); err != nil {
			log.Warn("failed to publish event.published", "error", err)
		}
	}
}

// defaultTimezone возвращает общий часовой пояс движка.
func (p *Processor) defaultTimezone(ctx context.Context) string {
	settings, err := p.settings.Get(ctx)
	if err != nil {
		p.logger.Warn("failed to load engine settings", "error", err)
		return domain.DefaultEngineSettings().DefaultTimezone
	}
	return settings.DefaultTimezone
}

// release отпускает блокировку; сбой логируется, но не фатален.
func (p *Processor) release(ctx context.Context, lease lock.Lease, kind string, id uuid.UUID) {
	if err := lease.Release(ctx); err != nil {
		p.logger.Warn("failed to release lock",
			"kind", kind,
			"id", id,
			"error", err,
		)
	}
}
