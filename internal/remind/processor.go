// Package remind — процессор напоминаний: рассылает due напоминания
// участникам события по направлениям публикаций, в тред или в канал.
package remind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/sortie/internal/domain"
	"github.com/shaiso/sortie/internal/lock"
	"github.com/shaiso/sortie/internal/platform"
	"github.com/shaiso/sortie/internal/recipients"
	"github.com/shaiso/sortie/internal/render"
	"github.com/shaiso/sortie/internal/repo"
	"github.com/shaiso/sortie/internal/telemetry"
)

// ReminderStore — строки расписания напоминаний.
type ReminderStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Reminder, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// EventStore — чтение событий.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)
}

// PublicationStore — точечное обогащение публикаций.
type PublicationStore interface {
	SetThread(ctx context.Context, id uuid.UUID, state domain.ThreadState) error
	AddReminderMessageID(ctx context.Context, id uuid.UUID, messageID string) error
}

// SquadronStore — чтение эскадрилий.
type SquadronStore interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Squadron, error)
}

// RecipientResolver — резолюция получателей напоминания.
type RecipientResolver interface {
	Resolve(ctx context.Context, event *domain.Event, filters []domain.Response) (*recipients.Result, error)
}

// Processor — процессор напоминаний.
type Processor struct {
	reminders    ReminderStore
	events       EventStore
	publications PublicationStore
	squadrons    SquadronStore
	resolver     RecipientResolver
	client       platform.Client
	locker       lock.Locker
	logger       *slog.Logger
	batchSize    int
}

// Config — конфигурация Processor.
type Config struct {
	Reminders    ReminderStore
	Events       EventStore
	Publications PublicationStore
	Squadrons    SquadronStore
	Resolver     RecipientResolver
	Client       platform.Client
	Locker       lock.Locker
	Logger       *slog.Logger
	BatchSize    int // напоминаний за один тик (default: 100)
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
		reminders:    cfg.Reminders,
		events:       cfg.Events,
		publications: cfg.Publications,
		squadrons:    cfg.Squadrons,
		resolver:     cfg.Resolver,
		client:       cfg.Client,
		locker:       cfg.Locker,
		logger:       logger,
		batchSize:    batchSize,
	}
}

// reminderOutcome — исход обработки одного напоминания.
type reminderOutcome int

const (
	// reminderFailed — напоминание не обработано, останется due.
	reminderFailed reminderOutcome = iota

	// reminderSkipped — напоминание или его событие держит другой воркер.
	reminderSkipped

	// reminderRetired — погашено без рассылки (событие удалено,
	// неактивно или некому напоминать).
	reminderRetired

	// reminderSent — рассылка выполнена, напоминание погашено.
	reminderSent
)

// Tick выполняет один проход процессора напоминаний.
//
// 1. Находит due напоминания (sent=false, scheduled_at <= now)
// 2. Для каждого берёт блокировки строки и события
// 3. Вычисляет получателей и раскладывает их по направлениям
// 4. Рассылает, решив судьбу треда события
// 5. Гасит напоминание после всех попыток: неудачные доставки
//    логируются, но не повторяются
//
// Наружу возвращаются только ошибки, оставившие строку due;
// они не блокируют обработку остальных напоминаний.
func (p *Processor) Tick(ctx context.Context) error {
	now := time.Now()

	rows, err := p.reminders.ListDue(ctx, now, p.batchSize)
	if err != nil {
		return fmt.Errorf("list due reminders: %w", err)
	}

	if len(rows) == 0 {
		return nil
	}

	p.logger.Debug("found due reminders", "count", len(rows))

	var sent, retired, skipped, failed int
	var rowErrs []error
	for i := range rows {
		rem := &rows[i]

		outcome, err := p.processReminder(ctx, rem, now)
		if err != nil {
			p.logger.Error("failed to process reminder",
				"reminder_id", rem.ID,
				"event_id", rem.EventID,
				"error", err,
			)
			rowErrs = append(rowErrs, fmt.Errorf("reminder %s: %w", rem.ID, err))
		}

		switch outcome {
		case reminderSent:
			sent++
		case reminderRetired:
			retired++
		case reminderSkipped:
			skipped++
		case reminderFailed:
			failed++
		}
	}

	p.logger.Info("reminder tick completed",
		"due", len(rows),
		"sent", sent,
		"retired", retired,
		"skipped", skipped,
		"failed", failed,
	)

	return errors.Join(rowErrs...)
}

// processReminder обрабатывает одно напоминание.
func (p *Processor) processReminder(ctx context.Context, rem *domain.Reminder, now time.Time) (reminderOutcome, error) {
	// Блокировка строки: ровно один воркер на напоминание
	rowLease, err := p.locker.TryAcquire(ctx, lock.KeyFor(rem.ID))
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			telemetry.LockContention.Inc()
			p.logger.Debug("reminder held by another worker", "reminder_id", rem.ID)
			return reminderSkipped, nil
		}
		return reminderFailed, fmt.Errorf("acquire row lock: %w", err)
	}
	defer p.release(ctx, rowLease, "reminder", rem.ID)

	// Блокировка события: рассылка не должна пересекаться
	// с публикацией и вторым напоминанием того же события
	eventLease, err := p.locker.TryAcquire(ctx, lock.KeyFor(rem.EventID))
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			telemetry.LockContention.Inc()
			p.logger.Debug("event held by another worker", "event_id", rem.EventID)
			return reminderSkipped, nil
		}
		return reminderFailed, fmt.Errorf("acquire event lock: %w", err)
	}
	defer p.release(ctx, eventLease, "event", rem.EventID)

	// 1. Событие
	event, err := p.events.GetByID(ctx, rem.EventID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			p.logger.Error("event not found for reminder, retiring",
				"reminder_id", rem.ID,
				"event_id", rem.EventID,
			)
			return p.retire(ctx, rem)
		}
		return reminderFailed, fmt.Errorf("get event: %w", err)
	}

	// Отменённые и завершённые события не напоминаются
	if !event.Status.IsActive() {
		p.logger.Info("event is no longer active, retiring reminder",
			"reminder_id", rem.ID,
			"event_id", event.ID,
			"status", event.Status,
		)
		return p.retire(ctx, rem)
	}

	if !event.HasPublications() {
		p.logger.Warn("event has no publications, nowhere to remind",
			"reminder_id", rem.ID,
			"event_id", event.ID,
		)
		return p.retire(ctx, rem)
	}

	// 2-4. Получатели по фильтрам ответов напоминания
	filters := rem.Responses()
	if len(filters) == 0 {
		p.logger.Info("reminder has no notify groups, retiring",
			"reminder_id", rem.ID,
			"event_id", event.ID,
		)
		return p.retire(ctx, rem)
	}

	res, err := p.resolver.Resolve(ctx, event, filters)
	if err != nil {
		return reminderFailed, fmt.Errorf("resolve recipients: %w", err)
	}

	telemetry.ReminderRecipients.Observe(float64(len(res.Recipients)))

	if len(res.Recipients) == 0 {
		p.logger.Info("no recipients for reminder, retiring",
			"reminder_id", rem.ID,
			"event_id", event.ID,
			"before_active_filter", res.BeforeActiveFilter,
		)
		return p.retire(ctx, rem)
	}

	// 5. Текст общий, упоминания — свои на направление
	body := render.ReminderBody(event, now)

	// 6. Направления из эскадрилий события
	squadrons, err := p.squadrons.ListByIDs(ctx, event.SquadronIDs)
	if err != nil {
		return reminderFailed, fmt.Errorf("list squadrons: %w", err)
	}
	groups, _ := domain.GroupByDestination(squadrons)

	plan := buildDispatchPlan(event, groups, res.Recipients)
	if len(plan.dispatches) == 0 && len(plan.orphans) == 0 {
		p.logger.Warn("no dispatchable destinations for reminder, retiring",
			"reminder_id", rem.ID,
			"event_id", event.ID,
		)
		return p.retire(ctx, rem)
	}

	// 7. Судьба треда решается один раз на событие
	target := p.resolveThread(ctx, event, squadrons)

	// 8. Рассылка по направлениям
	var delivered, failed int
	for _, d := range plan.dispatches {
		if err := p.dispatch(ctx, d.pub, d.identities, body, target); err != nil {
			failed++
			p.logger.Error("failed to dispatch reminder",
				"reminder_id", rem.ID,
				"destination", d.pub.Destination().String(),
				"error", err,
			)
			continue
		}
		delivered++
	}

	// 9. Сироты — получатели без направления — получают одну
	// рассылку в направление первого анонса
	if len(plan.orphans) > 0 {
		first := event.FirstPublication()
		if err := p.dispatch(ctx, first, plan.orphans, body, target); err != nil {
			failed++
			p.logger.Error("failed to dispatch orphan reminder",
				"reminder_id", rem.ID,
				"destination", first.Destination().String(),
				"error", err,
			)
		} else {
			delivered++
		}
	}

	p.logger.Info("reminder processed",
		"reminder_id", rem.ID,
		"event_id", event.ID,
		"kind", rem.Kind,
		"recipients", len(res.Recipients),
		"delivered", delivered,
		"failed", failed,
	)

	// 10. Гасим после всех попыток: доставка не повторяется
	if err := p.reminders.MarkSent(ctx, rem.ID); err != nil {
		return reminderFailed, fmt.Errorf("mark sent: %w", err)
	}
	return reminderSent, nil
}

// retire гасит напоминание без рассылки.
func (p *Processor) retire(ctx context.Context, rem *domain.Reminder) (reminderOutcome, error) {
	if err := p.reminders.MarkSent(ctx, rem.ID); err != nil {
		return reminderFailed, fmt.Errorf("mark sent: %w", err)
	}
	return reminderRetired, nil
}

// dispatch — одна отправка напоминания в направление публикации pub:
// в тред события, если он есть, иначе в канал. Отправленное в канал
// сообщение записывается в reminder_message_ids публикации для
// зачистки при удалении события; сообщения треда зачищаются вместе
// с тредом.
func (p *Processor) dispatch(ctx context.Context, pub *domain.Publication, identities []string, body string, target threadTarget) error {
	content := platform.Message{Content: body}
	if m := render.Mentions(identities); m != "" {
		content.Content = body + "\n" + m
	}

	if target.ok {
		p.propagateThread(ctx, pub, target.id)
		if _, err := p.client.PostToThread(ctx, target.id, content); err != nil {
			return fmt.Errorf("post to thread: %w", err)
		}
		telemetry.RemindersSent.Inc()
		return nil
	}

	msgID, err := p.client.SendMessage(ctx, pub.ServerID, pub.ChannelID, content)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	telemetry.RemindersSent.Inc()

	if err := p.publications.AddReminderMessageID(ctx, pub.ID, msgID); err != nil {
		// Сообщение уже ушло; незаписанный id лишь выпадет
		// из зачистки при удалении события
		p.logger.Warn("failed to record reminder message",
			"publication_id", pub.ID,
			"message_id", msgID,
			"error", err,
		)
	}
	return nil
}

// dispatchPlan — раскладка получателей по направлениям рассылки.
type dispatchPlan struct {
	dispatches []dispatchUnit

	// orphans — identity, не накрытые ни одним направлением:
	// их эскадрильи не имеют ни настроенного канала, ни публикации.
	orphans []string
}

// dispatchUnit — одно направление и его получатели.
type dispatchUnit struct {
	pub        *domain.Publication
	identities []string
}

// buildDispatchPlan раскладывает получателей по направлениям.
// Направление участвует в рассылке, только если несёт публикацию
// события и собрало хотя бы одного получателя; получатель, состоящий
// в эскадрильях двух направлений, получает упоминание в обоих.
func buildDispatchPlan(event *domain.Event, groups []domain.DestinationGroup, recips []recipients.Recipient) dispatchPlan {
	var plan dispatchPlan
	covered := make(map[string]bool, len(recips))

	for _, group := range groups {
		pub := event.PublicationAt(group.Destination)
		if pub == nil {
			// Эскадрилью добавили после публикации: её получатели
			// уйдут через fallback первого анонса
			continue
		}

		inGroup := make(map[uuid.UUID]bool, len(group.Squadrons))
		for i := range group.Squadrons {
			inGroup[group.Squadrons[i].ID] = true
		}

		var identities []string
		for _, r := range recips {
			for _, sqID := range r.SquadronIDs {
				if inGroup[sqID] {
					identities = append(identities, r.Identity)
					covered[r.Identity] = true
					break
				}
			}
		}

		if len(identities) == 0 {
			continue
		}
		plan.dispatches = append(plan.dispatches, dispatchUnit{pub: pub, identities: identities})
	}

	for _, r := range recips {
		if !covered[r.Identity] {
			plan.orphans = append(plan.orphans, r.Identity)
		}
	}

	return plan
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
