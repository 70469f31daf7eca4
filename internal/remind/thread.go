package remind

import (
	"context"
	"errors"

	"github.com/shaiso/sortie/internal/domain"
	"github.com/shaiso/sortie/internal/platform"
	"github.com/shaiso/sortie/internal/render"
)

// threadTarget — решение, куда уходят напоминания события.
type threadTarget struct {
	id string
	ok bool
}

// resolveThread решает судьбу треда события перед рассылкой.
//
// Тред общий для события: создаётся от первого анонса, напоминания
// всех направлений идут в него. Переходы:
//
//	нет треда → создан    — политика разрешила, тред создан
//	нет треда → отключён  — платформа запретила; sticky, повторных
//	                        попыток создания не делается
//	отключён  → создан    — разовая попытка найти тред, появившийся
//	                        у анонса помимо нас
//	создан    → создан    — переиспользуется
//
// При любом отказе напоминания уходят в каналы публикаций.
func (p *Processor) resolveThread(ctx context.Context, event *domain.Event, squadrons []domain.Squadron) threadTarget {
	// Рабочий тред уже есть
	if id, ok := event.ThreadID(); ok {
		return threadTarget{id: id, ok: true}
	}

	first := event.FirstPublication()

	// Отключён: одна попытка восстановления — вдруг тред у анонса
	// всё же появился, создан вручную или прошлой гонкой
	if event.ThreadsDisabled() {
		id, err := p.client.ThreadForMessage(ctx, first.ChannelID, first.MessageID)
		if err != nil {
			return threadTarget{}
		}
		p.logger.Info("recovered existing thread for event",
			"event_id", event.ID,
			"thread_id", id,
		)
		p.persistThreadAll(ctx, event, domain.ThreadCreated(id))
		return threadTarget{id: id, ok: true}
	}

	// Треда не было: спрашиваем политику
	if !threadingEnabled(event, squadrons) {
		return threadTarget{}
	}

	id, err := p.client.CreateThread(ctx, first.ChannelID, first.MessageID, render.ThreadName(event))
	switch {
	case err == nil:
		p.logger.Info("created reminder thread",
			"event_id", event.ID,
			"thread_id", id,
		)
		p.persistThreadAll(ctx, event, domain.ThreadCreated(id))
		return threadTarget{id: id, ok: true}

	case errors.Is(err, platform.ErrThreadExists):
		// Тред уже создан кем-то ещё — забираем его
		existing, lookupErr := p.client.ThreadForMessage(ctx, first.ChannelID, first.MessageID)
		if lookupErr != nil {
			p.logger.Warn("thread exists but lookup failed, falling back to channel",
				"event_id", event.ID,
				"error", lookupErr,
			)
			return threadTarget{}
		}
		p.persistThreadAll(ctx, event, domain.ThreadCreated(existing))
		return threadTarget{id: existing, ok: true}

	default:
		// Платформа запретила тред — фиксируем отказ навсегда
		p.logger.Warn("thread creation failed, disabling threads for event",
			"event_id", event.ID,
			"error", err,
		)
		p.persistThreadAll(ctx, event, domain.ThreadDisabled())
		return threadTarget{}
	}
}

// persistThreadAll записывает состояние треда во все публикации
// события — и в хранилище, и в загруженный снимок. Сбой записи не
// прерывает рассылку: состояние доедет со следующим напоминанием.
func (p *Processor) persistThreadAll(ctx context.Context, event *domain.Event, state domain.ThreadState) {
	for i := range event.Publications {
		pub := &event.Publications[i]
		if pub.Thread == state {
			continue
		}
		if err := p.publications.SetThread(ctx, pub.ID, state); err != nil {
			p.logger.Warn("failed to persist thread state",
				"publication_id", pub.ID,
				"error", err,
			)
			continue
		}
		pub.Thread = state
	}
}

// propagateThread дописывает threadId в публикацию направления,
// если его там ещё нет.
func (p *Processor) propagateThread(ctx context.Context, pub *domain.Publication, threadID string) {
	if _, ok := pub.Thread.Created(); ok {
		return
	}
	if err := p.publications.SetThread(ctx, pub.ID, domain.ThreadCreated(threadID)); err != nil {
		p.logger.Warn("failed to propagate thread id",
			"publication_id", pub.ID,
			"error", err,
		)
		return
	}
	pub.Thread = domain.ThreadCreated(threadID)
}

// threadingEnabled возвращает true, если тред разрешён и настройками
// события, и каждой участвующей эскадрильей.
func threadingEnabled(event *domain.Event, squadrons []domain.Squadron) bool {
	if !event.Settings.UseThreads {
		return false
	}
	if len(squadrons) == 0 {
		return false
	}
	for i := range squadrons {
		if !squadrons[i].AllowThreads {
			return false
		}
	}
	return true
}
