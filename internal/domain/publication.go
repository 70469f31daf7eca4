package domain

import (
	"time"

	"github.com/google/uuid"
)

// Publication — запись о публикации события в конкретном направлении
// (сервер + канал). Авторитетный след доставки: по нему определяется,
// куда событие уже отправлено, к какому сообщению привязан тред
// и какие напоминания были разосланы.
type Publication struct {
	// ID — уникальный идентификатор публикации.
	ID uuid.UUID `json:"id"`

	// EventID — ссылка на событие.
	EventID uuid.UUID `json:"event_id"`

	// ServerID и ChannelID — направление публикации.
	ServerID  string `json:"server_id"`
	ChannelID string `json:"channel_id"`

	// SquadronID — "первый автор": первая эскадрилья направления.
	// Несколько эскадрилий одного канала делят одну публикацию.
	SquadronID uuid.UUID `json:"squadron_id"`

	// MessageID — идентификатор отправленного сообщения-анонса.
	MessageID string `json:"message_id"`

	// Thread — состояние треда публикации.
	Thread ThreadState `json:"-"`

	// ReminderMessageIDs — идентификаторы разосланных напоминаний.
	// Нужны для зачистки при удалении события.
	ReminderMessageIDs []string `json:"reminder_message_ids,omitempty"`

	// CreatedAt — время публикации.
	CreatedAt time.Time `json:"created_at"`
}

// Destination возвращает направление публикации.
func (p *Publication) Destination() Destination {
	return Destination{ServerID: p.ServerID, ChannelID: p.ChannelID}
}

// ScheduledPublication — строка расписания: событие, которое нужно
// опубликовать в момент ScheduledAt. Обрабатывается процессором
// публикаций; sent выставляется, когда хотя бы одно направление
// получило анонс (или публиковать уже нечего). Строка без единой
// успешной доставки остаётся due и повторяется на следующем тике.
type ScheduledPublication struct {
	// ID — уникальный идентификатор строки расписания.
	ID uuid.UUID `json:"id"`

	// EventID — ссылка на событие.
	EventID uuid.UUID `json:"event_id"`

	// ScheduledAt — момент, начиная с которого строка считается due.
	ScheduledAt time.Time `json:"scheduled_at"`

	// Sent — строка обработана (независимо от исхода доставки).
	Sent bool `json:"sent"`

	// CreatedAt — время создания строки.
	CreatedAt time.Time `json:"created_at"`
}

// IsDue возвращает true, если строка подлежит обработке в момент now.
func (s *ScheduledPublication) IsDue(now time.Time) bool {
	return !s.Sent && !s.ScheduledAt.After(now)
}
