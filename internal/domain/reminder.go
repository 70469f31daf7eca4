package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReminderKind — вид напоминания. У события может быть не более
// одного напоминания каждого вида.
type ReminderKind string

const (
	// ReminderFirst — первое (дальнее) напоминание.
	ReminderFirst ReminderKind = "FIRST"

	// ReminderSecond — второе (ближнее) напоминание.
	ReminderSecond ReminderKind = "SECOND"
)

// Reminder — строка расписания напоминаний: в момент ScheduledAt
// участникам события рассылается пинг с актуальной посещаемостью.
//
// Флаги Notify* копируются из настроек события при публикации:
// дальнейшие правки настроек на уже запланированные напоминания
// не влияют.
type Reminder struct {
	// ID — уникальный идентификатор напоминания.
	ID uuid.UUID `json:"id"`

	// EventID — ссылка на событие.
	EventID uuid.UUID `json:"event_id"`

	// Kind — вид напоминания (первое или второе).
	Kind ReminderKind `json:"kind"`

	// ScheduledAt — момент, начиная с которого напоминание due.
	ScheduledAt time.Time `json:"scheduled_at"`

	// NotifyAccepted, NotifyTentative, NotifyDeclined, NotifyNoResponse —
	// какие группы ответивших пингуются этим напоминанием.
	NotifyAccepted   bool `json:"notify_accepted"`
	NotifyTentative  bool `json:"notify_tentative"`
	NotifyDeclined   bool `json:"notify_declined"`
	NotifyNoResponse bool `json:"notify_no_response"`

	// Sent — напоминание обработано (независимо от исхода доставки).
	Sent bool `json:"sent"`

	// CreatedAt — время создания строки.
	CreatedAt time.Time `json:"created_at"`
}

// IsDue возвращает true, если напоминание подлежит обработке в момент now.
func (r *Reminder) IsDue(now time.Time) bool {
	return !r.Sent && !r.ScheduledAt.After(now)
}

// Responses возвращает набор групп ответивших, которые пингуются
// этим напоминанием, в фиксированном порядке.
func (r *Reminder) Responses() []Response {
	out := make([]Response, 0, 4)
	if r.NotifyAccepted {
		out = append(out, ResponseAccepted)
	}
	if r.NotifyTentative {
		out = append(out, ResponseTentative)
	}
	if r.NotifyDeclined {
		out = append(out, ResponseDeclined)
	}
	if r.NotifyNoResponse {
		out = append(out, ResponseNone)
	}
	return out
}

// NewReminder создаёт напоминание вида kind для события event
// со смещением off. Возвращает nil, если расчётное время уже в прошлом:
// просроченные напоминания не планируются.
func NewReminder(event *Event, kind ReminderKind, off ReminderOffset, now time.Time) *Reminder {
	at := off.ReminderAt(event.StartAt)
	if !at.After(now) {
		return nil
	}
	return &Reminder{
		ID:               uuid.New(),
		EventID:          event.ID,
		Kind:             kind,
		ScheduledAt:      at,
		NotifyAccepted:   event.Settings.NotifyAccepted,
		NotifyTentative:  event.Settings.NotifyTentative,
		NotifyDeclined:   event.Settings.NotifyDeclined,
		NotifyNoResponse: event.Settings.NotifyNoResponse,
		CreatedAt:        now,
	}
}
