package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event — событие эскадрильи (вылет, тренировка, брифинг).
//
// События создаются веб-интерфейсом и публикуются этим движком
// в каналы участвующих эскадрилий. Список Publications — авторитетная
// запись всех мест, куда событие было отправлено: append-only,
// кроме точечного обогащения thread_id и reminder_message_ids.
type Event struct {
	// ID — уникальный идентификатор события.
	ID uuid.UUID `json:"id"`

	// Name — название события (например, "Operation Clear Field").
	Name string `json:"name"`

	// Description — описание события для анонса.
	Description string `json:"description"`

	// StartAt — время начала события (UTC).
	StartAt time.Time `json:"start_at"`

	// EndAt — время окончания события (UTC).
	EndAt time.Time `json:"end_at"`

	// Status — текущий статус жизненного цикла.
	Status EventStatus `json:"status"`

	// Settings — настройки уведомлений и оформления.
	Settings EventSettings `json:"settings"`

	// SquadronIDs — участвующие эскадрильи в порядке добавления.
	// Порядок важен: первая эскадрилья направления становится
	// "первым автором" общей публикации.
	SquadronIDs []uuid.UUID `json:"squadron_ids"`

	// Publications — упорядоченный список публикаций события.
	// Append-only; инвариант: не более одной публикации на пару
	// (server_id, channel_id).
	Publications []Publication `json:"publications,omitempty"`

	// CreatedAt — время создания события.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// EventSettings — настройки уведомлений события.
type EventSettings struct {
	// Timezone — часовой пояс для отображения времени.
	// Пустое значение — используется общий пояс из settings store.
	Timezone string `json:"timezone,omitempty"`

	// UseThreads — вести обсуждение напоминаний в треде,
	// а не в самом канале.
	UseThreads bool `json:"use_threads"`

	// NotifyAccepted, NotifyTentative, NotifyDeclined, NotifyNoResponse —
	// какие группы ответивших получают напоминания по умолчанию.
	// Копируются в Reminder при публикации.
	NotifyAccepted   bool `json:"notify_accepted"`
	NotifyTentative  bool `json:"notify_tentative"`
	NotifyDeclined   bool `json:"notify_declined"`
	NotifyNoResponse bool `json:"notify_no_response"`

	// FirstReminder — смещение первого напоминания от начала события.
	// Nil — напоминание не создаётся.
	FirstReminder *ReminderOffset `json:"first_reminder,omitempty"`

	// SecondReminder — смещение второго напоминания.
	SecondReminder *ReminderOffset `json:"second_reminder,omitempty"`
}

// ReminderOffset — смещение напоминания от начала события,
// например {Value: 15, Unit: "minutes"} или {Value: 3, Unit: "days"}.
type ReminderOffset struct {
	Value int          `json:"value"`
	Unit  ReminderUnit `json:"unit"`
}

// ReminderUnit — единица измерения смещения напоминания.
type ReminderUnit string

const (
	UnitMinutes ReminderUnit = "minutes"
	UnitHours   ReminderUnit = "hours"
	UnitDays    ReminderUnit = "days"
	UnitWeeks   ReminderUnit = "weeks"
)

// Duration переводит смещение в time.Duration.
// Неизвестная единица трактуется как минуты.
func (o ReminderOffset) Duration() time.Duration {
	v := time.Duration(o.Value)
	switch o.Unit {
	case UnitHours:
		return v * time.Hour
	case UnitDays:
		return v * 24 * time.Hour
	case UnitWeeks:
		return v * 7 * 24 * time.Hour
	default:
		return v * time.Minute
	}
}

// ReminderAt возвращает время срабатывания напоминания
// для события, начинающегося в start.
func (o ReminderOffset) ReminderAt(start time.Time) time.Time {
	return start.Add(-o.Duration())
}

// HasPublications возвращает true, если событие уже куда-то опубликовано.
func (e *Event) HasPublications() bool {
	return len(e.Publications) > 0
}

// PublicationAt возвращает публикацию события в указанном направлении.
func (e *Event) PublicationAt(dest Destination) *Publication {
	for i := range e.Publications {
		if e.Publications[i].Destination() == dest {
			return &e.Publications[i]
		}
	}
	return nil
}

// FirstPublication возвращает первую (самую раннюю) публикацию.
// Используется как fallback-направление и как сообщение,
// от которого создаётся тред.
func (e *Event) FirstPublication() *Publication {
	if len(e.Publications) == 0 {
		return nil
	}
	return &e.Publications[0]
}

// MessageIDs возвращает идентификаторы всех опубликованных сообщений.
// По ним привязываются записи посещаемости.
func (e *Event) MessageIDs() []string {
	ids := make([]string, 0, len(e.Publications))
	for i := range e.Publications {
		ids = append(ids, e.Publications[i].MessageID)
	}
	return ids
}

// ThreadID возвращает идентификатор треда события, если хотя бы
// одна публикация несёт рабочий тред.
func (e *Event) ThreadID() (string, bool) {
	for i := range e.Publications {
		if id, ok := e.Publications[i].Thread.Created(); ok {
			return id, true
		}
	}
	return "", false
}

// ThreadsDisabled возвращает true, если для события зафиксирован
// отказ от тредов (sticky-состояние, не повторяется).
func (e *Event) ThreadsDisabled() bool {
	for i := range e.Publications {
		if e.Publications[i].Thread.Disabled() {
			return true
		}
	}
	return false
}

// Timezone возвращает часовой пояс события с fallback на заданный
// общий пояс хранилища.
func (e *Event) Timezone(fallback string) *time.Location {
	name := e.Settings.Timezone
	if name == "" {
		name = fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
