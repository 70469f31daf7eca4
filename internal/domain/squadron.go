package domain

import (
	"time"

	"github.com/google/uuid"
)

// Squadron — эскадрилья: группа участников с собственным каналом
// для анонсов. У эскадрильи может не быть настроенного направления —
// тогда публикации для неё пропускаются, но её участники всё равно
// получают напоминания.
type Squadron struct {
	// ID — уникальный идентификатор эскадрильи.
	ID uuid.UUID `json:"id"`

	// Name — название эскадрильи.
	Name string `json:"name"`

	// ServerID и ChannelID — направление публикаций эскадрильи.
	// Пустые значения — направление не настроено.
	ServerID  string `json:"server_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`

	// AllowThreads — эскадрилья разрешает вести напоминания в тредах.
	// Тред создаётся, только если это разрешили все эскадрильи события.
	AllowThreads bool `json:"allow_threads"`

	// Active — эскадрилья действующая.
	Active bool `json:"active"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// HasDestination возвращает true, если у эскадрильи настроен канал.
func (s *Squadron) HasDestination() bool {
	return s.ServerID != "" && s.ChannelID != ""
}

// Destination возвращает направление публикаций эскадрильи.
func (s *Squadron) Destination() Destination {
	return Destination{ServerID: s.ServerID, ChannelID: s.ChannelID}
}

// Member — участник эскадрильи.
type Member struct {
	// SquadronID — ссылка на эскадрилью.
	SquadronID uuid.UUID `json:"squadron_id"`

	// Identity — платформенный идентификатор участника.
	Identity string `json:"identity"`

	// DisplayName — отображаемое имя.
	DisplayName string `json:"display_name"`

	// Active — участник действующий. Неактивные не получают
	// напоминаний, но их прошлые отметки остаются в истории.
	Active bool `json:"active"`
}
