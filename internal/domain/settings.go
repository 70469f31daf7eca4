package domain

import "time"

// EngineSettings — общие настройки хранилища (одна строка на инсталляцию).
type EngineSettings struct {
	// DefaultTimezone — часовой пояс по умолчанию для событий
	// без собственного пояса.
	DefaultTimezone string `json:"default_timezone"`

	// CountdownEnabled — вести живой обратный отсчёт на анонсах.
	CountdownEnabled bool `json:"countdown_enabled"`

	// UpdatedAt — время последнего изменения настроек.
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultEngineSettings возвращает настройки по умолчанию.
func DefaultEngineSettings() EngineSettings {
	return EngineSettings{
		DefaultTimezone:  "UTC",
		CountdownEnabled: true,
	}
}
