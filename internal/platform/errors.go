package platform

import "errors"

// Ошибки шлюза платформы. Процессоры различают их через errors.Is:
// часть означает "пропустить и жить дальше", часть — реальный сбой.
var (
	// ErrForbidden — у бота нет прав на операцию в этом канале.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound — сообщение, канал или тред не существует.
	// Для правок это штатная ситуация: сообщение могли удалить руками.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited — платформа временно отбивает запросы.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalid — запрос отвергнут как некорректный.
	ErrInvalid = errors.New("invalid request")

	// ErrThreadExists — у сообщения уже есть тред. Вызывающий
	// подхватывает существующий через ThreadForMessage.
	ErrThreadExists = errors.New("thread already exists")
)
