// Package platform — клиент шлюза мессенджера.
//
// Сам шлюз (подключение к Discord-подобной платформе, кнопки отметок,
// вебхуки) живёт в отдельном сервисе; движку от него нужны только
// отправка, правка и удаление сообщений плюс операции с тредами.
// Пакет отдаёт интерфейс Client, HTTP-реализацию и in-memory фейк
// для тестов и локального запуска.
package platform

import "context"

// Message — содержимое сообщения.
type Message struct {
	Content string `json:"content"`
}

// Client — операции шлюза, которыми пользуется движок.
type Client interface {
	// SendMessage отправляет сообщение в канал, возвращает его ID.
	SendMessage(ctx context.Context, serverID, channelID string, msg Message) (string, error)

	// EditMessage заменяет содержимое сообщения.
	EditMessage(ctx context.Context, channelID, messageID string, msg Message) error

	// DeleteMessage удаляет сообщение.
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// CreateThread создаёт тред от сообщения, возвращает ID треда.
	// Если тред уже есть — ErrThreadExists.
	CreateThread(ctx context.Context, channelID, messageID, name string) (string, error)

	// ThreadForMessage возвращает ID существующего треда сообщения.
	ThreadForMessage(ctx context.Context, channelID, messageID string) (string, error)

	// PostToThread отправляет сообщение в тред, возвращает его ID.
	PostToThread(ctx context.Context, threadID string, msg Message) (string, error)

	// DeleteThread удаляет тред вместе с содержимым.
	DeleteThread(ctx context.Context, threadID string) error
}
