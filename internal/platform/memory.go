package platform

import (
	"context"
	"fmt"
	"sync"
)

// Операции MemoryClient для точечной инъекции ошибок в тестах.
const (
	OpSend         = "send"
	OpEdit         = "edit"
	OpDelete       = "delete"
	OpCreateThread = "thread.create"
	OpGetThread    = "thread.get"
	OpPostThread   = "thread.post"
	OpDeleteThread = "thread.delete"
)

// MemoryMessage — сообщение, отправленное через MemoryClient.
type MemoryMessage struct {
	ID        string
	ServerID  string
	ChannelID string
	ThreadID  string
	Content   string
	Edits     int
}

// MemoryClient — Client в памяти процесса. Для тестов и локального
// запуска без шлюза: хранит сообщения и треды, позволяет подставлять
// ошибки на конкретные операции.
type MemoryClient struct {
	mu              sync.Mutex
	nextID          int
	messages        map[string]*MemoryMessage
	threads         map[string]bool
	threadByMessage map[string]string
	failures        map[string]error
}

// NewMemoryClient создаёт новый MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		messages:        make(map[string]*MemoryMessage),
		threads:         make(map[string]bool),
		threadByMessage: make(map[string]string),
		failures:        make(map[string]error),
	}
}

// FailWith подставляет ошибку для операции op над целью target
// (канал, сообщение или тред — что передаётся операции первым).
func (c *MemoryClient) FailWith(op, target string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op+"/"+target] = err
}

// SendMessage отправляет сообщение в канал.
func (c *MemoryClient) SendMessage(_ context.Context, serverID, channelID string, msg Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.failures[OpSend+"/"+channelID]; err != nil {
		return "", err
	}

	id := c.newID("msg")
	c.messages[id] = &MemoryMessage{
		ID:        id,
		ServerID:  serverID,
		ChannelID: channelID,
		Content:   msg.Content,
	}
	return id, nil
}

// EditMessage заменяет содержимое сообщения.
func (c *MemoryClient) EditMessage(_ context.Context, channelID, messageID string, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.failures[OpEdit+"/"+messageID]; err != nil {
		return err
	}

	m, ok := c.messages[messageID]
	if !ok {
		return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	m.Content = msg.Content
	m.Edits++
	return nil
}

// DeleteMessage удаляет сообщение.
func (c *MemoryClient) DeleteMessage(_ context.Context, channelID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.failures[OpDelete+"/"+messageID]; err != nil {
		return err
	}
	if _, ok := c.messages[messageID]; !ok {
		return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	delete(c.messages, messageID)
	return nil
}

// CreateThread создаёт тред от сообщения.
func (c *MemoryClient) CreateThread(_ context.Context, channelID, messageID, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.failures[OpCreateThread+"/"+channelID]; err != nil {
		return "", err
	}
	if _, ok := c.messages[messageID]; !ok {
		return "", fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	if id, ok := c.threadByMessage[messageID]; ok {
		return "", fmt.Errorf("%w: thread %s", ErrThreadExists, id)
	}

	id := c.newID("thread")
	c.threads[id] = true
	c.threadByMessage[messageID] = id
	return id, nil
}

// ThreadForMessage возвращает существующий тред сообщения.
func (c *MemoryClient) ThreadForMessage(_ context.Context, channelID, messageID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.failures[OpGetThread+"/"+messageID]; err != nil {
		return "", err
	}
	id, ok := c.threadByMessage[messageID]
	if !ok {
		return "", fmt.Errorf("%w: no thread for message %s", ErrNotFound, messageID)
	}
	return id, nil
}

// PostToThread отправляет сообщение в тред.
func (c *MemoryClient) PostToThread(_ context.Context, threadID string, msg Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.failures[OpPostThread+"/"+threadID]; err != nil {
		return "", err
	}
	if !c.threads[threadID] {
		return "", fmt.Errorf("%w: thread %s", ErrNotFound, threadID)
	}

	id := c.newID("msg")
	c.messages[id] = &MemoryMessage{
		ID:       id,
		ThreadID: threadID,
		Content:  msg.Content,
	}
	return id, nil
}

// DeleteThread удаляет тред вместе с содержимым.
func (c *MemoryClient) DeleteThread(_ context.Context, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.failures[OpDeleteThread+"/"+threadID]; err != nil {
		return err
	}
	if !c.threads[threadID] {
		return fmt.Errorf("%w: thread %s", ErrNotFound, threadID)
	}
	delete(c.threads, threadID)
	for id, m := range c.messages {
		if m.ThreadID == threadID {
			delete(c.messages, id)
		}
	}
	for msgID, thID := range c.threadByMessage {
		if thID == threadID {
			delete(c.threadByMessage, msgID)
		}
	}
	return nil
}

// --- Test helpers ---

// Message возвращает сообщение по ID (nil, если удалено или не было).
func (c *MemoryClient) Message(id string) *MemoryMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.messages[id]; ok {
		copied := *m
		return &copied
	}
	return nil
}

// MessagesIn возвращает сообщения канала в порядке отправки.
func (c *MemoryClient) MessagesIn(channelID string) []MemoryMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []MemoryMessage
	for i := 1; i <= c.nextID; i++ {
		if m, ok := c.messages[fmt.Sprintf("msg-%d", i)]; ok && m.ChannelID == channelID {
			out = append(out, *m)
		}
	}
	return out
}

// ThreadMessages возвращает сообщения треда в порядке отправки.
func (c *MemoryClient) ThreadMessages(threadID string) []MemoryMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []MemoryMessage
	for i := 1; i <= c.nextID; i++ {
		if m, ok := c.messages[fmt.Sprintf("msg-%d", i)]; ok && m.ThreadID == threadID {
			out = append(out, *m)
		}
	}
	return out
}

// HasThread возвращает true, если тред существует.
func (c *MemoryClient) HasThread(threadID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threads[threadID]
}

func (c *MemoryClient) newID(prefix string) string {
	c.nextID++
	return fmt.Sprintf("%s-%d", prefix, c.nextID)
}
