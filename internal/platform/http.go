package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient — Client поверх REST API шлюза.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient создаёт клиент шлюза. Токен опционален (dev-шлюз
// может работать без авторизации).
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// --- Response wrappers ---

type messageData struct {
	MessageID string `json:"message_id"`
}

type threadData struct {
	ThreadID string `json:"thread_id"`
}

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// SendMessage отправляет сообщение в канал.
func (c *HTTPClient) SendMessage(ctx context.Context, serverID, channelID string, msg Message) (string, error) {
	path := "/api/v1/servers/" + serverID + "/channels/" + channelID + "/messages"
	var data messageData
	if err := c.doData(ctx, http.MethodPost, path, msg, &data); err != nil {
		return "", err
	}
	return data.MessageID, nil
}

// EditMessage заменяет содержимое сообщения.
func (c *HTTPClient) EditMessage(ctx context.Context, channelID, messageID string, msg Message) error {
	path := "/api/v1/channels/" + channelID + "/messages/" + messageID
	return c.doData(ctx, http.MethodPatch, path, msg, nil)
}

// DeleteMessage удаляет сообщение.
func (c *HTTPClient) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	path := "/api/v1/channels/" + channelID + "/messages/" + messageID
	return c.doData(ctx, http.MethodDelete, path, nil, nil)
}

// CreateThread создаёт тред от сообщения.
func (c *HTTPClient) CreateThread(ctx context.Context, channelID, messageID, name string) (string, error) {
	path := "/api/v1/channels/" + channelID + "/messages/" + messageID + "/thread"
	body := map[string]string{"name": name}
	var data threadData
	if err := c.doData(ctx, http.MethodPost, path, body, &data); err != nil {
		return "", err
	}
	return data.ThreadID, nil
}

// ThreadForMessage возвращает существующий тред сообщения.
func (c *HTTPClient) ThreadForMessage(ctx context.Context, channelID, messageID string) (string, error) {
	path := "/api/v1/channels/" + channelID + "/messages/" + messageID + "/thread"
	var data threadData
	if err := c.doData(ctx, http.MethodGet, path, nil, &data); err != nil {
		return "", err
	}
	return data.ThreadID, nil
}

// PostToThread отправляет сообщение в тред.
func (c *HTTPClient) PostToThread(ctx context.Context, threadID string, msg Message) (string, error) {
	path := "/api/v1/threads/" + threadID + "/messages"
	var data messageData
	if err := c.doData(ctx, http.MethodPost, path, msg, &data); err != nil {
		return "", err
	}
	return data.MessageID, nil
}

// DeleteThread удаляет тред.
func (c *HTTPClient) DeleteThread(ctx context.Context, threadID string) error {
	path := "/api/v1/threads/" + threadID
	return c.doData(ctx, http.MethodDelete, path, nil, nil)
}

// --- HTTP helpers ---

func (c *HTTPClient) doData(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent || result == nil {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(dr.Data, result)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

// checkError переводит HTTP-статусы шлюза в ошибки пакета, чтобы
// процессоры различали их через errors.Is.
func (c *HTTPClient) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&er)
	detail := er.Error.Message
	if detail == "" {
		detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, detail)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, detail)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrThreadExists, detail)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalid, detail)
	default:
		return fmt.Errorf("gateway error: %s", detail)
	}
}
