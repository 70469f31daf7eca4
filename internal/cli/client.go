package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// StatusResponse — сводка состояния движка из API.
type StatusResponse struct {
	Status              string `json:"status"`
	Uptime              string `json:"uptime"`
	PendingPublications int    `json:"pending_publications"`
	PendingReminders    int    `json:"pending_reminders"`
	ActiveEvents        int    `json:"active_events"`
	CountdownTimers     int    `json:"countdown_timers"`
}

// JobResponse — задание оркестратора из API.
type JobResponse struct {
	Name         string `json:"name"`
	Runs         int    `json:"runs"`
	Failures     int    `json:"failures"`
	LastRun      string `json:"last_run,omitempty"`
	LastDuration string `json:"last_duration,omitempty"`
	LastError    string `json:"last_error,omitempty"`
}

// TimerResponse — таймер обратного отсчёта из API.
type TimerResponse struct {
	EventID    string `json:"event_id"`
	MessageID  string `json:"message_id"`
	ServerID   string `json:"server_id"`
	ChannelID  string `json:"channel_id"`
	NextFireAt string `json:"next_fire_at"`
}

// --- Конверты ответов API ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// requestTimeout ограничивает любой вызов ops API.
const requestTimeout = 30 * time.Second

// Client — HTTP-клиент ops API движка.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент поверх базового URL движка.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Status возвращает сводку состояния движка.
func (c *Client) Status() (*StatusResponse, error) {
	var status StatusResponse
	err := c.get("/api/v1/status", &status)
	return &status, err
}

// ListJobs возвращает задания оркестратора со статистикой.
func (c *Client) ListJobs() ([]JobResponse, error) {
	var jobs []JobResponse
	err := c.list("/api/v1/jobs", &jobs)
	return jobs, err
}

// RunJob запускает задание вне расписания и возвращает его
// обновлённую статистику.
func (c *Client) RunJob(name string) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs/"+url.PathEscape(name)+"/run", &job)
	return &job, err
}

// ListCountdown возвращает активные таймеры обратного отсчёта.
func (c *Client) ListCountdown() ([]TimerResponse, error) {
	var timers []TimerResponse
	err := c.list("/api/v1/countdown", &timers)
	return timers, err
}

// --- HTTP helpers ---

// Все вызовы ops API без тела запроса: единственный POST — триггер
// задания — передаёт всё в пути.

func (c *Client) get(path string, result any) error {
	return c.decode(http.MethodGet, path, result)
}

func (c *Client) post(path string, result any) error {
	return c.decode(http.MethodPost, path, result)
}

// decode выполняет запрос и распаковывает конверт {"data": ...}.
func (c *Client) decode(method, path string, result any) error {
	resp, err := c.do(method, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(dr.Data, result)
}

// list выполняет запрос и распаковывает конверт {"data": [...], "total": N}.
func (c *Client) list(path string, result any) error {
	resp, err := c.do(http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(lr.Data, result)
}

// do выполняет запрос и превращает ответы >= 400 в ошибку
// из конверта {"error": {...}}.
func (c *Client) do(method, path string) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			return nil, fmt.Errorf("API error: HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
	}

	return resp, nil
}
