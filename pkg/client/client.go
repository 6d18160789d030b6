// client — Go-клиент REST API task-manager.
//
// Клиент хранит пару токенов в TokenStore и прозрачно обновляет access-токен
// при ответе 401. Конкурентные запросы, одновременно получившие 401, делят один
// вызов /auth/refresh (singleflight): refresh-токен одноразовый, и второй
// параллельный refresh с тем же токеном был бы отклонён сервером.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnauthenticated — общий предок ошибок отсутствующей/истёкшей сессии.
	ErrUnauthenticated = errors.New("client: unauthenticated")
	// ErrNoSession — в TokenStore нет сессии.
	ErrNoSession = fmt.Errorf("%w: no session", ErrUnauthenticated)
	// ErrSessionExpired — общий refresh не удался, сессия очищена.
	ErrSessionExpired = fmt.Errorf("%w: session expired", ErrUnauthenticated)
)

// APIError — ошибка в формате {"error": {...}} от сервера.
type APIError struct {
	Status    int    `json:"-"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Details   []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api: %d %s: %s (request_id=%s)", e.Status, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Client — HTTP-клиент с автоматическим обновлением токенов.
type Client struct {
	base  string
	hc    *http.Client
	store TokenStore

	sf singleflight.Group
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client (по умолчанию таймаут 15s).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// New создаёт клиента. baseURL включает префикс API, например "http://localhost:8080/api".
// store == nil — используется MemoryStore.
func New(baseURL string, store TokenStore, opts ...Option) *Client {
	if store == nil {
		store = NewMemoryStore()
	}

	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		hc:    &http.Client{Timeout: 15 * time.Second},
		store: store,
	}
	for _, o := range opts {
		o(c)
	}

	return c
}

// Register создаёт аккаунт и сохраняет выданную сессию.
func (c *Client) Register(ctx context.Context, email, name, password string) (*User, error) {
	body := map[string]string{"email": email, "name": name, "password": password}
	return c.authenticate(ctx, "/auth/register", body)
}

// Login выполняет вход и сохраняет выданную сессию.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/auth/login", body)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*User, error) {
	var res authResponse
	if err := c.send(ctx, http.MethodPost, path, "", body, &res); err != nil {
		return nil, err
	}

	if err := c.store.Save(res.session()); err != nil {
		return nil, err
	}

	return res.User, nil
}

// Logout отзывает refresh-токен на сервере и очищает локальную сессию.
// Отсутствие сессии — не ошибка.
func (c *Client) Logout(ctx context.Context) error {
	s, ok := c.store.Load()
	if !ok {
		return nil
	}

	err := c.send(ctx, http.MethodPost, "/auth/logout", "", map[string]string{"refreshToken": s.RefreshToken}, nil)
	if cerr := c.store.Clear(); cerr != nil && err == nil {
		err = cerr
	}

	return err
}

// Refresh принудительно обменивает refresh-токен на новую пару.
func (c *Client) Refresh(ctx context.Context) error {
	s, ok := c.store.Load()
	if !ok {
		return ErrNoSession
	}

	_, err := c.refresh(ctx, s.AccessToken)
	return err
}

// refresh обновляет сессию не более одного раза на поколение токенов.
// stale — access-токен, получивший 401: если в хранилище уже другой,
// значит обновление выполнил кто-то раньше, и сеть не нужна.
func (c *Client) refresh(ctx context.Context, stale string) (Session, error) {
	v, err, _ := c.sf.Do("refresh", func() (any, error) {
		s, ok := c.store.Load()
		if !ok {
			return Session{}, ErrNoSession
		}
		if s.AccessToken != stale {
			return s, nil
		}

		// Общий вызов не должен обрываться отменой контекста первого ожидающего.
		var res authResponse
		err := c.send(context.WithoutCancel(ctx), http.MethodPost, "/auth/refresh", "",
			map[string]string{"refreshToken": s.RefreshToken}, &res)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
				_ = c.store.Clear()
				return Session{}, ErrSessionExpired
			}
			return Session{}, err
		}

		next := res.session()
		if err := c.store.Save(next); err != nil {
			return Session{}, err
		}

		return next, nil
	})
	if err != nil {
		return Session{}, err
	}

	return v.(Session), nil
}

// do выполняет авторизованный запрос; при 401 один раз обновляет сессию и повторяет.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	s, ok := c.store.Load()
	if !ok {
		return ErrNoSession
	}

	err := c.send(ctx, method, path, s.AccessToken, body, out)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return err
	}

	next, err := c.refresh(ctx, s.AccessToken)
	if err != nil {
		return err
	}

	return c.send(ctx, method, path, next.AccessToken, body, out)
}

func (c *Client) send(ctx context.Context, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var env struct {
			Error APIError `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&env)
		env.Error.Status = resp.StatusCode
		return &env.Error
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}

	return nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateProject(ctx context.Context, name string) (*Project, error) {
	var p Project
	if err := c.do(ctx, http.MethodPost, "/projects", map[string]string{"name": name}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/projects/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AddMember(ctx context.Context, projectID, userID string) (*Project, error) {
	var p Project
	path := "/projects/" + url.PathEscape(projectID) + "/members"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"userId": userID}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Activity(ctx context.Context, projectID string, limit int) ([]Activity, error) {
	path := "/projects/" + url.PathEscape(projectID) + "/activity"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var out []Activity
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTasks возвращает задачи, назначенные текущему пользователю.
// Пустые projectID/label — без фильтра.
func (c *Client) ListTasks(ctx context.Context, projectID, label string) ([]Task, error) {
	q := url.Values{}
	if projectID != "" {
		q.Set("projectId", projectID)
	}
	if label != "" {
		q.Set("label", label)
	}

	path := "/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []Task
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTask(ctx context.Context, in NewTask) (*Task, error) {
	var t Task
	if err := c.do(ctx, http.MethodPost, "/tasks", in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) ToggleTask(ctx context.Context, id string) (*Task, error) {
	var t Task
	if err := c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id)+"/toggle", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}
