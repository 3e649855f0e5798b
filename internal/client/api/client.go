package api

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

	"github.com/iudanet/tripsync/pkg/api"
)

// DefaultTimeout таймаут HTTP запросов по умолчанию
const DefaultTimeout = 30 * time.Second

// Ошибки ответа сервера, проверяются через errors.Is
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("permission denied")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")
)

// StatusError ответ сервера с кодом не из диапазона 2xx
type StatusError struct {
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Unwrap сопоставляет код ответа с ошибками пакета
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return nil
	}
}

// TokenSource выдает актуальный access token для запросов
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("stopped after 10 redirects")
				}
				// Копируем заголовок Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetTokenSource задает источник токенов для запросов, требующих авторизации
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// BaseURL адрес сервера
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", "", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", "", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Refresh обменивает refresh token на новую пару токенов
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	req := api.RefreshRequest{RefreshToken: refreshToken}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/refresh", "", req, &resp); err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// Logout отзывает refresh token на сервере. Access token передается явно,
// потому что к этому моменту локальная сессия может быть уже удалена.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	req := api.LogoutRequest{RefreshToken: refreshToken}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/logout", accessToken, req, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// GetDocument загружает один документ по полному пути
func (c *Client) GetDocument(ctx context.Context, docPath string) (*api.Document, error) {
	var doc api.Document
	if err := c.authorized(ctx, http.MethodGet, documentURL(docPath), nil, &doc); err != nil {
		return nil, fmt.Errorf("get %s: %w", docPath, err)
	}
	return &doc, nil
}

// CreateDocument создает документ с ID, назначенным сервером
func (c *Client) CreateDocument(ctx context.Context, collection string, req api.UpsertRequest) (*api.Document, error) {
	var doc api.Document
	if err := c.authorized(ctx, http.MethodPost, documentURL(collection), req, &doc); err != nil {
		return nil, fmt.Errorf("create in %s: %w", collection, err)
	}
	return &doc, nil
}

// UpsertDocument создает или обновляет документ по полному пути
func (c *Client) UpsertDocument(ctx context.Context, docPath string, req api.UpsertRequest) (*api.Document, error) {
	var doc api.Document
	if err := c.authorized(ctx, http.MethodPut, documentURL(docPath), req, &doc); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", docPath, err)
	}
	return &doc, nil
}

// DeleteDocument удаляет документ. Удаление отсутствующего документа не ошибка.
func (c *Client) DeleteDocument(ctx context.Context, docPath string) error {
	if err := c.authorized(ctx, http.MethodDelete, documentURL(docPath), nil, nil); err != nil {
		return fmt.Errorf("delete %s: %w", docPath, err)
	}
	return nil
}

// Batch применяет набор записей атомарно
func (c *Client) Batch(ctx context.Context, req api.BatchRequest) ([]api.Document, error) {
	var resp api.BatchResponse
	if err := c.authorized(ctx, http.MethodPost, "/api/v1/batch", req, &resp); err != nil {
		return nil, fmt.Errorf("batch write: %w", err)
	}
	return resp.Documents, nil
}

// Query возвращает одноразовый снимок коллекции
func (c *Client) Query(ctx context.Context, q api.Query) (*api.QueryResponse, error) {
	raw, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}
	var resp api.QueryResponse
	if err := c.authorized(ctx, http.MethodGet, "/api/v1/query?q="+url.QueryEscape(string(raw)), nil, &resp); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Path, err)
	}
	return &resp, nil
}

func documentURL(docPath string) string {
	return "/api/v1/documents/" + strings.Trim(docPath, "/")
}

// authorized выполняет запрос с access token из TokenSource
func (c *Client) authorized(ctx context.Context, method, path string, body, result any) error {
	if c.tokens == nil {
		return ErrUnauthorized
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}
	return c.doRequest(ctx, method, path, token, body, result)
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path, token string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			statusErr.Message = errResp.Message
			if statusErr.Message == "" {
				statusErr.Message = errResp.Error
			}
		}
		return statusErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
