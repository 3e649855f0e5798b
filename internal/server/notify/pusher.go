package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// WebhookPusher отправляет уведомления POST запросом на push шлюз
type WebhookPusher struct {
	client *http.Client
	url    string
	token  string
}

// NewWebhookPusher создает WebhookPusher. token передается в заголовке
// Authorization, если не пустой.
func NewWebhookPusher(url, token string, timeout time.Duration) *WebhookPusher {
	return &WebhookPusher{
		client: &http.Client{Timeout: timeout},
		url:    url,
		token:  token,
	}
}

// Push реализует Pusher
func (p *WebhookPusher) Push(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// LogPusher только логирует уведомления. Используется, когда шлюз не настроен.
type LogPusher struct {
	logger *slog.Logger
}

// NewLogPusher создает LogPusher
func NewLogPusher(logger *slog.Logger) *LogPusher {
	return &LogPusher{logger: logger}
}

// Push реализует Pusher
func (p *LogPusher) Push(_ context.Context, n Notification) error {
	p.logger.Info("push notification",
		slog.String("user_id", n.UserID),
		slog.String("trip_id", n.TripID),
		slog.String("title", n.Title))
	return nil
}
