// Package feed подписывается на поток изменений сервера по WebSocket.
// Client реализует livesync.Feed: одна подписка, одно соединение.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/tripsync/internal/client/api"
	"github.com/iudanet/tripsync/internal/livesync"
	pkgapi "github.com/iudanet/tripsync/pkg/api"
)

const (
	feedPath         = "/api/v1/feed"
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	// сервер присылает ping раньше, чем истекает readTimeout
	readTimeout    = 70 * time.Second
	maxMessageSize = 4 << 20
	// DefaultBufferSize сколько пакетов ждут потребителя до блокировки чтения
	DefaultBufferSize = 16
)

// ServerError подписка отклонена или прервана сервером
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("feed error %s: %s", e.Code, e.Message)
}

// Is сопоставляет код ошибки сервера с ошибками api клиента
func (e *ServerError) Is(target error) bool {
	switch target {
	case api.ErrForbidden:
		return e.Code == pkgapi.FeedErrPermissionDenied
	default:
		return false
	}
}

// ErrConnectionClosed соединение закрылось без кадра ошибки
var ErrConnectionClosed = errors.New("feed connection closed")

// Client открывает подписки на поток изменений
type Client struct {
	tokens     api.TokenSource
	dialer     *websocket.Dialer
	logger     *slog.Logger
	url        string
	bufferSize int
}

var _ livesync.Feed = (*Client)(nil)

// NewClient создает клиент потока. serverURL - http(s) адрес сервера.
func NewClient(logger *slog.Logger, serverURL string, tokens api.TokenSource) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("invalid server url scheme %q", u.Scheme)
	}
	u.Path += feedPath

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		tokens: tokens,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		logger:     logger,
		url:        u.String(),
		bufferSize: DefaultBufferSize,
	}, nil
}

// Subscribe открывает соединение и отправляет запрос подписки.
// ctx ограничивает только установку соединения.
func (c *Client) Subscribe(ctx context.Context, q pkgapi.Query) (livesync.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get access token: %w", err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("feed dial: %w", &api.StatusError{StatusCode: resp.StatusCode})
		}
		return nil, fmt.Errorf("feed dial: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(q); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send feed query: %w", err)
	}

	sub := &subscription{
		conn:    conn,
		logger:  c.logger.With(slog.String("query", q.Key())),
		batches: make(chan pkgapi.SnapshotBatch, c.bufferSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}

	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	go sub.readLoop()
	return sub, nil
}

// subscription одна подписка поверх одного соединения
type subscription struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	batches chan pkgapi.SnapshotBatch
	closing chan struct{}
	done    chan struct{}
	err     error

	mu        sync.Mutex
	closeOnce sync.Once
}

func (s *subscription) Batches() <-chan pkgapi.SnapshotBatch {
	return s.batches
}

// Err причина завершения потока. nil до завершения и после Unsubscribe.
func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unsubscribe закрывает соединение и ждет завершения чтения
func (s *subscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		close(s.closing)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
	<-s.done

	// пакеты, прочитанные до закрытия, потребителю уже не нужны
	for range s.batches {
	}
}

func (s *subscription) readLoop() {
	defer close(s.done)
	defer close(s.batches)

	err := s.read()

	select {
	case <-s.closing:
		// остановлено через Unsubscribe, это не ошибка
		return
	default:
	}

	s.logger.Warn("feed subscription terminated", slog.Any("error", err))
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	_ = s.conn.Close()
}

func (s *subscription) read() error {
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))

		var frame pkgapi.FeedFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrConnectionClosed
			}
			return fmt.Errorf("feed read: %w", err)
		}

		switch frame.Type {
		case pkgapi.FrameBatch:
			if frame.Batch == nil {
				return errors.New("feed: batch frame without batch")
			}
			select {
			case s.batches <- *frame.Batch:
			case <-s.closing:
				return nil
			}
		case pkgapi.FrameError:
			return &ServerError{Code: frame.Code, Message: frame.Message}
		default:
			s.logger.Debug("unknown feed frame ignored", slog.String("type", string(frame.Type)))
		}
	}
}
