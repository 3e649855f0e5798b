package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/tripsync/internal/server/documents"
	"github.com/iudanet/tripsync/internal/server/feed"
	"github.com/iudanet/tripsync/pkg/api"
)

const (
	// время на отправку запроса подписки после установки соединения
	feedHandshakeTimeout = 10 * time.Second
	feedWriteTimeout     = 10 * time.Second
	feedPongWait         = 60 * time.Second
	feedPingPeriod       = feedPongWait * 9 / 10
	feedMaxMessageSize   = 64 << 10
)

var errFeedEnded = errors.New("feed ended")

// FeedHandler отдает поток изменений коллекции через WebSocket.
// Клиент первым сообщением присылает api.Query, сервер отвечает
// начальным пакетом и дальше присылает инкрементальные пакеты.
type FeedHandler struct {
	logger   *slog.Logger
	service  DocumentService
	upgrader websocket.Upgrader
}

// NewFeedHandler создает handler потока изменений
func NewFeedHandler(logger *slog.Logger, service DocumentService) *FeedHandler {
	return &FeedHandler{
		logger:  logger,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// клиенты не браузеры, доступ проверяется по JWT
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Feed обрабатывает GET /api/v1/feed
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отправляет ответ с ошибкой
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(feedMaxMessageSize)

	logger := h.logger.With(slog.String("user_id", userID))

	var q api.Query
	_ = conn.SetReadDeadline(time.Now().Add(feedHandshakeTimeout))
	if err := conn.ReadJSON(&q); err != nil {
		logger.WarnContext(r.Context(), "failed to read feed query", slog.Any("error", err))
		h.writeErrorFrame(conn, api.FeedErrInvalidQuery, "expected query as the first message")
		return
	}

	// контекст запроса не отменяется при разрыве hijacked соединения,
	// разрыв определяет readLoop
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sub, initial, err := h.service.Subscribe(ctx, userID, q)
	if err != nil {
		code, message := feedErrorCode(err)
		logger.InfoContext(ctx, "feed subscription rejected",
			slog.String("query", q.Key()),
			slog.Any("error", err))
		h.writeErrorFrame(conn, code, message)
		return
	}
	defer sub.Close()

	logger.InfoContext(ctx, "feed subscription opened", slog.String("query", q.Key()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return readLoop(conn)
	})
	g.Go(func() error {
		return h.writeLoop(gctx, conn, sub, initial)
	})
	g.Go(func() error {
		return pingLoop(gctx, conn, sub)
	})

	err = g.Wait()
	logger.InfoContext(ctx, "feed subscription closed",
		slog.String("query", q.Key()),
		slog.Any("reason", err))
}

// writeLoop единственный писатель данных в соединение
func (h *FeedHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *feed.Subscription, initial api.SnapshotBatch) error {
	if err := writeFrame(conn, api.FeedFrame{Type: api.FrameBatch, Batch: &initial}); err != nil {
		return err
	}

	for {
		batch, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, feed.ErrSlowConsumer) {
				h.writeErrorFrame(conn, api.FeedErrSlowConsumer, "subscriber is too slow")
			} else {
				h.writeErrorFrame(conn, api.FeedErrInternal, "subscription terminated")
			}
			return errors.Join(errFeedEnded, err)
		}

		if err := writeFrame(conn, api.FeedFrame{Type: api.FrameBatch, Batch: &batch}); err != nil {
			return err
		}
	}
}

// readLoop читает управляющие сообщения клиента, пока соединение живо
func readLoop(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return err
		}
	}
}

// pingLoop отправляет ping и закрывает соединение после отмены ctx
func pingLoop(ctx context.Context, conn *websocket.Conn, sub *feed.Subscription) error {
	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sub.Close()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
			return nil
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteTimeout)); err != nil {
				return err
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, frame api.FeedFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	return conn.WriteJSON(frame)
}

func (h *FeedHandler) writeErrorFrame(conn *websocket.Conn, code, message string) {
	if err := writeFrame(conn, api.FeedFrame{Type: api.FrameError, Code: code, Message: message}); err != nil {
		h.logger.Debug("failed to write error frame", slog.Any("error", err))
	}
}

func feedErrorCode(err error) (string, string) {
	switch {
	case errors.Is(err, documents.ErrPermissionDenied):
		return api.FeedErrPermissionDenied, "permission denied"
	case errors.Is(err, documents.ErrInvalidRequest),
		errors.Is(err, api.ErrInvalidPath),
		errors.Is(err, api.ErrInvalidQuery):
		return api.FeedErrInvalidQuery, err.Error()
	default:
		return api.FeedErrInternal, "internal server error"
	}
}
