// Package notify отправляет push уведомления участникам поездки о новых
// сообщениях чата.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/iudanet/tripsync/internal/models"
	"github.com/iudanet/tripsync/internal/server/metrics"
	"github.com/iudanet/tripsync/internal/server/storage"
	"github.com/iudanet/tripsync/pkg/api"
)

// DefaultQueueSize размер очереди событий по умолчанию
const DefaultQueueSize = 256

// ErrNoDeviceToken у получателя нет токена устройства
var ErrNoDeviceToken = errors.New("no device token")

// Notification одно push уведомление
type Notification struct {
	DeviceToken string `json:"device_token"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	TripID      string `json:"trip_id"`
	MessageID   string `json:"message_id"`
}

//go:generate moq -out pusher_mock.go . Pusher

// Pusher доставляет уведомление на устройство
type Pusher interface {
	Push(ctx context.Context, n Notification) error
}

// Notifier обрабатывает события новых сообщений в отдельной горутине.
// Ошибки доставки логируются и не влияют на запись.
type Notifier struct {
	users   storage.UserStorage
	docs    storage.DocumentStorage
	pusher  Pusher
	metrics *metrics.Metrics
	logger  *slog.Logger
	queue   chan storage.Event

	mu     sync.RWMutex
	closed bool
}

// New создает Notifier
func New(logger *slog.Logger, users storage.UserStorage, docs storage.DocumentStorage, pusher Pusher, m *metrics.Metrics, queueSize int) *Notifier {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Notifier{
		users:   users,
		docs:    docs,
		pusher:  pusher,
		metrics: m,
		logger:  logger,
		queue:   make(chan storage.Event, queueSize),
	}
}

// Enqueue ставит в очередь новые сообщения чата. Не блокируется:
// при переполнении очереди событие отбрасывается.
func (n *Notifier) Enqueue(events []storage.Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}

	for _, ev := range events {
		if !isNewMessage(ev) {
			continue
		}
		select {
		case n.queue <- ev:
		default:
			n.metrics.PushNotifications.WithLabelValues("dropped").Inc()
			n.logger.Warn("notification queue is full, dropping event",
				slog.String("path", ev.Document.Path),
				slog.String("id", ev.Document.ID))
		}
	}
}

// Run обрабатывает очередь до отмены ctx
func (n *Notifier) Run(ctx context.Context) error {
	defer func() {
		n.mu.Lock()
		n.closed = true
		n.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-n.queue:
			if err := n.notify(ctx, ev); err != nil {
				n.logger.Warn("failed to send notifications",
					slog.String("message_id", ev.Document.ID),
					slog.Any("error", err))
			}
		}
	}
}

func isNewMessage(ev storage.Event) bool {
	if !ev.Created || ev.Deleted {
		return false
	}
	segments := api.CollectionSegments(ev.Document.Path)
	return len(segments) == 3 &&
		segments[0] == models.CollectionTrips &&
		segments[2] == models.CollectionMessages
}

// notify рассылает уведомление о сообщении всем участникам, кроме автора
func (n *Notifier) notify(ctx context.Context, ev storage.Event) error {
	msg, err := models.DecodeMessage(ev.Document)
	if err != nil {
		return err
	}
	tripID := api.CollectionSegments(ev.Document.Path)[1]

	tripDoc, err := n.docs.GetDocument(ctx, models.CollectionTrips, tripID)
	if err != nil {
		return fmt.Errorf("load trip %s: %w", tripID, err)
	}
	trip, err := models.DecodeTrip(*tripDoc)
	if err != nil {
		return err
	}

	recipients := slices.DeleteFunc(slices.Clone(trip.Members), func(id string) bool {
		return id == msg.SenderID
	})
	if len(recipients) == 0 {
		return nil
	}

	users, err := n.users.GetUsersByIDs(ctx, recipients)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}

	var errs []error
	for _, user := range users {
		if user.DeviceToken == "" {
			n.metrics.PushNotifications.WithLabelValues("skipped").Inc()
			continue
		}
		err := n.pusher.Push(ctx, Notification{
			DeviceToken: user.DeviceToken,
			UserID:      user.ID,
			Title:       fmt.Sprintf("%s · %s", msg.SenderName, trip.Name),
			Body:        msg.Content,
			TripID:      tripID,
			MessageID:   msg.ID,
		})
		if err != nil {
			n.metrics.PushNotifications.WithLabelValues("failed").Inc()
			errs = append(errs, fmt.Errorf("push to %s: %w", user.ID, err))
			continue
		}
		n.metrics.PushNotifications.WithLabelValues("sent").Inc()
	}

	return errors.Join(errs...)
}
