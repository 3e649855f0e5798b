// Package feed рассылает зафиксированные изменения документов подписчикам.
//
// Подписка регистрируется в Hub до чтения снимка коллекции. События с
// seq не больше seq снимка отбрасываются, остальные переводятся в
// Added/Modified/Removed относительно набора документов, который подписчик
// уже видел: документ, переставший проходить фильтр, приходит как Removed.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/iudanet/tripsync/internal/server/metrics"
	"github.com/iudanet/tripsync/internal/server/storage"
	"github.com/iudanet/tripsync/pkg/api"
)

// DefaultQueueSize размер очереди подписчика по умолчанию
const DefaultQueueSize = 64

var (
	// ErrSlowConsumer подписчик не успевает забирать изменения
	ErrSlowConsumer = errors.New("subscriber is too slow")
	// ErrHubClosed сервер останавливается
	ErrHubClosed = errors.New("feed hub is closed")
	// ErrClosed подписка закрыта владельцем
	ErrClosed = errors.New("subscription closed")
)

// Hub in-process рассылка событий хранилища
type Hub struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	subs      map[uint64]*Subscription
	queueSize int
	nextID    uint64
	mu        sync.Mutex
	closed    bool
}

// NewHub создает Hub. queueSize <= 0 означает DefaultQueueSize.
func NewHub(logger *slog.Logger, m *metrics.Metrics, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		logger:    logger,
		metrics:   m,
		subs:      make(map[uint64]*Subscription),
		queueSize: queueSize,
	}
}

// Register регистрирует подписку на коллекцию q.Path.
// Снимок коллекции нужно читать после Register и передать в Prime.
func (h *Hub) Register(q api.Query) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	h.nextID++
	sub := &Subscription{
		hub:     h,
		id:      h.nextID,
		query:   q,
		queue:   make(chan []storage.Event, h.queueSize),
		done:    make(chan struct{}),
		visible: make(map[string]struct{}),
	}
	h.subs[sub.id] = sub
	h.metrics.FeedSubscribers.Inc()

	h.logger.Debug("feed subscription registered",
		slog.Uint64("sub_id", sub.id),
		slog.String("path", q.Path))

	return sub, nil
}

// Publish рассылает события одной записи. Вызывающий гарантирует, что
// вызовы идут в порядке seq.
func (h *Hub) Publish(events []storage.Event) {
	if len(events) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		relevant := make([]storage.Event, 0, len(events))
		for _, ev := range events {
			if ev.Document.Path == sub.query.Path {
				relevant = append(relevant, ev)
			}
		}
		if len(relevant) == 0 {
			continue
		}

		select {
		case sub.queue <- relevant:
		default:
			delete(h.subs, id)
			h.metrics.FeedSubscribers.Dec()
			h.metrics.FeedSlowConsumers.Inc()
			h.logger.Warn("dropping slow feed subscriber",
				slog.Uint64("sub_id", id),
				slog.String("path", sub.query.Path))
			sub.terminate(ErrSlowConsumer)
		}
	}
}

// Subscribers количество активных подписок
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close завершает все подписки с ErrHubClosed
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		h.metrics.FeedSubscribers.Dec()
		sub.terminate(ErrHubClosed)
	}
}

func (h *Hub) unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[id]; ok {
		delete(h.subs, id)
		h.metrics.FeedSubscribers.Dec()
	}
}

// Subscription подписка одного клиента.
// Prime и Next вызываются из одной горутины.
type Subscription struct {
	hub   *Hub
	query api.Query
	queue chan []storage.Event
	done  chan struct{}
	err   error

	// состояние читателя
	visible map[string]struct{}
	seq     int64

	id   uint64
	once sync.Once
	mu   sync.Mutex
}

// Prime запоминает снимок коллекции и возвращает начальный пакет
func (s *Subscription) Prime(docs []api.Document, seq int64) api.SnapshotBatch {
	s.seq = seq
	changes := make([]api.Change, 0, len(docs))
	for _, doc := range docs {
		s.visible[doc.ID] = struct{}{}
		changes = append(changes, api.Change{Kind: api.ChangeAdded, Document: doc})
	}
	s.hub.metrics.FeedBatches.Inc()
	return api.SnapshotBatch{Changes: changes, Seq: seq, Initial: true}
}

// Next ждет следующий непустой пакет изменений
func (s *Subscription) Next(ctx context.Context) (api.SnapshotBatch, error) {
	for {
		select {
		case <-ctx.Done():
			return api.SnapshotBatch{}, ctx.Err()
		case <-s.done:
			return api.SnapshotBatch{}, s.Err()
		case events := <-s.queue:
			batch := s.translate(events)
			if len(batch.Changes) == 0 {
				continue
			}
			s.hub.metrics.FeedBatches.Inc()
			return batch, nil
		}
	}
}

// translate переводит события хранилища в изменения относительно
// набора документов, видимого подписчику
func (s *Subscription) translate(events []storage.Event) api.SnapshotBatch {
	batch := api.SnapshotBatch{Seq: s.seq}

	for _, ev := range events {
		if ev.Seq <= s.seq {
			continue
		}
		s.seq = ev.Seq
		batch.Seq = ev.Seq

		id := ev.Document.ID
		_, wasVisible := s.visible[id]

		if ev.Deleted {
			if wasVisible {
				delete(s.visible, id)
				batch.Changes = append(batch.Changes, api.Change{Kind: api.ChangeRemoved, Document: ev.Document})
			}
			continue
		}

		switch matches := s.matches(ev.Document); {
		case matches && wasVisible:
			batch.Changes = append(batch.Changes, api.Change{Kind: api.ChangeModified, Document: ev.Document})
		case matches:
			s.visible[id] = struct{}{}
			batch.Changes = append(batch.Changes, api.Change{Kind: api.ChangeAdded, Document: ev.Document})
		case wasVisible:
			// документ вышел из фильтра
			delete(s.visible, id)
			batch.Changes = append(batch.Changes, api.Change{Kind: api.ChangeRemoved, Document: ev.Document})
		}
	}

	return batch
}

func (s *Subscription) matches(doc api.Document) bool {
	if len(s.query.Filters) == 0 {
		return true
	}
	var fields map[string]any
	if err := json.Unmarshal(doc.Data, &fields); err != nil {
		return false
	}
	return s.query.Matches(fields)
}

// Done закрывается, когда подписка завершена
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err причина завершения подписки
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Query запрос подписки
func (s *Subscription) Query() api.Query {
	return s.query
}

// Close снимает подписку с рассылки. Повторные вызовы ничего не делают.
func (s *Subscription) Close() {
	s.hub.unregister(s.id)
	s.terminate(ErrClosed)
}

func (s *Subscription) terminate(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}
