// Package documents реализует запись, чтение и подписку на документы
// с проверкой прав доступа.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/tripsync/internal/models"
	"github.com/iudanet/tripsync/internal/server/feed"
	"github.com/iudanet/tripsync/internal/server/metrics"
	"github.com/iudanet/tripsync/internal/server/storage"
	"github.com/iudanet/tripsync/pkg/api"
)

// MaxBatchWrites ограничение на размер пакетной записи
const MaxBatchWrites = 100

var (
	// ErrPermissionDenied пользователь не имеет доступа к документу или запросу
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidRequest запрос на запись некорректен
	ErrInvalidRequest = errors.New("invalid request")
)

//go:generate moq -out notifier_mock.go . Notifier

// Notifier получает зафиксированные изменения после рассылки.
// Enqueue не должен блокироваться.
type Notifier interface {
	Enqueue(events []storage.Event)
}

// Service документный сервис
type Service struct {
	store    storage.DocumentStorage
	hub      *feed.Hub
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	// запись и рассылка идут под одним мьютексом, чтобы порядок доставки
	// совпадал с порядком seq
	writeMu sync.Mutex
}

// NewService создает документный сервис. notifier может быть nil.
func NewService(logger *slog.Logger, store storage.DocumentStorage, hub *feed.Hub, notifier Notifier, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		hub:      hub,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Create создает документ в коллекции с ID, назначенным сервером
func (s *Service) Create(ctx context.Context, userID, collection string, req api.UpsertRequest) (api.Document, error) {
	docs, err := s.Batch(ctx, userID, api.BatchRequest{Writes: []api.BatchWrite{{
		Op:               api.WriteSet,
		Path:             collection,
		Data:             req.Data,
		ServerTimestamps: req.ServerTimestamps,
	}}})
	if err != nil {
		return api.Document{}, err
	}
	return docs[0], nil
}

// Upsert создает или обновляет документ по полному пути
func (s *Service) Upsert(ctx context.Context, userID, docPath string, req api.UpsertRequest) (api.Document, error) {
	collection, id, err := api.SplitDocumentPath(docPath)
	if err != nil {
		return api.Document{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	docs, err := s.Batch(ctx, userID, api.BatchRequest{Writes: []api.BatchWrite{{
		Op:               api.WriteSet,
		Path:             collection,
		ID:               id,
		Data:             req.Data,
		ServerTimestamps: req.ServerTimestamps,
		Merge:            req.Merge,
	}}})
	if err != nil {
		return api.Document{}, err
	}
	return docs[0], nil
}

// Delete удаляет документ. Удаление отсутствующего документа не ошибка.
func (s *Service) Delete(ctx context.Context, userID, docPath string) error {
	collection, id, err := api.SplitDocumentPath(docPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	_, err = s.Batch(ctx, userID, api.BatchRequest{Writes: []api.BatchWrite{{
		Op:   api.WriteDelete,
		Path: collection,
		ID:   id,
	}}})
	return err
}

// Batch атомарно применяет набор записей и возвращает записанные документы
// в порядке запроса (удаления в ответ не попадают)
func (s *Service) Batch(ctx context.Context, userID string, req api.BatchRequest) ([]api.Document, error) {
	if len(req.Writes) == 0 {
		return nil, fmt.Errorf("%w: no writes", ErrInvalidRequest)
	}
	if len(req.Writes) > MaxBatchWrites {
		return nil, fmt.Errorf("%w: too many writes (%d > %d)", ErrInvalidRequest, len(req.Writes), MaxBatchWrites)
	}

	writes := make([]storage.Write, 0, len(req.Writes))
	for _, bw := range req.Writes {
		w := storage.Write{
			Op:               bw.Op,
			Collection:       bw.Path,
			ID:               bw.ID,
			Data:             bw.Data,
			ServerTimestamps: bw.ServerTimestamps,
			Merge:            bw.Merge,
		}
		if w.Op == "" {
			w.Op = api.WriteSet
		}
		if w.ID == "" {
			if w.Op != api.WriteSet {
				return nil, fmt.Errorf("%w: delete requires document id", ErrInvalidRequest)
			}
			w.ID = uuid.New().String()
		}
		collection, err := api.NormalizeCollectionPath(w.Collection)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		w.Collection = collection
		if err := s.authorizeWrite(ctx, userID, w); err != nil {
			return nil, err
		}
		writes = append(writes, w)
	}

	events, err := s.commit(ctx, writes)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidDocument) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, err
	}

	docs := make([]api.Document, 0, len(events))
	for _, ev := range events {
		if !ev.Deleted {
			docs = append(docs, ev.Document)
		}
	}
	return docs, nil
}

func (s *Service) commit(ctx context.Context, writes []storage.Write) ([]storage.Event, error) {
	s.writeMu.Lock()
	writes, err := s.withTripCascade(ctx, writes)
	if err != nil {
		s.writeMu.Unlock()
		return nil, err
	}
	events, err := s.store.Apply(ctx, writes, s.now())
	if err != nil {
		s.writeMu.Unlock()
		return nil, fmt.Errorf("failed to apply writes: %w", err)
	}
	s.hub.Publish(events)
	s.writeMu.Unlock()

	for _, ev := range events {
		kind := api.ChangeModified
		switch {
		case ev.Deleted:
			kind = api.ChangeRemoved
		case ev.Created:
			kind = api.ChangeAdded
		}
		s.metrics.DocumentWrites.WithLabelValues(string(kind)).Inc()
	}

	if s.notifier != nil {
		s.notifier.Enqueue(events)
	}

	s.logger.DebugContext(ctx, "writes committed", slog.Int("events", len(events)))
	return events, nil
}

// tripSubcollections коллекции, которые удаляются вместе с поездкой
var tripSubcollections = []string{models.CollectionPlaces, models.CollectionMessages}

// withTripCascade добавляет к удалению поездки удаление ее мест и сообщений,
// чтобы они ушли в той же транзакции
func (s *Service) withTripCascade(ctx context.Context, writes []storage.Write) ([]storage.Write, error) {
	out := writes
	for _, w := range writes {
		if w.Op != api.WriteDelete || w.Collection != models.CollectionTrips {
			continue
		}
		for _, sub := range tripSubcollections {
			path := models.TripPath(w.ID, sub)
			docs, _, err := s.store.Query(ctx, api.Query{Path: path})
			if err != nil {
				return nil, fmt.Errorf("failed to list %s of trip %s: %w", sub, w.ID, err)
			}
			for _, doc := range docs {
				out = append(out, storage.Write{Op: api.WriteDelete, Collection: path, ID: doc.ID})
			}
		}
	}
	return out, nil
}

// Get возвращает один документ
func (s *Service) Get(ctx context.Context, userID, docPath string) (*api.Document, error) {
	collection, id, err := api.SplitDocumentPath(docPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := s.authorizeDocumentRead(ctx, userID, collection, id); err != nil {
		return nil, err
	}
	return s.store.GetDocument(ctx, collection, id)
}

// Query одноразовый снимок коллекции
func (s *Service) Query(ctx context.Context, userID string, q api.Query) ([]api.Document, int64, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := s.authorizeQuery(ctx, userID, q); err != nil {
		return nil, 0, err
	}
	return s.store.Query(ctx, q)
}

// Subscribe открывает подписку и возвращает ее начальный пакет.
// Подписку нужно закрыть через Close.
func (s *Service) Subscribe(ctx context.Context, userID string, q api.Query) (*feed.Subscription, api.SnapshotBatch, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, api.SnapshotBatch{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := s.authorizeQuery(ctx, userID, q); err != nil {
		return nil, api.SnapshotBatch{}, err
	}

	// регистрация до чтения снимка: изменения между ними не теряются
	sub, err := s.hub.Register(q)
	if err != nil {
		return nil, api.SnapshotBatch{}, err
	}

	docs, seq, err := s.store.Query(ctx, q)
	if err != nil {
		sub.Close()
		return nil, api.SnapshotBatch{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	initial := sub.Prime(docs, seq)
	s.logger.DebugContext(ctx, "subscription opened",
		slog.String("user_id", userID),
		slog.String("query", q.Key()),
		slog.Int("documents", len(docs)))

	return sub, initial, nil
}
