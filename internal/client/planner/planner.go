// Package planner builds the trip planning views on top of live collections:
// the user's trip list, a trip itinerary with its wish list and the trip chat.
//
// Every view holds a shared synchronizer from the livesync registry, so two
// views of the same trip share one feed subscription. Writes are optimistic:
// the local collection changes first and is rolled back if the server rejects
// the write.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/tripsync/internal/client/storage"
	"github.com/iudanet/tripsync/internal/livesync"
	"github.com/iudanet/tripsync/pkg/api"
)

//go:generate moq -out writer_mock.go . Writer

// Writer запись документов на сервер
type Writer interface {
	UpsertDocument(ctx context.Context, docPath string, req api.UpsertRequest) (*api.Document, error)
	DeleteDocument(ctx context.Context, docPath string) error
	Batch(ctx context.Context, req api.BatchRequest) ([]api.Document, error)
}

var (
	// ErrNotFound сущность отсутствует в локальной коллекции
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument неверные параметры операции
	ErrInvalidArgument = errors.New("invalid argument")
)

// Identity текущий пользователь
type Identity struct {
	UserID string
	Name   string
}

// Planner создает представления поездок
type Planner struct {
	feed     livesync.Feed
	writer   Writer
	registry *livesync.Registry
	views    storage.ViewCache
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	identity Identity
}

// New создает Planner. views может быть nil, тогда снимки не сохраняются.
func New(logger *slog.Logger, feed livesync.Feed, writer Writer, registry *livesync.Registry, views storage.ViewCache, identity Identity) *Planner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Planner{
		feed:     feed,
		writer:   writer,
		registry: registry,
		views:    views,
		logger:   logger,
		identity: identity,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Identity текущий пользователь
func (p *Planner) Identity() Identity {
	return p.identity
}

// view общая часть представлений: синхронизатор из реестра и сохранение снимка
type view[T any] struct {
	sync    *livesync.Synchronizer[T]
	release func()
	planner *Planner
	id      func(T) string
}

func acquire[T any](ctx context.Context, p *Planner, opts livesync.Options[T]) (*view[T], error) {
	if opts.Logger == nil {
		opts.Logger = p.logger
	}
	if opts.OnError == nil {
		logger := p.logger
		opts.OnError = func(err error) {
			logger.Warn("live collection error", slog.String("query", opts.Query.Key()), slog.Any("error", err))
		}
	}

	s, release, err := livesync.Acquire(ctx, p.registry, opts.Query.Key(), func() (*livesync.Synchronizer[T], error) {
		return livesync.New(p.feed, opts)
	})
	if err != nil {
		return nil, err
	}
	return &view[T]{sync: s, release: release, planner: p, id: opts.ID}, nil
}

// Wait ждет первый снимок. Возвращает ошибку подписки, если она завершилась
// раньше.
func (v *view[T]) Wait(ctx context.Context) error {
	ready := make(chan struct{}, 1)
	cancel := v.sync.Listen(func(livesync.Update[T]) {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		switch v.sync.State() {
		case livesync.StatePopulated:
			return nil
		case livesync.StateFailed:
			return v.sync.Err()
		case livesync.StateUnsubscribed:
			return livesync.ErrUnsubscribed
		}

		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Err ошибка завершения подписки
func (v *view[T]) Err() error {
	return v.sync.Err()
}

// OnFailure вызывает fn, когда подписка завершилась с ошибкой
func (v *view[T]) OnFailure(fn func(error)) func() {
	return v.sync.Listen(func(upd livesync.Update[T]) {
		if upd.State == livesync.StateFailed {
			fn(upd.Err)
		}
	})
}

// Close сохраняет снимок и отпускает синхронизатор
func (v *view[T]) Close(ctx context.Context) error {
	err := v.save(ctx)
	v.release()
	return err
}

func (v *view[T]) listen(fn func(livesync.Update[T])) func() {
	return v.sync.Listen(fn)
}

func (v *view[T]) save(ctx context.Context) error {
	if v.planner.views == nil || v.sync.State() != livesync.StatePopulated {
		return nil
	}

	q := v.sync.Query()
	items := v.sync.Items()
	docs := make([]api.Document, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode %s entity: %w", q.Path, err)
		}
		docs = append(docs, api.Document{ID: v.id(item), Path: q.Path, Data: data})
	}

	cached := &storage.CachedView{SavedAt: v.planner.now(), Documents: docs}
	if err := v.planner.views.SaveView(ctx, q.Key(), cached); err != nil {
		return fmt.Errorf("failed to save view %s: %w", q.Key(), err)
	}
	return nil
}

// cached читает сохраненный снимок запроса
func cached[T any](ctx context.Context, p *Planner, q api.Query, decode func(api.Document) (T, error)) ([]T, time.Time, error) {
	if p.views == nil {
		return nil, time.Time{}, storage.ErrViewNotFound
	}
	snapshot, err := p.views.GetView(ctx, q.Key())
	if err != nil {
		return nil, time.Time{}, err
	}

	out := make([]T, 0, len(snapshot.Documents))
	for _, doc := range snapshot.Documents {
		item, err := decode(doc)
		if err != nil {
			p.logger.Warn("skipping cached document", slog.String("id", doc.ID), slog.Any("error", err))
			continue
		}
		out = append(out, item)
	}
	return out, snapshot.SavedAt, nil
}

func encode(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

func sortBy[T any](items []T, less func(a, b T) bool) {
	slices.SortStableFunc(items, func(a, b T) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		}
		return 0
	})
}
