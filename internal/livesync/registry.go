package livesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry хранит один общий синхронизатор на логический ресурс.
// Подписка создается при первом Acquire и закрывается, когда последний
// потребитель вызвал release.
type Registry struct {
	logger  *slog.Logger
	entries map[string]*registryEntry
	mu      sync.Mutex
}

type registryEntry struct {
	value any
	err   error
	stop  func()
	ready chan struct{}
	refs  int
}

// NewRegistry создает пустой реестр
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		logger:  logger,
		entries: make(map[string]*registryEntry),
	}
}

// Acquire возвращает общий синхронизатор для key, создавая и запуская его через
// build при первом обращении. release нужно вызвать ровно один раз; повторные
// вызовы игнорируются.
func Acquire[T any](ctx context.Context, r *Registry, key string, build func() (*Synchronizer[T], error)) (*Synchronizer[T], func(), error) {
	r.mu.Lock()
	if e, ok := r.entries[key]; ok {
		e.refs++
		refs := e.refs
		r.mu.Unlock()

		select {
		case <-e.ready:
		case <-ctx.Done():
			r.release(key, e)
			return nil, nil, ctx.Err()
		}
		if e.err != nil {
			r.release(key, e)
			return nil, nil, e.err
		}
		s, ok := e.value.(*Synchronizer[T])
		if !ok {
			r.release(key, e)
			return nil, nil, fmt.Errorf("livesync: registry key %q holds %T", key, e.value)
		}
		r.logger.Debug("shared synchronizer acquired", "key", key, "refs", refs)
		return s, r.releaser(key, e), nil
	}

	e := &registryEntry{refs: 1, ready: make(chan struct{})}
	r.entries[key] = e
	r.mu.Unlock()

	s, err := build()
	if err == nil {
		err = s.Start(ctx)
	}
	if err != nil {
		r.mu.Lock()
		if r.entries[key] == e {
			delete(r.entries, key)
		}
		r.mu.Unlock()
		e.err = err
		close(e.ready)
		return nil, nil, err
	}

	e.value = s
	e.stop = s.Stop
	close(e.ready)
	r.logger.Debug("shared synchronizer started", "key", key)
	return s, r.releaser(key, e), nil
}

func (r *Registry) releaser(key string, e *registryEntry) func() {
	var once sync.Once
	return func() {
		once.Do(func() { r.release(key, e) })
	}
}

func (r *Registry) release(key string, e *registryEntry) {
	r.mu.Lock()
	e.refs--
	var stop func()
	if e.refs <= 0 {
		if r.entries[key] == e {
			delete(r.entries, key)
		}
		stop = e.stop
	}
	r.mu.Unlock()

	if stop != nil {
		r.logger.Debug("last consumer released, stopping", "key", key)
		stop()
	}
}

// Refs количество потребителей ресурса key
func (r *Registry) Refs(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Close останавливает все синхронизаторы независимо от счетчиков
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range entries {
		<-e.ready
		if e.stop != nil {
			e.stop()
		}
	}
}
