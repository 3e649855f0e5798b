package livesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/iudanet/tripsync/pkg/api"
)

// Options настройки синхронизатора для одного типа сущностей
type Options[T any] struct {
	// Decode собирает сущность из документа. Обязателен.
	Decode func(api.Document) (T, error)
	// ID возвращает идентификатор сущности. Обязателен.
	ID func(T) string
	// Merge применяет Modified к существующей записи. По умолчанию запись заменяется целиком.
	Merge func(existing, incoming T) T
	// Filter и Less задают производное представление
	Filter func(T) bool
	Less   func(a, b T) bool
	// OnError получает ошибки декодирования и ошибку завершения подписки
	OnError func(error)
	Logger  *slog.Logger
	Query   api.Query
	// KeepOnFailure не откатывать оптимистичные изменения при ошибке записи
	KeepOnFailure bool
}

// Synchronizer хранит локальную коллекцию одной подписки.
//
// Все изменения коллекции проходят под одним мьютексом: пакеты из потока и
// оптимистичные записи. Слушатели вызываются вне мьютекса, но строго в порядке
// версий. Слушатель не должен синхронно вызывать Mutate, Stop или OnBatch.
type Synchronizer[T any] struct {
	feed   Feed
	logger *slog.Logger
	opts   Options[T]

	mu       sync.Mutex
	items    []T
	index    map[string]int
	view     []T
	owners   map[string]ulid.ULID
	pending  map[ulid.ULID]*pendingOp[T]
	err      error
	sub      Subscription
	done     chan struct{}
	version  uint64
	state    State
	starting bool

	// notifyMu берется до освобождения mu и держится на время рассылки,
	// поэтому слушатели видят обновления в порядке версий
	notifyMu     sync.Mutex
	listenersMu  sync.Mutex
	listeners    map[uint64]func(Update[T])
	nextListener uint64

	stopOnce sync.Once
}

// New создает синхронизатор. feed может быть nil, если пакеты подаются
// напрямую через OnBatch.
func New[T any](feed Feed, opts Options[T]) (*Synchronizer[T], error) {
	if opts.Decode == nil {
		return nil, errors.New("livesync: Decode is required")
	}
	if opts.ID == nil {
		return nil, errors.New("livesync: ID is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Synchronizer[T]{
		feed:      feed,
		opts:      opts,
		logger:    logger.With("query", opts.Query.Key()),
		index:     make(map[string]int),
		owners:    make(map[string]ulid.ULID),
		pending:   make(map[ulid.ULID]*pendingOp[T]),
		listeners: make(map[uint64]func(Update[T])),
	}, nil
}

// Start открывает подписку и запускает цикл применения пакетов
func (s *Synchronizer[T]) Start(ctx context.Context) error {
	if s.feed == nil {
		return errors.New("livesync: no feed configured")
	}

	s.mu.Lock()
	switch {
	case s.state == StateUnsubscribed:
		s.mu.Unlock()
		return ErrUnsubscribed
	case s.starting || s.sub != nil:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.starting = true
	s.mu.Unlock()

	sub, err := s.feed.Subscribe(ctx, s.opts.Query)

	s.mu.Lock()
	s.starting = false
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", s.opts.Query.Path, err)
	}
	// Stop мог быть вызван, пока шла подписка
	if s.state == StateUnsubscribed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return ErrUnsubscribed
	}
	s.sub = sub
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Debug("subscription started")
	go s.run(sub, done)
	return nil
}

func (s *Synchronizer[T]) run(sub Subscription, done chan struct{}) {
	defer close(done)

	for batch := range sub.Batches() {
		s.OnBatch(batch)
	}

	if err := sub.Err(); err != nil {
		s.fail(err)
	}
}

// Stop закрывает подписку. После возврата слушатели больше не вызываются.
// Повторные вызовы ничего не делают.
func (s *Synchronizer[T]) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.state = StateUnsubscribed
		sub, done := s.sub, s.done
		s.mu.Unlock()

		// дожидаемся рассылки, начатой до смены состояния
		s.notifyMu.Lock()
		//nolint:staticcheck // пустая критическая секция
		s.notifyMu.Unlock()

		if sub != nil {
			sub.Unsubscribe()
			<-done
		}
		s.logger.Debug("subscription stopped")
	})
}

// OnBatch применяет пакет изменений к локальной коллекции.
//
// Начальный пакет заменяет коллекцию целиком. Остальные применяются по одному
// изменению в порядке доставки. Документы, которые не удалось декодировать,
// пропускаются и передаются в OnError.
func (s *Synchronizer[T]) OnBatch(batch api.SnapshotBatch) {
	s.mu.Lock()
	if s.state == StateUnsubscribed || s.state == StateFailed {
		s.mu.Unlock()
		return
	}

	var (
		diffs []Diff[T]
		errs  []error
	)
	if batch.Initial {
		diffs, errs = s.replaceLocked(batch.Changes)
	} else {
		for _, change := range batch.Changes {
			diff, ok, err := s.applyLocked(change)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if ok {
				diffs = append(diffs, diff)
			}
		}
	}
	s.state = StatePopulated

	upd := s.commitLocked(diffs, batch.Initial)
	s.notifyMu.Lock()
	s.mu.Unlock()
	s.dispatch(upd)
	s.notifyMu.Unlock()

	for _, err := range errs {
		s.reportError(err)
	}
}

// replaceLocked полная замена коллекции содержимым начального пакета
func (s *Synchronizer[T]) replaceLocked(changes []api.Change) ([]Diff[T], []error) {
	items := make([]T, 0, len(changes))
	index := make(map[string]int, len(changes))
	diffs := make([]Diff[T], 0, len(changes))
	var errs []error

	for _, change := range changes {
		if change.Kind == api.ChangeRemoved {
			continue
		}
		entity, err := s.opts.Decode(change.Document)
		if err != nil {
			errs = append(errs, s.decodeError(change, err))
			continue
		}
		id := s.opts.ID(entity)
		if i, ok := index[id]; ok {
			items[i] = entity
			continue
		}
		index[id] = len(items)
		items = append(items, entity)
		diffs = append(diffs, Diff[T]{Kind: api.ChangeAdded, ID: id, Entity: entity})
	}

	s.items = items
	s.index = index
	// данные с сервера авторитетны, оптимистичные записи больше ничем не владеют
	clear(s.owners)

	return diffs, errs
}

// applyLocked применяет одно инкрементальное изменение.
// ok = false, если изменение ни на что не повлияло.
func (s *Synchronizer[T]) applyLocked(change api.Change) (Diff[T], bool, error) {
	id := change.Document.ID
	delete(s.owners, id)

	switch change.Kind {
	case api.ChangeAdded:
		entity, err := s.opts.Decode(change.Document)
		if err != nil {
			return Diff[T]{}, false, s.decodeError(change, err)
		}
		if i, ok := s.index[id]; ok {
			// эхо оптимистичной вставки или повторный Added
			s.items[i] = entity
			return Diff[T]{Kind: api.ChangeModified, ID: id, Entity: entity}, true, nil
		}
		s.index[id] = len(s.items)
		s.items = append(s.items, entity)
		return Diff[T]{Kind: api.ChangeAdded, ID: id, Entity: entity}, true, nil

	case api.ChangeModified:
		i, ok := s.index[id]
		if !ok {
			s.logger.Debug("modified change for unknown id ignored", "id", id)
			return Diff[T]{}, false, nil
		}
		entity, err := s.opts.Decode(change.Document)
		if err != nil {
			return Diff[T]{}, false, s.decodeError(change, err)
		}
		if s.opts.Merge != nil {
			entity = s.opts.Merge(s.items[i], entity)
		}
		s.items[i] = entity
		return Diff[T]{Kind: api.ChangeModified, ID: id, Entity: entity}, true, nil

	case api.ChangeRemoved:
		removed, ok := s.removeLocked(id)
		if !ok {
			return Diff[T]{}, false, nil
		}
		return Diff[T]{Kind: api.ChangeRemoved, ID: id, Entity: removed}, true, nil

	default:
		return Diff[T]{}, false, s.decodeError(change, fmt.Errorf("unknown change kind %q", change.Kind))
	}
}

// upsertLocked вставляет или заменяет запись, возвращает true для новой записи
func (s *Synchronizer[T]) upsertLocked(id string, entity T) bool {
	if i, ok := s.index[id]; ok {
		s.items[i] = entity
		return false
	}
	s.index[id] = len(s.items)
	s.items = append(s.items, entity)
	return true
}

// insertAtLocked вставляет новую запись на позицию pos (или в конец)
func (s *Synchronizer[T]) insertAtLocked(pos int, entity T) {
	if pos < 0 || pos > len(s.items) {
		pos = len(s.items)
	}
	s.items = slices.Insert(s.items, pos, entity)
	s.reindexLocked(pos)
}

func (s *Synchronizer[T]) removeLocked(id string) (T, bool) {
	i, ok := s.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	removed := s.items[i]
	s.items = slices.Delete(s.items, i, i+1)
	delete(s.index, id)
	s.reindexLocked(i)
	return removed, true
}

func (s *Synchronizer[T]) reindexLocked(from int) {
	for i := from; i < len(s.items); i++ {
		s.index[s.opts.ID(s.items[i])] = i
	}
}

// commitLocked пересчитывает представление и готовит уведомление
func (s *Synchronizer[T]) commitLocked(diffs []Diff[T], initial bool) Update[T] {
	s.view = derive(s.items, s.opts.Filter, s.opts.Less)
	s.version++
	return Update[T]{
		View:    slices.Clone(s.view),
		Diffs:   diffs,
		Version: s.version,
		State:   s.state,
		Err:     s.err,
		Initial: initial,
	}
}

func (s *Synchronizer[T]) fail(err error) {
	s.mu.Lock()
	if s.state == StateUnsubscribed {
		s.mu.Unlock()
		return
	}
	subErr := &SubscriptionError{Query: s.opts.Query.Key(), Err: err}
	s.state = StateFailed
	s.err = subErr
	upd := s.commitLocked(nil, false)
	s.notifyMu.Lock()
	s.mu.Unlock()
	s.dispatch(upd)
	s.notifyMu.Unlock()

	s.logger.Error("subscription failed", "error", err)
	s.reportError(subErr)
}

func (s *Synchronizer[T]) decodeError(change api.Change, err error) error {
	return &DecodeError{
		Path: change.Document.Path,
		ID:   change.Document.ID,
		Kind: change.Kind,
		Err:  err,
	}
}

func (s *Synchronizer[T]) reportError(err error) {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		s.logger.Warn("skipping malformed document", "id", decodeErr.ID, "error", decodeErr.Err)
	}
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}

// Listen регистрирует слушателя изменений. Возвращает функцию отписки.
func (s *Synchronizer[T]) Listen(fn func(Update[T])) (cancel func()) {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Synchronizer[T]) dispatch(upd Update[T]) {
	s.listenersMu.Lock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Update[T]), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(upd)
	}
}

// View возвращает производное представление, вычисленное после последнего изменения
func (s *Synchronizer[T]) View() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.view)
}

// Select строит произвольное представление локальной коллекции.
// Чистая функция от текущего состояния коллекции.
func (s *Synchronizer[T]) Select(filter func(T) bool, less func(a, b T) bool) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return derive(s.items, filter, less)
}

// Items возвращает локальную коллекцию в порядке доставки
func (s *Synchronizer[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Get возвращает запись по ID
func (s *Synchronizer[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.items[i], true
}

// Len количество записей в локальной коллекции
func (s *Synchronizer[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// State текущее состояние
func (s *Synchronizer[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Version номер последнего пересчета представления
func (s *Synchronizer[T]) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Err ошибка завершения подписки, nil пока подписка жива или остановлена штатно
func (s *Synchronizer[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Query запрос подписки
func (s *Synchronizer[T]) Query() api.Query {
	return s.opts.Query
}

func derive[T any](items []T, filter func(T) bool, less func(a, b T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if filter == nil || filter(item) {
			out = append(out, item)
		}
	}
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool {
			return less(out[i], out[j])
		})
	}
	return out
}
