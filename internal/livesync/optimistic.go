package livesync

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/iudanet/tripsync/pkg/api"
)

// Mutation локальное изменение, которое применяется до подтверждения сервером
type Mutation[T any] struct {
	Upserts  []T
	Removals []string
}

// Commit запись на сервер, соответствующая оптимистичному изменению
type Commit func(ctx context.Context) error

// pendingOp состояние записей до оптимистичного изменения
type pendingOp[T any] struct {
	prev  map[string]prevEntry[T]
	order []string
}

type prevEntry[T any] struct {
	entity  T
	pos     int
	existed bool
}

// Mutate применяет изменение к локальной коллекции сразу, затем выполняет commit.
//
// Каждое изменение получает токен отложенной операции. Если commit вернул
// ошибку, записи, которые все еще принадлежат этому токену, возвращаются к
// исходному состоянию (если не включен KeepOnFailure) и возвращается *WriteError.
// Изменение из потока для той же записи снимает владение: серверное состояние
// не откатывается.
func (s *Synchronizer[T]) Mutate(ctx context.Context, m Mutation[T], commit Commit) error {
	token, err := s.applyOptimistic(m)
	if err != nil {
		return err
	}

	if err := commit(ctx); err != nil {
		rolledBack := false
		if s.opts.KeepOnFailure {
			s.settle(token)
		} else {
			rolledBack = s.rollback(token)
		}
		s.logger.Warn("optimistic write failed",
			"token", token.String(),
			"rolled_back", rolledBack,
			"error", err)
		return &WriteError{Token: token.String(), Err: err, RolledBack: rolledBack}
	}

	s.settle(token)
	return nil
}

// Pending количество оптимистичных изменений, ожидающих ответа сервера
func (s *Synchronizer[T]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Synchronizer[T]) applyOptimistic(m Mutation[T]) (ulid.ULID, error) {
	for _, entity := range m.Upserts {
		if s.opts.ID(entity) == "" {
			return ulid.ULID{}, ErrMissingID
		}
	}

	s.mu.Lock()
	if s.state == StateUnsubscribed {
		s.mu.Unlock()
		return ulid.ULID{}, ErrUnsubscribed
	}

	token := ulid.Make()
	op := &pendingOp[T]{prev: make(map[string]prevEntry[T])}
	remember := func(id string) {
		if _, ok := op.prev[id]; ok {
			return
		}
		entry := prevEntry[T]{pos: -1}
		if i, ok := s.index[id]; ok {
			entry = prevEntry[T]{entity: s.items[i], pos: i, existed: true}
		}
		op.prev[id] = entry
		op.order = append(op.order, id)
	}

	diffs := make([]Diff[T], 0, len(m.Upserts)+len(m.Removals))
	for _, entity := range m.Upserts {
		id := s.opts.ID(entity)
		remember(id)
		kind := api.ChangeModified
		if s.upsertLocked(id, entity) {
			kind = api.ChangeAdded
		}
		s.owners[id] = token
		diffs = append(diffs, Diff[T]{Kind: kind, ID: id, Entity: entity})
	}
	for _, id := range m.Removals {
		remember(id)
		removed, ok := s.removeLocked(id)
		s.owners[id] = token
		if ok {
			diffs = append(diffs, Diff[T]{Kind: api.ChangeRemoved, ID: id, Entity: removed})
		}
	}
	s.pending[token] = op

	upd := s.commitLocked(diffs, false)
	s.notifyMu.Lock()
	s.mu.Unlock()
	s.dispatch(upd)
	s.notifyMu.Unlock()

	return token, nil
}

// settle снимает отложенную операцию после ответа сервера
func (s *Synchronizer[T]) settle(token ulid.ULID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.pending[token]
	if !ok {
		return
	}
	delete(s.pending, token)
	for _, id := range op.order {
		if s.owners[id] == token {
			delete(s.owners, id)
		}
	}
}

// rollback возвращает записи, которыми все еще владеет token, к исходному состоянию
func (s *Synchronizer[T]) rollback(token ulid.ULID) bool {
	s.mu.Lock()
	op, ok := s.pending[token]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.pending, token)
	if s.state == StateUnsubscribed {
		s.mu.Unlock()
		return false
	}

	var diffs []Diff[T]
	// в обратном порядке, чтобы исходные позиции восстанавливались корректно
	for i := len(op.order) - 1; i >= 0; i-- {
		id := op.order[i]
		if owner, owned := s.owners[id]; !owned || owner != token {
			continue
		}
		delete(s.owners, id)

		prev := op.prev[id]
		if !prev.existed {
			if removed, ok := s.removeLocked(id); ok {
				diffs = append(diffs, Diff[T]{Kind: api.ChangeRemoved, ID: id, Entity: removed})
			}
			continue
		}
		if _, ok := s.index[id]; ok {
			s.upsertLocked(id, prev.entity)
			diffs = append(diffs, Diff[T]{Kind: api.ChangeModified, ID: id, Entity: prev.entity})
			continue
		}
		s.insertAtLocked(prev.pos, prev.entity)
		diffs = append(diffs, Diff[T]{Kind: api.ChangeAdded, ID: id, Entity: prev.entity})
	}

	if len(diffs) == 0 {
		s.mu.Unlock()
		return false
	}

	upd := s.commitLocked(diffs, false)
	s.notifyMu.Lock()
	s.mu.Unlock()
	s.dispatch(upd)
	s.notifyMu.Unlock()

	return true
}
