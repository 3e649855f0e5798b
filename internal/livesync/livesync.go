// Package livesync keeps a local ordered collection of entities consistent with
// a backend change feed.
//
// A Synchronizer owns one Local Collection for one query scope (for example the
// places of a single trip). It applies SnapshotBatch values from a Feed in
// arrival order, re-derives a filtered and sorted view after every batch and
// notifies listeners. Local optimistic mutations go through the same mutation
// path and are rolled back when the backend write fails.
//
// A Registry shares one Synchronizer per logical resource between consumers and
// tears the feed subscription down when the last consumer releases it.
package livesync

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/tripsync/pkg/api"
)

//go:generate moq -out feed_mock.go . Feed Subscription

// Feed открывает подписки на изменения коллекции
type Feed interface {
	// Subscribe открывает подписку. ctx ограничивает только установку соединения,
	// время жизни подписки заканчивается вызовом Unsubscribe или ошибкой потока.
	Subscribe(ctx context.Context, q api.Query) (Subscription, error)
}

// Subscription поток пакетов одной подписки.
//
// Канал Batches закрывается, когда поток завершен. Err возвращает причину
// завершения или nil, если подписка закрыта через Unsubscribe.
// Unsubscribe идемпотентен; после его возврата пакеты больше не доставляются.
type Subscription interface {
	Batches() <-chan api.SnapshotBatch
	Err() error
	Unsubscribe()
}

// State состояние синхронизатора
type State int

const (
	// StateEmpty данные еще не получены
	StateEmpty State = iota
	// StatePopulated получен хотя бы один пакет
	StatePopulated
	// StateFailed поток подписки завершился с ошибкой
	StateFailed
	// StateUnsubscribed синхронизатор остановлен, пакеты игнорируются
	StateUnsubscribed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePopulated:
		return "populated"
	case StateFailed:
		return "failed"
	case StateUnsubscribed:
		return "unsubscribed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrUnsubscribed синхронизатор уже остановлен
	ErrUnsubscribed = errors.New("synchronizer is unsubscribed")
	// ErrAlreadyStarted повторный вызов Start
	ErrAlreadyStarted = errors.New("synchronizer already started")
	// ErrMissingID оптимистичная запись сущности без ID
	ErrMissingID = errors.New("entity has no id")
)

// DecodeError документ из пакета не удалось декодировать.
// Документ пропускается, подписка продолжает работу.
type DecodeError struct {
	Err  error
	Path string
	ID   string
	Kind api.ChangeKind
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s change for %s/%s: %v", e.Kind, e.Path, e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// SubscriptionError поток подписки завершился с ошибкой. Для этой подписки
// ошибка окончательная.
type SubscriptionError struct {
	Err   error
	Query string
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %q failed: %v", e.Query, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// WriteError запись на сервер после оптимистичного изменения не прошла
type WriteError struct {
	Err        error
	Token      string // Token токен отложенной операции
	RolledBack bool   // RolledBack локальное состояние возвращено к исходному
}

func (e *WriteError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("write %s failed, local change rolled back: %v", e.Token, e.Err)
	}
	return fmt.Sprintf("write %s failed: %v", e.Token, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Diff одно изменение локальной коллекции
type Diff[T any] struct {
	Entity T
	ID     string
	Kind   api.ChangeKind
}

// Update уведомление об изменении коллекции.
// View и Diffs общие для всех слушателей и не должны изменяться.
type Update[T any] struct {
	View    []T
	Diffs   []Diff[T]
	Err     error
	Version uint64
	State   State
	Initial bool
}
