package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/iudanet/tripsync/pkg/api"
)

//go:generate moq -out documents_mock.go . DocumentStorage

// Write одна операция записи документа
type Write struct {
	Op         api.WriteOp
	Collection string // путь коллекции
	ID         string
	Data       json.RawMessage
	// ServerTimestamps поля, которые заполняются временем записи
	ServerTimestamps []string
	Merge            bool
}

// Event зафиксированное изменение документа.
// Для удаления Document содержит последнее состояние документа.
type Event struct {
	Document api.Document
	Seq      int64
	Created  bool
	Deleted  bool
}

// DocumentStorage defines interface for document persistence
type DocumentStorage interface {
	// Apply atomically applies writes in one transaction.
	// Every applied write gets its own sequence number; events are returned
	// in commit order. Deleting a missing document produces no event.
	Apply(ctx context.Context, writes []Write, now time.Time) ([]Event, error)

	// GetDocument retrieves a single document
	// Returns ErrDocumentNotFound if document doesn't exist
	GetDocument(ctx context.Context, collection, id string) (*api.Document, error)

	// Query returns documents of the collection matching q together with
	// the last sequence number visible to the same read transaction
	Query(ctx context.Context, q api.Query) ([]api.Document, int64, error)

	// PruneChanges removes change log records older than before
	// Returns number of deleted records
	PruneChanges(ctx context.Context, before time.Time) (int, error)
}
