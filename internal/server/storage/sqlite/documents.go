package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/iudanet/tripsync/internal/server/storage"
	"github.com/iudanet/tripsync/pkg/api"
)

// serverTimeLayout фиксированная ширина, чтобы строки сортировались как время
const serverTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var documentColumns = []string{"id", "path", "data", "created_at", "updated_at", "seq"}

// Apply atomically applies writes in one transaction
func (s *Storage) Apply(ctx context.Context, writes []storage.Write, now time.Time) ([]storage.Event, error) {
	now = now.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	events := make([]storage.Event, 0, len(writes))
	for i, w := range writes {
		ev, ok, err := applyWrite(ctx, tx, w, now)
		if err != nil {
			return nil, fmt.Errorf("write %d (%s/%s): %w", i, w.Collection, w.ID, err)
		}
		if ok {
			events = append(events, ev)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return events, nil
}

func applyWrite(ctx context.Context, tx querier, w storage.Write, now time.Time) (storage.Event, bool, error) {
	if _, _, err := api.SplitDocumentPath(api.DocumentPath(w.Collection, w.ID)); err != nil {
		return storage.Event{}, false, fmt.Errorf("%w: %w", storage.ErrInvalidDocument, err)
	}

	existing, err := getDocument(ctx, tx, w.Collection, w.ID)
	if err != nil && !errors.Is(err, storage.ErrDocumentNotFound) {
		return storage.Event{}, false, err
	}

	switch w.Op {
	case api.WriteDelete:
		if existing == nil {
			return storage.Event{}, false, nil
		}
		seq, err := appendChange(ctx, tx, w.Collection, w.ID, api.ChangeRemoved, nil, now)
		if err != nil {
			return storage.Event{}, false, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ? AND id = ?`, w.Collection, w.ID); err != nil {
			return storage.Event{}, false, fmt.Errorf("failed to delete document: %w", err)
		}
		existing.Seq = seq
		return storage.Event{Document: *existing, Seq: seq, Deleted: true}, true, nil

	case api.WriteSet:
		data, err := buildData(existing, w, now)
		if err != nil {
			return storage.Event{}, false, err
		}

		doc := api.Document{
			ID:        w.ID,
			Path:      w.Collection,
			Data:      data,
			CreatedAt: now,
			UpdatedAt: now,
		}
		kind := api.ChangeAdded
		if existing != nil {
			doc.CreatedAt = existing.CreatedAt
			kind = api.ChangeModified
		}

		seq, err := appendChange(ctx, tx, w.Collection, w.ID, kind, data, now)
		if err != nil {
			return storage.Event{}, false, err
		}
		doc.Seq = seq

		query := `
			INSERT INTO documents (path, id, data, created_at, updated_at, seq)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (path, id) DO UPDATE SET
				data = excluded.data,
				updated_at = excluded.updated_at,
				seq = excluded.seq
		`
		if _, err := tx.ExecContext(ctx, query,
			doc.Path,
			doc.ID,
			string(doc.Data),
			doc.CreatedAt.UnixNano(),
			doc.UpdatedAt.UnixNano(),
			doc.Seq,
		); err != nil {
			return storage.Event{}, false, fmt.Errorf("failed to upsert document: %w", err)
		}

		return storage.Event{Document: doc, Seq: seq, Created: existing == nil}, true, nil

	default:
		return storage.Event{}, false, fmt.Errorf("%w: unknown op %q", storage.ErrInvalidDocument, w.Op)
	}
}

// buildData собирает итоговый JSON документа: merge с существующими полями
// и серверное время
func buildData(existing *api.Document, w storage.Write, now time.Time) (json.RawMessage, error) {
	fields, err := decodeObject(w.Data)
	if err != nil {
		return nil, err
	}

	if w.Merge && existing != nil {
		merged, err := decodeObject(existing.Data)
		if err != nil {
			return nil, err
		}
		for k, v := range fields {
			merged[k] = v
		}
		fields = merged
	}

	if len(w.ServerTimestamps) > 0 {
		stamp, err := json.Marshal(now.Format(serverTimeLayout))
		if err != nil {
			return nil, err
		}
		for _, field := range w.ServerTimestamps {
			fields[field] = stamp
		}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

func decodeObject(data json.RawMessage) (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fields, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: data must be a JSON object", storage.ErrInvalidDocument)
	}
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidDocument, err)
	}
	return fields, nil
}

func appendChange(ctx context.Context, tx querier, path, id string, kind api.ChangeKind, data json.RawMessage, now time.Time) (int64, error) {
	var payload sql.NullString
	if data != nil {
		payload = sql.NullString{String: string(data), Valid: true}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO changes (path, doc_id, kind, data, at) VALUES (?, ?, ?, ?, ?)`,
		path, id, string(kind), payload, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to append change: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get change seq: %w", err)
	}
	return seq, nil
}

// GetDocument retrieves a single document
func (s *Storage) GetDocument(ctx context.Context, collection, id string) (*api.Document, error) {
	return getDocument(ctx, s.db, collection, id)
}

func getDocument(ctx context.Context, q querier, collection, id string) (*api.Document, error) {
	query, args, err := squirrel.
		Select(documentColumns...).
		From("documents").
		Where(squirrel.Eq{"path": collection, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	doc, err := scanDocument(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// Query returns documents of the collection matching q
func (s *Storage) Query(ctx context.Context, q api.Query) ([]api.Document, int64, error) {
	if err := q.Validate(); err != nil {
		return nil, 0, err
	}

	query, args, err := buildQuery(q).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build query: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	seq, err := lastSeq(ctx, tx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := make([]api.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return docs, seq, nil
}

func buildQuery(q api.Query) squirrel.SelectBuilder {
	sb := squirrel.
		Select(documentColumns...).
		From("documents").
		Where(squirrel.Eq{"path": q.Path})

	for _, f := range q.Filters {
		jsonPath := "$." + f.Field
		switch f.Op {
		case api.OpEqual:
			if f.Value == nil {
				sb = sb.Where("json_type(data, ?) = 'null'", jsonPath)
				continue
			}
			sb = sb.Where("json_extract(data, ?) = ?", jsonPath, sqlValue(f.Value))
		case api.OpArrayContains:
			sb = sb.Where(
				"json_type(data, ?) = 'array' AND EXISTS (SELECT 1 FROM json_each(data, ?) WHERE json_each.value = ?)",
				jsonPath, jsonPath, sqlValue(f.Value))
		}
	}

	if q.OrderBy != "" {
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		sb = sb.OrderByClause("json_extract(data, ?) "+direction, "$."+q.OrderBy)
	}
	return sb.OrderBy("created_at", "id")
}

// sqlValue приводит значение фильтра к виду, который возвращает json_extract
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func lastSeq(ctx context.Context, q querier) (int64, error) {
	var seq int64
	err := q.QueryRowContext(ctx, `SELECT seq FROM sqlite_sequence WHERE name = 'changes'`).Scan(&seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read last seq: %w", err)
	}
	return seq, nil
}

// PruneChanges removes change log records older than before
func (s *Storage) PruneChanges(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM changes WHERE at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune changes: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

func scanDocument(row rowScanner) (*api.Document, error) {
	doc := &api.Document{}
	var (
		data                 string
		createdAt, updatedAt int64
	)

	if err := row.Scan(&doc.ID, &doc.Path, &data, &createdAt, &updatedAt, &doc.Seq); err != nil {
		return nil, err
	}

	doc.Data = json.RawMessage(data)
	doc.CreatedAt = fromUnixNano(createdAt)
	doc.UpdatedAt = fromUnixNano(updatedAt)
	return doc, nil
}
