package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tripsync/internal/server/storage"
	"github.com/iudanet/tripsync/pkg/api"
)

func set(collection, id, data string) storage.Write {
	return storage.Write{Op: api.WriteSet, Collection: collection, ID: id, Data: json.RawMessage(data)}
}

func del(collection, id string) storage.Write {
	return storage.Write{Op: api.WriteDelete, Collection: collection, ID: id}
}

func docFields(t *testing.T, doc api.Document) map[string]any {
	t.Helper()
	var fields map[string]any
	require.NoError(t, json.Unmarshal(doc.Data, &fields))
	return fields
}

func TestDocumentStorage_ApplySet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	events, err := s.Apply(ctx, []storage.Write{set("trips", "t1", `{"name":"Paris","members":["u1"]}`)}, now)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Created)
	assert.False(t, events[0].Deleted)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, "t1", events[0].Document.ID)
	assert.Equal(t, "trips", events[0].Document.Path)

	later := now.Add(time.Minute)
	events, err = s.Apply(ctx, []storage.Write{set("trips", "t1", `{"name":"Lyon"}`)}, later)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Created)
	assert.Equal(t, int64(2), events[0].Seq)

	doc, err := s.GetDocument(ctx, "trips", "t1")
	require.NoError(t, err)
	fields := docFields(t, *doc)
	assert.Equal(t, "Lyon", fields["name"])
	// без merge документ заменяется целиком
	assert.NotContains(t, fields, "members")
	assert.True(t, now.Equal(doc.CreatedAt))
	assert.True(t, later.Equal(doc.UpdatedAt))
	assert.Equal(t, int64(2), doc.Seq)
}

func TestDocumentStorage_ApplyMergeAndServerTimestamp(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	_, err := s.Apply(ctx, []storage.Write{set("trips/t1/messages", "m1", `{"content":"hi","sender_id":"u1"}`)}, now)
	require.NoError(t, err)

	w := set("trips/t1/messages", "m1", `{"content":"hello"}`)
	w.Merge = true
	w.ServerTimestamps = []string{"send_time"}
	events, err := s.Apply(ctx, []storage.Write{w}, now.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, events, 1)

	fields := docFields(t, events[0].Document)
	assert.Equal(t, "hello", fields["content"])
	assert.Equal(t, "u1", fields["sender_id"])

	sendTime, err := time.Parse(time.RFC3339Nano, fields["send_time"].(string))
	require.NoError(t, err)
	assert.True(t, sendTime.Equal(now.Add(time.Second)))
}

func TestDocumentStorage_ApplyDelete(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	now := time.Now()
	_, err := s.Apply(ctx, []storage.Write{set("trips", "t1", `{"name":"Paris"}`)}, now)
	require.NoError(t, err)

	events, err := s.Apply(ctx, []storage.Write{del("trips", "t1"), del("trips", "missing")}, now)
	require.NoError(t, err)
	require.Len(t, events, 1, "delete of a missing document produces no event")
	assert.True(t, events[0].Deleted)
	assert.Equal(t, "t1", events[0].Document.ID)
	assert.Equal(t, "Paris", docFields(t, events[0].Document)["name"])

	_, err = s.GetDocument(ctx, "trips", "t1")
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)
}

func TestDocumentStorage_ApplyIsAtomic(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.Apply(ctx, []storage.Write{
		set("trips/t1/places", "p1", `{"name":"A"}`),
		set("trips/t1/places", "p2", `[1,2]`),
	}, time.Now())
	assert.ErrorIs(t, err, storage.ErrInvalidDocument)

	_, err = s.GetDocument(ctx, "trips/t1/places", "p1")
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)

	docs, seq, err := s.Query(ctx, api.Query{Path: "trips/t1/places"})
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, seq)
}

func TestDocumentStorage_ApplyInvalidWrites(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	tests := []struct {
		name  string
		write storage.Write
	}{
		{name: "document path as collection", write: set("trips/t1", "x", `{}`)},
		{name: "empty id", write: set("trips", "", `{}`)},
		{name: "bad id", write: set("trips", "a/b", `{}`)},
		{name: "scalar data", write: set("trips", "t1", `"text"`)},
		{name: "unknown op", write: storage.Write{Op: "patch", Collection: "trips", ID: "t1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Apply(ctx, []storage.Write{tt.write}, time.Now())
			assert.ErrorIs(t, err, storage.ErrInvalidDocument)
		})
	}
}

func TestDocumentStorage_Query(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	writes := []storage.Write{
		set("trips", "t1", `{"name":"Paris","members":["u1","u2"],"start_date":"2026-07-10T00:00:00Z"}`),
		set("trips", "t2", `{"name":"Rome","members":["u2"],"start_date":"2026-06-01T00:00:00Z"}`),
		set("trips", "t3", `{"name":"Oslo","members":["u1"],"start_date":"2026-06-15T00:00:00Z"}`),
		set("trips/t1/places", "p1", `{"name":"Louvre","is_arranged":false}`),
		set("trips/t1/places", "p2", `{"name":"Tower","is_arranged":true}`),
	}
	for i, w := range writes {
		_, err := s.Apply(ctx, []storage.Write{w}, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	ids := func(docs []api.Document) []string {
		out := make([]string, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.ID)
		}
		return out
	}

	tests := []struct {
		name  string
		query api.Query
		want  []string
	}{
		{
			name:  "whole collection in creation order",
			query: api.Query{Path: "trips"},
			want:  []string{"t1", "t2", "t3"},
		},
		{
			name:  "array contains with order",
			query: api.Query{Path: "trips"}.Where("members", api.OpArrayContains, "u1").Order("start_date", false),
			want:  []string{"t3", "t1"},
		},
		{
			name:  "descending order",
			query: api.Query{Path: "trips"}.Order("name", true),
			want:  []string{"t2", "t1", "t3"},
		},
		{
			name:  "equal on bool",
			query: api.Query{Path: "trips/t1/places"}.Where("is_arranged", api.OpEqual, false),
			want:  []string{"p1"},
		},
		{
			name:  "equal on string",
			query: api.Query{Path: "trips"}.Where("name", api.OpEqual, "Rome"),
			want:  []string{"t2"},
		},
		{
			name:  "array contains on scalar field",
			query: api.Query{Path: "trips"}.Where("name", api.OpArrayContains, "Rome"),
			want:  []string{},
		},
		{
			name:  "other collection is isolated",
			query: api.Query{Path: "trips/t2/places"},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, seq, err := s.Query(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(docs))
			assert.Equal(t, int64(len(writes)), seq)

			// результат SQL совпадает с проверкой фильтров в памяти
			for _, d := range docs {
				assert.True(t, tt.query.Matches(docFields(t, d)))
			}
		})
	}
}

func TestDocumentStorage_QueryInvalid(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, _, err := s.Query(ctx, api.Query{Path: "trips/t1"})
	assert.ErrorIs(t, err, api.ErrInvalidPath)
}

func TestDocumentStorage_PruneChanges(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	old := time.Now().Add(-48 * time.Hour)
	_, err := s.Apply(ctx, []storage.Write{set("trips", "t1", `{}`)}, old)
	require.NoError(t, err)
	_, err = s.Apply(ctx, []storage.Write{set("trips", "t2", `{}`)}, time.Now())
	require.NoError(t, err)

	count, err := s.PruneChanges(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// последовательность не сбрасывается после очистки журнала
	_, seq, err := s.Query(ctx, api.Query{Path: "trips"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	events, err := s.Apply(ctx, []storage.Write{set("trips", "t3", `{}`)}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), events[0].Seq)
}
