package boltdb

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tripsync/internal/client/storage"
	"github.com/iudanet/tripsync/pkg/api"
)

func TestViews_SaveGetClear(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	key := api.Query{Path: "trips"}.Where("members", api.OpArrayContains, "u1").Key()

	_, err := store.GetView(ctx, key)
	assert.ErrorIs(t, err, storage.ErrViewNotFound)

	view := &storage.CachedView{
		SavedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Documents: []api.Document{
			{ID: "t1", Path: "trips", Data: json.RawMessage(`{"name":"Paris"}`), Seq: 3},
		},
		Seq: 3,
	}
	require.NoError(t, store.SaveView(ctx, key, view))

	got, err := store.GetView(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Seq)
	assert.True(t, view.SavedAt.Equal(got.SavedAt))
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "t1", got.Documents[0].ID)
	assert.JSONEq(t, `{"name":"Paris"}`, string(got.Documents[0].Data))

	require.NoError(t, store.ClearViews(ctx))
	_, err = store.GetView(ctx, key)
	assert.ErrorIs(t, err, storage.ErrViewNotFound)

	// после очистки запись снова работает
	require.NoError(t, store.SaveView(ctx, key, view))
}

func TestViews_EmptyKey(t *testing.T) {
	store := createTestStorage(t)
	assert.Error(t, store.SaveView(context.Background(), "", &storage.CachedView{}))
}
