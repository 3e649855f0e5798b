package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tripsync/internal/livesync"
	"github.com/iudanet/tripsync/internal/models"
	"github.com/iudanet/tripsync/pkg/api"
)

func placeID(p models.Place) string { return p.ID }

func at(d, hour, minute int) time.Time {
	return time.Date(2026, 7, d, hour, minute, 0, 0, time.UTC)
}

var testTrip = models.Trip{ID: "t1", Name: "Paris", StartDate: day(1), Days: 3, Members: []string{"u1"}}

func openItinerary(t *testing.T, tp *testPlanner, loc *time.Location, places ...models.Place) *Itinerary {
	t.Helper()
	it, err := tp.Itinerary(context.Background(), testTrip, loc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = it.Close(context.Background()) })

	path := PlacesQuery(testTrip.ID).Path
	docs := make([]api.Document, 0, len(places))
	for _, p := range places {
		docs = append(docs, doc(t, path, p.ID, p))
	}
	tp.feed.push(t, path, initial(docs...))
	wait(t, it)
	return it
}

func samplePlaces() []models.Place {
	created := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	return []models.Place{
		{ID: "p1", TripID: "t1", Name: "Louvre", CreatedAt: created.Add(10 * time.Hour), DurationMinutes: 120},
		{ID: "p2", TripID: "t1", Name: "Orsay", CreatedAt: created.Add(9 * time.Hour), DurationMinutes: 90},
		{ID: "p3", TripID: "t1", Name: "Eiffel", IsArranged: true, ArrangedTime: at(1, 11, 0), DurationMinutes: 30},
		{ID: "p4", TripID: "t1", Name: "Cafe", IsArranged: true, ArrangedTime: at(1, 9, 0), DurationMinutes: 45},
		{ID: "p5", TripID: "t1", Name: "Versailles", IsArranged: true, ArrangedTime: at(2, 10, 0), DurationMinutes: 240},
	}
}

func TestItinerary_Views(t *testing.T) {
	tp := newTestPlanner(t)
	it := openItinerary(t, tp, nil, samplePlaces()...)

	assert.Equal(t, []string{"p2", "p1"}, ids(it.WishList(), placeID))
	assert.Equal(t, []string{"p4", "p3"}, ids(it.Day(0), placeID))
	assert.Equal(t, []string{"p5"}, ids(it.Day(1), placeID))
	assert.Empty(t, it.Day(2))
	assert.Len(t, it.Places(), 5)
	assert.Equal(t, "Paris", it.Trip().Name)
}

func TestItinerary_WishListScenario(t *testing.T) {
	tp := newTestPlanner(t)
	it := openItinerary(t, tp, nil)
	path := PlacesQuery("t1").Path

	tp.feed.push(t, path, api.SnapshotBatch{Seq: 2, Changes: []api.Change{
		{Kind: api.ChangeAdded, Document: doc(t, path, "p1", models.Place{Name: "A", IsArranged: false})},
		{Kind: api.ChangeAdded, Document: doc(t, path, "p2", models.Place{Name: "B", IsArranged: true, ArrangedTime: at(1, 10, 0)})},
	}})

	require.Eventually(t, func() bool { return len(it.Places()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"p1"}, ids(it.WishList(), placeID))
}

func TestItinerary_DayUsesTripTimezone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	tp := newTestPlanner(t)
	it := openItinerary(t, tp, tokyo,
		models.Place{ID: "late", Name: "Late", IsArranged: true, ArrangedTime: at(1, 23, 30)},
		models.Place{ID: "early", Name: "Early", IsArranged: true, ArrangedTime: at(1, 1, 0)},
	)

	assert.Equal(t, []string{"early"}, ids(it.Day(0), placeID))
	assert.Equal(t, []string{"late"}, ids(it.Day(1), placeID))
}

func TestItinerary_Arrange(t *testing.T) {
	tp := newTestPlanner(t)
	it := openItinerary(t, tp, nil, samplePlaces()...)
	ctx := context.Background()

	require.NoError(t, it.Arrange(ctx, "p1", at(3, 10, 0), 60))

	assert.Equal(t, []string{"p2"}, ids(it.WishList(), placeID))
	day2 := it.Day(2)
	require.Len(t, day2, 1)
	assert.Equal(t, "p1", day2[0].ID)
	assert.Equal(t, at(3, 11, 0), day2[0].EndTime())

	calls := tp.writer.BatchCalls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Req.Writes, 1)
	w := calls[0].Req.Writes[0]
	assert.Equal(t, api.WriteSet, w.Op)
	assert.Equal(t, "trips/t1/places", w.Path)
	assert.Equal(t, "p1", w.ID)
	assert.True(t, w.Merge)
	assert.JSONEq(t, `{"is_arranged":true,"arranged_time":"2026-07-03T10:00:00Z","duration_minutes":60}`, string(w.Data))

	// длительность не меняется, если не передана
	require.NoError(t, it.Arrange(ctx, "p2", at(3, 15, 0), 0))
	p2, ok := it.Get("p2")
	require.True(t, ok)
	assert.Equal(t, 90, p2.DurationMinutes)
}

func TestItinerary_ArrangeErrors(t *testing.T) {
	tp := newTestPlanner(t)
	it := openItinerary(t, tp, nil, samplePlaces()...)
	ctx := context.Background()

	tests := []struct {
		at      time.Time
		wantErr error
		name    string
		placeID string
	}{
		{name: "unknown place", placeID: "missing", at: at(1, 10, 0), wantErr: ErrNotFound},
		{name: "zero time", placeID: "p1", wantErr: ErrInvalidArgument},
		{name: "before trip", placeID: "p1", at: time.Date(2026, 6, 30, 23, 0, 0, 0, time.UTC), wantErr: ErrInvalidArgument},
		{name: "after trip", placeID: "p1", at: at(4, 0, 0), wantErr: ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, it.Arrange(ctx, tt.placeID, tt.at, 30), tt.wantErr)
		})
	}
	assert.Empty(t, tp.writer.BatchCalls())
}

func TestItinerary_UnarrangeAndSwap(t *testing.T) {
	tp := newTestPlanner(t)
	it := openItinerary(t, tp, nil, samplePlaces()...)
	ctx := context.Background()

	require.NoError(t, it.Swap(ctx, "p3", "p4"))
	assert.Equal(t, []string{"p3", "p4"}, ids(it.Day(0), placeID))

	calls := tp.writer.BatchCalls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Req.Writes, 2)
	assert.JSONEq(t, `{"is_arranged":true,"arranged_time":"2026-07-01T09:00:00Z","duration_minutes":30}`,
		string(calls[0].Req.Writes[0].Data))
	assert.JSONEq(t, `{"is_arranged":true,"arranged_time":"2026-07-01T11:00:00Z","duration_minutes":45}`,
		string(calls[0].Req.Writes[1].Data))

	require.NoError(t, it.Unarrange(ctx, "p3"))
	assert.Equal(t, []string{"p4"}, ids(it.Day(0), placeID))
	assert.Contains(t, ids(it.WishList(), placeID), "p3")

	calls = tp.writer.BatchCalls()
	require.Len(t, calls, 2)
	assert.JSONEq(t, `{"is_arranged":false,"arranged_time":null,"duration_minutes":30}`,
		string(calls[1].Req.Writes[0].Data))

	// место уже в списке желаний
	require.NoError(t, it.Unarrange(ctx, "p3"))
	assert.Len(t, tp.writer.BatchCalls(), 2)

	assert.ErrorIs(t, it.Swap(ctx, "p3", "p4"), ErrInvalidArgument)
	assert.ErrorIs(t, it.Swap(ctx, "p4", "p4"), ErrInvalidArgument)
	assert.ErrorIs(t, it.Swap(ctx, "p4", "missing"), ErrNotFound)
	assert.ErrorIs(t, it.Unarrange(ctx, "missing"), ErrNotFound)
}

func TestItinerary_SwapRollsBackBoth(t *testing.T) {
	tp := newTestPlanner(t)
	it := openItinerary(t, tp, nil, samplePlaces()...)

	conflict := errors.New("conflict")
	tp.writer.BatchFunc = func(ctx context.Context, req api.BatchRequest) ([]api.Document, error) {
		return nil, conflict
	}

	err := it.Swap(context.Background(), "p3", "p4")
	var writeErr *livesync.WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.True(t, writeErr.RolledBack)
	assert.Equal(t, []string{"p4", "p3"}, ids(it.Day(0), placeID))
}

func TestItinerary_AddAndRemovePlace(t *testing.T) {
	tp := newTestPlanner(t)
	it := openItinerary(t, tp, nil, samplePlaces()...)
	ctx := context.Background()

	place, err := it.AddPlace(ctx, models.Place{
		Name:         "Notre-Dame",
		IsArranged:   true,
		ArrangedTime: at(1, 8, 0),
		Latitude:     48.853,
		Longitude:    2.3499,
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", place.ID)
	assert.Equal(t, "t1", place.TripID)
	assert.False(t, place.IsArranged)
	assert.True(t, place.ArrangedTime.IsZero())

	// новое место в конце списка желаний
	assert.Equal(t, []string{"p2", "p1", "id-1"}, ids(it.WishList(), placeID))

	upserts := tp.writer.UpsertDocumentCalls()
	require.Len(t, upserts, 1)
	assert.Equal(t, "trips/t1/places/id-1", upserts[0].DocPath)
	assert.Equal(t, []string{models.FieldCreatedAt}, upserts[0].Req.ServerTimestamps)

	require.NoError(t, it.RemovePlace(ctx, "p2"))
	assert.Equal(t, []string{"p1", "id-1"}, ids(it.WishList(), placeID))
	deletes := tp.writer.DeleteDocumentCalls()
	require.Len(t, deletes, 1)
	assert.Equal(t, "trips/t1/places/p2", deletes[0].DocPath)

	assert.ErrorIs(t, it.RemovePlace(ctx, "p2"), ErrNotFound)
	_, err = it.AddPlace(ctx, models.Place{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestItinerary_RequiresTripID(t *testing.T) {
	tp := newTestPlanner(t)
	_, err := tp.Itinerary(context.Background(), models.Trip{Name: "draft"}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestItinerary_CachedWishList(t *testing.T) {
	tp := newTestPlanner(t)
	it, err := tp.Itinerary(context.Background(), testTrip, nil)
	require.NoError(t, err)

	path := PlacesQuery(testTrip.ID).Path
	docs := make([]api.Document, 0)
	for _, p := range samplePlaces() {
		docs = append(docs, doc(t, path, p.ID, p))
	}
	tp.feed.push(t, path, initial(docs...))
	wait(t, it)

	var notified int
	cancel := it.Listen(func() { notified++ })
	require.NoError(t, it.RemovePlace(context.Background(), "p5"))
	cancel()
	assert.Equal(t, 1, notified)

	require.NoError(t, it.Close(context.Background()))

	wish, _, err := tp.CachedWishList(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids(wish, placeID))
}
