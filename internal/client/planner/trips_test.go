package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tripsync/internal/livesync"
	"github.com/iudanet/tripsync/internal/models"
	"github.com/iudanet/tripsync/pkg/api"
)

func tripID(t models.Trip) string { return t.ID }

func day(d int) time.Time {
	return time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC)
}

func openTrips(t *testing.T, tp *testPlanner, trips ...models.Trip) *TripList {
	t.Helper()
	list, err := tp.Trips(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = list.Close(context.Background()) })

	docs := make([]api.Document, 0, len(trips))
	for _, trip := range trips {
		docs = append(docs, doc(t, models.CollectionTrips, trip.ID, trip))
	}
	tp.feed.push(t, models.CollectionTrips, initial(docs...))
	wait(t, list)
	return list
}

func TestTripsQuery(t *testing.T) {
	q := TripsQuery("u1")
	assert.Equal(t, models.CollectionTrips, q.Path)
	require.Len(t, q.Filters, 1)
	assert.Equal(t, api.Filter{Field: models.FieldMembers, Op: api.OpArrayContains, Value: "u1"}, q.Filters[0])
	assert.NoError(t, q.Validate())
}

func TestTrips_SortedByStartDateAndName(t *testing.T) {
	tp := newTestPlanner(t)
	list := openTrips(t, tp,
		models.Trip{ID: "t2", Name: "Berlin", StartDate: day(5), Days: 2, Members: []string{"u1"}},
		models.Trip{ID: "t1", Name: "Zurich", StartDate: day(1), Days: 2, Members: []string{"u1"}},
		models.Trip{ID: "t3", Name: "Amsterdam", StartDate: day(1), Days: 3, Members: []string{"u1", "u2"}},
	)

	assert.Equal(t, []string{"t3", "t1", "t2"}, ids(list.Trips(), tripID))

	trip, ok := list.Find("zurich")
	require.True(t, ok)
	assert.Equal(t, "t1", trip.ID)
	_, ok = list.Find("t2")
	assert.True(t, ok)
	_, ok = list.Find("Oslo")
	assert.False(t, ok)
}

func TestTrips_CreateTrip(t *testing.T) {
	tp := newTestPlanner(t)
	list := openTrips(t, tp, models.Trip{ID: "t1", Name: "Rome", StartDate: day(10), Days: 2, Members: []string{"u1"}})

	var notified [][]models.Trip
	cancel := list.Listen(func(trips []models.Trip) { notified = append(notified, trips) })
	defer cancel()

	created, err := list.CreateTrip(context.Background(), models.Trip{
		Name:      "Lisbon",
		StartDate: day(3),
		Days:      4,
		Members:   []string{"u2"},
	})
	require.NoError(t, err)

	want := models.Trip{
		ID:        "id-1",
		Name:      "Lisbon",
		OwnerID:   "u1",
		StartDate: day(3),
		Days:      4,
		Members:   []string{"u1", "u2"},
		CreatedAt: testNow,
	}
	if diff := cmp.Diff(want, created); diff != "" {
		t.Errorf("created trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"id-1", "t1"}, ids(list.Trips(), tripID))
	require.Len(t, notified, 1)
	assert.Len(t, notified[0], 2)

	calls := tp.writer.UpsertDocumentCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "trips/id-1", calls[0].DocPath)
	assert.Equal(t, []string{models.FieldCreatedAt}, calls[0].Req.ServerTimestamps)
	assert.JSONEq(t, `{"start_date":"2026-07-03T00:00:00Z","created_at":"2026-06-01T12:00:00Z",
		"name":"Lisbon","destination":"","owner_id":"u1","members":["u1","u2"],"days":4}`,
		string(calls[0].Req.Data))
}

func TestTrips_CreateTripRollsBack(t *testing.T) {
	tp := newTestPlanner(t)
	list := openTrips(t, tp, models.Trip{ID: "t1", Name: "Rome", StartDate: day(10), Days: 2, Members: []string{"u1"}})

	rejected := errors.New("rate limited")
	tp.writer.UpsertDocumentFunc = func(ctx context.Context, docPath string, req api.UpsertRequest) (*api.Document, error) {
		return nil, rejected
	}

	_, err := list.CreateTrip(context.Background(), models.Trip{Name: "Lisbon", StartDate: day(3), Days: 1})

	var writeErr *livesync.WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.True(t, writeErr.RolledBack)
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, []string{"t1"}, ids(list.Trips(), tripID))
}

func TestTrips_CreateTripValidation(t *testing.T) {
	tp := newTestPlanner(t)
	list := openTrips(t, tp)

	tests := []struct {
		name string
		trip models.Trip
	}{
		{name: "empty name", trip: models.Trip{Name: "  ", Days: 1}},
		{name: "no days", trip: models.Trip{Name: "Rome"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := list.CreateTrip(context.Background(), tt.trip)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
	assert.Empty(t, tp.writer.UpsertDocumentCalls())
}

func TestTrips_AddMemberAndDelete(t *testing.T) {
	tp := newTestPlanner(t)
	list := openTrips(t, tp,
		models.Trip{ID: "t1", Name: "Rome", StartDate: day(10), Days: 2, Members: []string{"u1"}},
		models.Trip{ID: "t2", Name: "Oslo", StartDate: day(12), Days: 2, Members: []string{"u1"}},
	)
	ctx := context.Background()

	require.NoError(t, list.AddMember(ctx, "t1", "u2"))
	trip, ok := list.Get("t1")
	require.True(t, ok)
	assert.Equal(t, []string{"u1", "u2"}, trip.Members)

	calls := tp.writer.UpsertDocumentCalls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Req.Merge)
	assert.JSONEq(t, `{"members":["u1","u2"]}`, string(calls[0].Req.Data))

	// повторное добавление ничего не пишет
	require.NoError(t, list.AddMember(ctx, "t1", "u2"))
	assert.Len(t, tp.writer.UpsertDocumentCalls(), 1)
	assert.ErrorIs(t, list.AddMember(ctx, "missing", "u2"), ErrNotFound)
	assert.ErrorIs(t, list.AddMember(ctx, "t1", ""), ErrInvalidArgument)

	require.NoError(t, list.DeleteTrip(ctx, "t2"))
	assert.Equal(t, []string{"t1"}, ids(list.Trips(), tripID))
	deletes := tp.writer.DeleteDocumentCalls()
	require.Len(t, deletes, 1)
	assert.Equal(t, "trips/t2", deletes[0].DocPath)

	assert.ErrorIs(t, list.DeleteTrip(ctx, "t2"), ErrNotFound)
}

func TestTrips_FeedRemovalAndCache(t *testing.T) {
	tp := newTestPlanner(t)
	ctx := context.Background()

	list, err := tp.Trips(ctx)
	require.NoError(t, err)
	tp.feed.push(t, models.CollectionTrips, initial(
		doc(t, models.CollectionTrips, "t2", models.Trip{Name: "Oslo", StartDate: day(12), Days: 1, Members: []string{"u1"}}),
		doc(t, models.CollectionTrips, "t1", models.Trip{Name: "Rome", StartDate: day(10), Days: 1, Members: []string{"u1"}}),
		doc(t, models.CollectionTrips, "t3", models.Trip{Name: "Kyiv", StartDate: day(1), Days: 1, Members: []string{"u1"}}),
	))
	wait(t, list)

	// пользователя убрали из поездки: сервер присылает Removed
	tp.feed.push(t, models.CollectionTrips, api.SnapshotBatch{Seq: 2, Changes: []api.Change{
		{Kind: api.ChangeRemoved, Document: api.Document{ID: "t3", Path: models.CollectionTrips}},
	}})
	require.Eventually(t, func() bool { return len(list.Trips()) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, list.Close(ctx))

	trips, savedAt, err := tp.CachedTrips(ctx)
	require.NoError(t, err)
	assert.Equal(t, testNow, savedAt)
	assert.Equal(t, []string{"t1", "t2"}, ids(trips, tripID))
	assert.Equal(t, "Rome", trips[0].Name)
}
