package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/tripsync/internal/livesync"
	"github.com/iudanet/tripsync/internal/models"
	"github.com/iudanet/tripsync/pkg/api"
)

// Itinerary места одной поездки: расписание по дням и список желаний
type Itinerary struct {
	*view[models.Place]
	loc  *time.Location
	trip models.Trip
}

// PlacesQuery все места поездки
func PlacesQuery(tripID string) api.Query {
	return api.Query{Path: models.TripPath(tripID, models.CollectionPlaces)}
}

func wishLess(a, b models.Place) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func scheduleLess(a, b models.Place) bool {
	if !a.ArrangedTime.Equal(b.ArrangedTime) {
		return a.ArrangedTime.Before(b.ArrangedTime)
	}
	return a.ID < b.ID
}

func isWish(p models.Place) bool {
	return !p.IsArranged
}

// Itinerary открывает места поездки. loc - часовой пояс, в котором считаются
// календарные дни (nil - UTC).
func (p *Planner) Itinerary(ctx context.Context, trip models.Trip, loc *time.Location) (*Itinerary, error) {
	if trip.ID == "" {
		return nil, fmt.Errorf("%w: trip id is required", ErrInvalidArgument)
	}
	if loc == nil {
		loc = time.UTC
	}

	v, err := acquire(ctx, p, livesync.Options[models.Place]{
		Decode: models.DecodePlace,
		ID:     func(pl models.Place) string { return pl.ID },
		Filter: isWish,
		Less:   wishLess,
		Query:  PlacesQuery(trip.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open places of trip %s: %w", trip.ID, err)
	}
	return &Itinerary{view: v, trip: trip, loc: loc}, nil
}

// CachedWishList последний сохраненный список желаний поездки
func (p *Planner) CachedWishList(ctx context.Context, tripID string) ([]models.Place, time.Time, error) {
	places, savedAt, err := cached(ctx, p, PlacesQuery(tripID), models.DecodePlace)
	if err != nil {
		return nil, time.Time{}, err
	}
	return selectPlaces(places, isWish, wishLess), savedAt, nil
}

// Trip поездка, для которой открыто расписание
func (it *Itinerary) Trip() models.Trip {
	return it.trip
}

// WishList места, еще не поставленные в расписание, в порядке добавления
func (it *Itinerary) WishList() []models.Place {
	return it.sync.View()
}

// Day места дня поездки (нумерация с 0), отсортированные по времени начала
func (it *Itinerary) Day(day int) []models.Place {
	y, m, d := it.trip.StartDate.Date()
	date := time.Date(y, m, d+day, 0, 0, 0, 0, it.loc)
	return it.sync.Select(func(p models.Place) bool {
		return p.ArrangedOn(date, it.loc)
	}, scheduleLess)
}

// Places все места поездки в порядке доставки
func (it *Itinerary) Places() []models.Place {
	return it.sync.Items()
}

// Get место по ID
func (it *Itinerary) Get(id string) (models.Place, bool) {
	return it.sync.Get(id)
}

// Listen вызывает fn после каждого изменения мест поездки
func (it *Itinerary) Listen(fn func()) func() {
	return it.listen(func(livesync.Update[models.Place]) { fn() })
}

// AddPlace добавляет место в список желаний
func (it *Itinerary) AddPlace(ctx context.Context, place models.Place) (models.Place, error) {
	if strings.TrimSpace(place.Name) == "" {
		return models.Place{}, fmt.Errorf("%w: place name is required", ErrInvalidArgument)
	}

	place.ID = it.planner.newID()
	place.TripID = it.trip.ID
	place.IsArranged = false
	place.ArrangedTime = time.Time{}
	place.CreatedAt = it.planner.now().UTC()

	data, err := encode(place)
	if err != nil {
		return models.Place{}, err
	}

	err = it.sync.Mutate(ctx, livesync.Mutation[models.Place]{Upserts: []models.Place{place}}, func(ctx context.Context) error {
		_, err := it.planner.writer.UpsertDocument(ctx, it.placePath(place.ID), api.UpsertRequest{
			Data:             data,
			ServerTimestamps: []string{models.FieldCreatedAt},
		})
		return err
	})
	if err != nil {
		return models.Place{}, fmt.Errorf("failed to add place: %w", err)
	}
	return place, nil
}

// Arrange ставит место в расписание на время at. durationMinutes <= 0
// сохраняет текущую длительность.
func (it *Itinerary) Arrange(ctx context.Context, placeID string, at time.Time, durationMinutes int) error {
	if at.IsZero() {
		return fmt.Errorf("%w: arranged time is required", ErrInvalidArgument)
	}
	if !it.withinTrip(at) {
		return fmt.Errorf("%w: %s is outside of the trip", ErrInvalidArgument, at.Format(time.RFC3339))
	}

	place, ok := it.sync.Get(placeID)
	if !ok {
		return fmt.Errorf("place %s: %w", placeID, ErrNotFound)
	}
	place.IsArranged = true
	place.ArrangedTime = at.UTC()
	if durationMinutes > 0 {
		place.DurationMinutes = durationMinutes
	}

	return it.update(ctx, "arrange", []models.Place{place})
}

// Unarrange возвращает место в список желаний
func (it *Itinerary) Unarrange(ctx context.Context, placeID string) error {
	place, ok := it.sync.Get(placeID)
	if !ok {
		return fmt.Errorf("place %s: %w", placeID, ErrNotFound)
	}
	if !place.IsArranged {
		return nil
	}
	place.IsArranged = false
	place.ArrangedTime = time.Time{}

	return it.update(ctx, "unarrange", []models.Place{place})
}

// Swap меняет местами время посещения двух мест расписания.
// Обе записи уходят одним пакетом.
func (it *Itinerary) Swap(ctx context.Context, firstID, secondID string) error {
	if firstID == secondID {
		return fmt.Errorf("%w: cannot swap a place with itself", ErrInvalidArgument)
	}
	first, ok := it.sync.Get(firstID)
	if !ok {
		return fmt.Errorf("place %s: %w", firstID, ErrNotFound)
	}
	second, ok := it.sync.Get(secondID)
	if !ok {
		return fmt.Errorf("place %s: %w", secondID, ErrNotFound)
	}
	if !first.IsArranged || !second.IsArranged {
		return fmt.Errorf("%w: both places must be arranged", ErrInvalidArgument)
	}

	first.ArrangedTime, second.ArrangedTime = second.ArrangedTime, first.ArrangedTime
	return it.update(ctx, "swap", []models.Place{first, second})
}

// RemovePlace удаляет место из поездки
func (it *Itinerary) RemovePlace(ctx context.Context, placeID string) error {
	if _, ok := it.sync.Get(placeID); !ok {
		return fmt.Errorf("place %s: %w", placeID, ErrNotFound)
	}

	err := it.sync.Mutate(ctx, livesync.Mutation[models.Place]{Removals: []string{placeID}}, func(ctx context.Context) error {
		return it.planner.writer.DeleteDocument(ctx, it.placePath(placeID))
	})
	if err != nil {
		return fmt.Errorf("failed to remove place: %w", err)
	}
	return nil
}

// update записывает поля расписания мест одним пакетом
func (it *Itinerary) update(ctx context.Context, op string, places []models.Place) error {
	collection := PlacesQuery(it.trip.ID).Path
	writes := make([]api.BatchWrite, 0, len(places))
	for _, place := range places {
		fields := map[string]any{
			models.FieldIsArranged: place.IsArranged,
			"arranged_time":        nil,
			"duration_minutes":     place.DurationMinutes,
		}
		if place.IsArranged {
			fields["arranged_time"] = place.ArrangedTime
		}
		data, err := encode(fields)
		if err != nil {
			return err
		}
		writes = append(writes, api.BatchWrite{
			Op:    api.WriteSet,
			Path:  collection,
			ID:    place.ID,
			Data:  data,
			Merge: true,
		})
	}

	err := it.sync.Mutate(ctx, livesync.Mutation[models.Place]{Upserts: places}, func(ctx context.Context) error {
		_, err := it.planner.writer.Batch(ctx, api.BatchRequest{Writes: writes})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

func (it *Itinerary) withinTrip(at time.Time) bool {
	if it.trip.Days <= 0 || it.trip.StartDate.IsZero() {
		return true
	}
	y, m, d := it.trip.StartDate.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, it.loc)
	end := start.AddDate(0, 0, it.trip.Days)
	return !at.Before(start) && at.Before(end)
}

func (it *Itinerary) placePath(id string) string {
	return api.DocumentPath(PlacesQuery(it.trip.ID).Path, id)
}

func selectPlaces(places []models.Place, filter func(models.Place) bool, less func(a, b models.Place) bool) []models.Place {
	out := make([]models.Place, 0, len(places))
	for _, p := range places {
		if filter(p) {
			out = append(out, p)
		}
	}
	sortBy(out, less)
	return out
}
