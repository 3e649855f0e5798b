package planner

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/iudanet/tripsync/internal/livesync"
	"github.com/iudanet/tripsync/internal/models"
	"github.com/iudanet/tripsync/internal/validation"
	"github.com/iudanet/tripsync/pkg/api"
)

// TripList поездки текущего пользователя
type TripList struct {
	*view[models.Trip]
}

// TripsQuery поездки, в которых участвует пользователь
func TripsQuery(userID string) api.Query {
	return api.Query{Path: models.CollectionTrips}.
		Where(models.FieldMembers, api.OpArrayContains, userID)
}

func tripLess(a, b models.Trip) bool {
	if !a.StartDate.Equal(b.StartDate) {
		return a.StartDate.Before(b.StartDate)
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}

// Trips открывает список поездок пользователя
func (p *Planner) Trips(ctx context.Context) (*TripList, error) {
	userID := p.identity.UserID
	v, err := acquire(ctx, p, livesync.Options[models.Trip]{
		Decode: models.DecodeTrip,
		ID:     func(t models.Trip) string { return t.ID },
		// оптимистичная запись без пользователя в members не попадает в список
		Filter: func(t models.Trip) bool { return t.HasMember(userID) },
		Less:   tripLess,
		Query:  TripsQuery(userID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open trips: %w", err)
	}
	return &TripList{view: v}, nil
}

// CachedTrips последний сохраненный список поездок
func (p *Planner) CachedTrips(ctx context.Context) ([]models.Trip, time.Time, error) {
	trips, savedAt, err := cached(ctx, p, TripsQuery(p.identity.UserID), models.DecodeTrip)
	if err != nil {
		return nil, time.Time{}, err
	}
	sortBy(trips, tripLess)
	return trips, savedAt, nil
}

// Trips текущий список, отсортированный по дате начала и названию
func (l *TripList) Trips() []models.Trip {
	return l.sync.View()
}

// Get поездка по ID
func (l *TripList) Get(id string) (models.Trip, bool) {
	return l.sync.Get(id)
}

// Find ищет поездку по ID или по названию без учета регистра
func (l *TripList) Find(ref string) (models.Trip, bool) {
	if trip, ok := l.sync.Get(ref); ok {
		return trip, true
	}
	for _, trip := range l.sync.View() {
		if strings.EqualFold(trip.Name, ref) {
			return trip, true
		}
	}
	return models.Trip{}, false
}

// Listen подписывает fn на изменения списка
func (l *TripList) Listen(fn func([]models.Trip)) func() {
	return l.listen(func(upd livesync.Update[models.Trip]) { fn(upd.View) })
}

// CreateTrip создает поездку. Текущий пользователь становится владельцем и
// участником.
func (l *TripList) CreateTrip(ctx context.Context, trip models.Trip) (models.Trip, error) {
	if err := validation.ValidateTripName(trip.Name); err != nil {
		return models.Trip{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	trip.Name = strings.TrimSpace(trip.Name)
	if trip.Days <= 0 {
		return models.Trip{}, fmt.Errorf("%w: trip must last at least one day", ErrInvalidArgument)
	}

	me := l.planner.identity.UserID
	trip.ID = l.planner.newID()
	trip.OwnerID = me
	if !trip.HasMember(me) {
		trip.Members = append([]string{me}, trip.Members...)
	}
	trip.CreatedAt = l.planner.now().UTC()

	data, err := encode(trip)
	if err != nil {
		return models.Trip{}, err
	}

	err = l.sync.Mutate(ctx, livesync.Mutation[models.Trip]{Upserts: []models.Trip{trip}}, func(ctx context.Context) error {
		_, err := l.planner.writer.UpsertDocument(ctx, api.DocumentPath(models.CollectionTrips, trip.ID), api.UpsertRequest{
			Data:             data,
			ServerTimestamps: []string{models.FieldCreatedAt},
		})
		return err
	})
	if err != nil {
		return models.Trip{}, fmt.Errorf("failed to create trip: %w", err)
	}
	return trip, nil
}

// AddMember добавляет участника в поездку
func (l *TripList) AddMember(ctx context.Context, tripID, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	trip, ok := l.sync.Get(tripID)
	if !ok {
		return fmt.Errorf("trip %s: %w", tripID, ErrNotFound)
	}
	if trip.HasMember(userID) {
		return nil
	}
	trip.Members = append(slices.Clone(trip.Members), userID)

	data, err := encode(map[string]any{models.FieldMembers: trip.Members})
	if err != nil {
		return err
	}

	err = l.sync.Mutate(ctx, livesync.Mutation[models.Trip]{Upserts: []models.Trip{trip}}, func(ctx context.Context) error {
		_, err := l.planner.writer.UpsertDocument(ctx, api.DocumentPath(models.CollectionTrips, tripID), api.UpsertRequest{
			Data:  data,
			Merge: true,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// DeleteTrip удаляет поездку
func (l *TripList) DeleteTrip(ctx context.Context, tripID string) error {
	if _, ok := l.sync.Get(tripID); !ok {
		return fmt.Errorf("trip %s: %w", tripID, ErrNotFound)
	}

	err := l.sync.Mutate(ctx, livesync.Mutation[models.Trip]{Removals: []string{tripID}}, func(ctx context.Context) error {
		return l.planner.writer.DeleteDocument(ctx, api.DocumentPath(models.CollectionTrips, tripID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	return nil
}
