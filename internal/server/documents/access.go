package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/iudanet/tripsync/internal/models"
	"github.com/iudanet/tripsync/internal/server/storage"
	"github.com/iudanet/tripsync/pkg/api"
)

// Правила доступа:
//   - trips: запрос обязан содержать members array-contains <uid>,
//     запись разрешена участнику, итоговый список участников должен
//     содержать пишущего и владельца; удаляет поездку только владелец;
//   - trips/{id}/...: только участники поездки;
//   - users/{uid}: только сам пользователь.

// authorizeQuery проверяет доступ к запросу коллекции
func (s *Service) authorizeQuery(ctx context.Context, userID string, q api.Query) error {
	segments := api.CollectionSegments(q.Path)

	switch {
	case len(segments) == 1 && segments[0] == models.CollectionTrips:
		for _, f := range q.Filters {
			if f.Field == models.FieldMembers && f.Op == api.OpArrayContains && f.Value == userID {
				return nil
			}
		}
		return fmt.Errorf("%w: trips query must filter by %s array-contains own id", ErrPermissionDenied, models.FieldMembers)

	case len(segments) >= 3 && segments[0] == models.CollectionTrips:
		return s.requireMember(ctx, userID, segments[1])

	case len(segments) >= 3 && segments[0] == models.CollectionUsers:
		if segments[1] == userID {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrPermissionDenied, q.Path)
}

// authorizeDocumentRead проверяет доступ к одному документу
func (s *Service) authorizeDocumentRead(ctx context.Context, userID, collection, id string) error {
	segments := api.CollectionSegments(collection)

	switch {
	case len(segments) == 1 && segments[0] == models.CollectionTrips:
		return s.requireMember(ctx, userID, id)
	case len(segments) >= 3 && segments[0] == models.CollectionTrips:
		return s.requireMember(ctx, userID, segments[1])
	case len(segments) == 1 && segments[0] == models.CollectionUsers:
		if id == userID {
			return nil
		}
	case len(segments) >= 3 && segments[0] == models.CollectionUsers:
		if segments[1] == userID {
			return nil
		}
	}

	return fmt.Errorf("%w: %s/%s", ErrPermissionDenied, collection, id)
}

// authorizeWrite проверяет право на одну запись
func (s *Service) authorizeWrite(ctx context.Context, userID string, w storage.Write) error {
	segments := api.CollectionSegments(w.Collection)

	switch {
	case len(segments) == 1 && segments[0] == models.CollectionTrips:
		return s.authorizeTripWrite(ctx, userID, w)
	case len(segments) >= 3 && segments[0] == models.CollectionTrips:
		return s.requireMember(ctx, userID, segments[1])
	case len(segments) == 1 && segments[0] == models.CollectionUsers:
		if w.ID == userID {
			return nil
		}
	case len(segments) >= 3 && segments[0] == models.CollectionUsers:
		if segments[1] == userID {
			return nil
		}
	}

	return fmt.Errorf("%w: %s/%s", ErrPermissionDenied, w.Collection, w.ID)
}

func (s *Service) authorizeTripWrite(ctx context.Context, userID string, w storage.Write) error {
	existing, found, err := s.trip(ctx, w.ID)
	if err != nil {
		return err
	}
	if found && !slices.Contains(existing.members(), userID) {
		return fmt.Errorf("%w: not a member of trip %s", ErrPermissionDenied, w.ID)
	}
	owner := existing.owner()

	if w.Op == api.WriteDelete {
		if owner != "" && owner != userID {
			return fmt.Errorf("%w: only the owner can delete trip %s", ErrPermissionDenied, w.ID)
		}
		return nil
	}

	next, err := tripAccessFromData(w.Data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if w.Merge {
		if next.Members == nil {
			next.Members = existing.Members
		}
		if next.OwnerID == nil {
			next.OwnerID = existing.OwnerID
		}
	}

	members := next.members()
	if !slices.Contains(members, userID) {
		return fmt.Errorf("%w: trip %s must list the writer in %s", ErrPermissionDenied, w.ID, models.FieldMembers)
	}

	if !found {
		if o := next.owner(); o != "" && o != userID {
			return fmt.Errorf("%w: new trip %s must be owned by the writer", ErrPermissionDenied, w.ID)
		}
		return nil
	}

	// владельца может сменить или исключить только он сам
	if owner != "" && owner != userID {
		if next.owner() != owner {
			return fmt.Errorf("%w: only the owner can change %s of trip %s", ErrPermissionDenied, models.FieldOwnerID, w.ID)
		}
		if !slices.Contains(members, owner) {
			return fmt.Errorf("%w: trip %s must keep the owner in %s", ErrPermissionDenied, w.ID, models.FieldMembers)
		}
	}
	return nil
}

func (s *Service) requireMember(ctx context.Context, userID, tripID string) error {
	trip, found, err := s.trip(ctx, tripID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: trip %s does not exist", ErrPermissionDenied, tripID)
	}
	if !slices.Contains(trip.members(), userID) {
		return fmt.Errorf("%w: not a member of trip %s", ErrPermissionDenied, tripID)
	}
	return nil
}

// tripAccess поля поездки, от которых зависят права. nil - поля нет.
type tripAccess struct {
	OwnerID *string   `json:"owner_id"`
	Members *[]string `json:"members"`
}

func (a tripAccess) owner() string {
	if a.OwnerID == nil {
		return ""
	}
	return *a.OwnerID
}

func (a tripAccess) members() []string {
	if a.Members == nil {
		return nil
	}
	return *a.Members
}

// trip читает поля доступа поездки; found = false, если поездки нет
func (s *Service) trip(ctx context.Context, tripID string) (tripAccess, bool, error) {
	doc, err := s.store.GetDocument(ctx, models.CollectionTrips, tripID)
	if errors.Is(err, storage.ErrDocumentNotFound) {
		return tripAccess{}, false, nil
	}
	if err != nil {
		return tripAccess{}, false, err
	}
	access, err := tripAccessFromData(doc.Data)
	if err != nil {
		return tripAccess{}, false, fmt.Errorf("trip %s: %w", tripID, err)
	}
	return access, true, nil
}

func tripAccessFromData(data json.RawMessage) (tripAccess, error) {
	var access tripAccess
	if len(data) == 0 {
		return access, nil
	}
	if err := json.Unmarshal(data, &access); err != nil {
		return tripAccess{}, fmt.Errorf("bad %s or %s field: %w", models.FieldOwnerID, models.FieldMembers, err)
	}
	return access, nil
}
