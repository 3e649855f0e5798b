package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/tripsync/pkg/api"
)

// ErrEmptyDocument документ пришел без данных
var ErrEmptyDocument = errors.New("document has no data")

// DecodeTrip собирает Trip из документа сервера
func DecodeTrip(doc api.Document) (Trip, error) {
	var trip Trip
	if err := decodeData(doc, &trip); err != nil {
		return Trip{}, err
	}
	trip.ID = doc.ID
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = doc.CreatedAt
	}
	return trip, nil
}

// DecodePlace собирает Place из документа сервера
func DecodePlace(doc api.Document) (Place, error) {
	var place Place
	if err := decodeData(doc, &place); err != nil {
		return Place{}, err
	}
	place.ID = doc.ID
	if place.CreatedAt.IsZero() {
		place.CreatedAt = doc.CreatedAt
	}
	return place, nil
}

// DecodeMessage собирает Message из документа сервера
func DecodeMessage(doc api.Document) (Message, error) {
	var msg Message
	if err := decodeData(doc, &msg); err != nil {
		return Message{}, err
	}
	msg.ID = doc.ID
	return msg, nil
}

func decodeData(doc api.Document, v any) error {
	if len(doc.Data) == 0 {
		return fmt.Errorf("document %s/%s: %w", doc.Path, doc.ID, ErrEmptyDocument)
	}
	if err := json.Unmarshal(doc.Data, v); err != nil {
		return fmt.Errorf("document %s/%s: failed to decode: %w", doc.Path, doc.ID, err)
	}
	return nil
}
