package models

import (
	"slices"
	"time"
)

// Коллекции документов
const (
	CollectionTrips    = "trips"
	CollectionPlaces   = "places"
	CollectionMessages = "messages"
	CollectionUsers    = "users"
)

// Поля документов, которые участвуют в запросах
const (
	FieldMembers    = "members"
	FieldOwnerID    = "owner_id"
	FieldIsArranged = "is_arranged"
	FieldSendTime   = "send_time"
	FieldCreatedAt  = "created_at"
	FieldStartDate  = "start_date"
)

// Trip представляет поездку. Документ коллекции "trips".
type Trip struct {
	StartDate   time.Time `json:"start_date"`          // первый день поездки
	CreatedAt   time.Time `json:"created_at,omitzero"` // заполняется сервером
	ID          string    `json:"-"`                   // ID документа, пустой до первой записи
	Name        string    `json:"name"`
	Destination string    `json:"destination"`
	OwnerID     string    `json:"owner_id"`
	CoverURL    string    `json:"cover_url,omitempty"`
	Members     []string  `json:"members"` // user ID участников, включая владельца
	Days        int       `json:"days"`    // длительность в днях
}

// Persisted true, если поездка уже сохранена на сервере
func (t *Trip) Persisted() bool {
	return t.ID != ""
}

// EndDate возвращает день, следующий за последним днем поездки
func (t *Trip) EndDate() time.Time {
	return t.StartDate.AddDate(0, 0, t.Days)
}

// DayDate возвращает дату дня поездки (нумерация с 0)
func (t *Trip) DayDate(day int) time.Time {
	return t.StartDate.AddDate(0, 0, day)
}

// HasMember проверяет, является ли пользователь участником поездки
func (t *Trip) HasMember(userID string) bool {
	return slices.Contains(t.Members, userID)
}

// TripPath путь коллекции вложенных документов поездки
func TripPath(tripID, collection string) string {
	return CollectionTrips + "/" + tripID + "/" + collection
}
