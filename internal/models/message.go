package models

import "time"

// Message сообщение чата поездки. Документ коллекции "trips/{id}/messages".
// SendTime выставляет сервер; до подтверждения используется локальное время.
type Message struct {
	SendTime   time.Time `json:"send_time,omitzero"`
	ID         string    `json:"-"`
	TripID     string    `json:"trip_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
}
