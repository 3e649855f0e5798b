package models

import "time"

// Place представляет место в поездке. Документ коллекции "trips/{id}/places".
// Место либо в списке желаний (IsArranged = false), либо в расписании.
type Place struct {
	ArrangedTime    time.Time `json:"arranged_time,omitzero"` // начало посещения
	CreatedAt       time.Time `json:"created_at,omitzero"`    // заполняется сервером
	ID              string    `json:"-"`
	TripID          string    `json:"trip_id"`
	Name            string    `json:"name"`
	Address         string    `json:"address,omitempty"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	DurationMinutes int       `json:"duration_minutes"`
	IsArranged      bool      `json:"is_arranged"`
}

// Duration возвращает длительность посещения
func (p *Place) Duration() time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

// EndTime эффективное время окончания посещения
func (p *Place) EndTime() time.Time {
	return p.ArrangedTime.Add(p.Duration())
}

// ArrangedOn проверяет, что место стоит в расписании на календарный день day
// (сравнение в часовом поясе loc)
func (p *Place) ArrangedOn(day time.Time, loc *time.Location) bool {
	if !p.IsArranged {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	y1, m1, d1 := p.ArrangedTime.In(loc).Date()
	y2, m2, d2 := day.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
