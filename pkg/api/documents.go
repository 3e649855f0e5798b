package api

import (
	"encoding/json"
	"time"
)

// Document представляет один документ коллекции в том виде, в котором
// его хранит и отдает сервер
type Document struct {
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ID        string          `json:"id"`             // ID назначается сервером при первой записи
	Path      string          `json:"path"`           // Path путь коллекции, например "trips/{id}/places"
	Data      json.RawMessage `json:"data,omitempty"` // Data JSON объект с полями документа
	Seq       int64           `json:"seq"`            // Seq номер последнего изменения документа
}

// WriteOp тип операции в пакетной записи
type WriteOp string

const (
	WriteSet    WriteOp = "set"
	WriteDelete WriteOp = "delete"
)

// UpsertRequest представляет запрос на создание или обновление документа
type UpsertRequest struct {
	Data json.RawMessage `json:"data"`
	// ServerTimestamps поля, которые сервер заполняет своим временем
	ServerTimestamps []string `json:"server_timestamps,omitempty"`
	// Merge true - обновить только переданные поля, false - заменить документ целиком
	Merge bool `json:"merge"`
}

// BatchWrite одна операция в пакетной записи
type BatchWrite struct {
	Op               WriteOp         `json:"op"`
	Path             string          `json:"path"`
	ID               string          `json:"id"`
	Data             json.RawMessage `json:"data,omitempty"`
	ServerTimestamps []string        `json:"server_timestamps,omitempty"`
	Merge            bool            `json:"merge"`
}

// BatchRequest набор операций, которые применяются атомарно
type BatchRequest struct {
	Writes []BatchWrite `json:"writes"`
}

// BatchResponse результат пакетной записи
type BatchResponse struct {
	Documents []Document `json:"documents"`
}

// QueryResponse одноразовый снимок коллекции
type QueryResponse struct {
	Documents []Document `json:"documents"`
	Seq       int64      `json:"seq"`
}
