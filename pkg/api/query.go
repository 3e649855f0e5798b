package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Operator оператор фильтра запроса
type Operator string

const (
	OpEqual         Operator = "=="
	OpArrayContains Operator = "array-contains"
)

var (
	// ErrInvalidPath путь коллекции или документа имеет неверный формат
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidQuery запрос содержит неверный фильтр или сортировку
	ErrInvalidQuery = errors.New("invalid query")
)

// fieldPattern допустимое имя поля документа (верхний уровень JSON объекта)
var fieldPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,63}$`)

// segmentPattern допустимый сегмент пути (имя коллекции или ID документа)
var segmentPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1,128}$`)

// Filter условие на одно поле документа
type Filter struct {
	Value any      `json:"value"`
	Field string   `json:"field"`
	Op    Operator `json:"op"`
}

// Query описывает подписку или снимок: коллекция, фильтры и сортировка
type Query struct {
	Path       string   `json:"path"`
	OrderBy    string   `json:"order_by,omitempty"`
	Filters    []Filter `json:"filters,omitempty"`
	Descending bool     `json:"descending,omitempty"`
}

// Where возвращает копию запроса с добавленным фильтром
func (q Query) Where(field string, op Operator, value any) Query {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

// Order возвращает копию запроса с сортировкой по полю
func (q Query) Order(field string, descending bool) Query {
	q.OrderBy = field
	q.Descending = descending
	return q
}

// Validate проверяет путь, имена полей и операторы
func (q Query) Validate() error {
	if err := ValidateCollectionPath(q.Path); err != nil {
		return err
	}
	for _, f := range q.Filters {
		if !fieldPattern.MatchString(f.Field) {
			return fmt.Errorf("%w: bad filter field %q", ErrInvalidQuery, f.Field)
		}
		switch f.Op {
		case OpEqual, OpArrayContains:
		default:
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, f.Op)
		}
		switch f.Value.(type) {
		case string, bool, float64, int, int64, nil:
		default:
			return fmt.Errorf("%w: filter value for %q must be a scalar", ErrInvalidQuery, f.Field)
		}
	}
	if q.OrderBy != "" && !fieldPattern.MatchString(q.OrderBy) {
		return fmt.Errorf("%w: bad order field %q", ErrInvalidQuery, q.OrderBy)
	}
	return nil
}

// Normalize проверяет запрос и возвращает копию с путем без крайних "/"
func (q Query) Normalize() (Query, error) {
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	q.Path = strings.Trim(q.Path, "/")
	return q, nil
}

// Key канонический ключ запроса. Одинаковые запросы дают одинаковый ключ.
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(q.Path)
	for _, f := range q.Filters {
		value, _ := json.Marshal(f.Value)
		fmt.Fprintf(&b, "|%s %s %s", f.Field, f.Op, value)
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&b, "|order %s desc=%t", q.OrderBy, q.Descending)
	}
	return b.String()
}

// Matches проверяет, удовлетворяет ли документ всем фильтрам запроса.
// fields - декодированный JSON объект документа.
func (q Query) Matches(fields map[string]any) bool {
	for _, f := range q.Filters {
		if !f.Matches(fields) {
			return false
		}
	}
	return true
}

// Matches проверяет одно условие
func (f Filter) Matches(fields map[string]any) bool {
	value, ok := fields[f.Field]
	if !ok {
		return false
	}

	switch f.Op {
	case OpEqual:
		return valuesEqual(value, f.Value)
	case OpArrayContains:
		items, ok := value.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if valuesEqual(item, f.Value) {
				return true
			}
		}
	}
	return false
}

// valuesEqual сравнивает значения после нормализации через JSON,
// чтобы int из фильтра совпадал с float64 из декодированного документа
func valuesEqual(a, b any) bool {
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}

// ValidateCollectionPath проверяет путь коллекции: нечетное число сегментов
// ("trips", "trips/{id}/places")
func ValidateCollectionPath(path string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segments)%2 == 0 {
		return fmt.Errorf("%w: %q is a document path, not a collection", ErrInvalidPath, path)
	}
	return nil
}

// NormalizeCollectionPath проверяет путь коллекции и возвращает его
// без крайних "/" ("/trips/t1/places/" -> "trips/t1/places")
func NormalizeCollectionPath(path string) (string, error) {
	if err := ValidateCollectionPath(path); err != nil {
		return "", err
	}
	return strings.Trim(path, "/"), nil
}

// SplitDocumentPath разбирает полный путь документа на путь коллекции и ID
// ("trips/abc/places/p1" -> "trips/abc/places", "p1")
func SplitDocumentPath(path string) (collection, id string, err error) {
	segments, err := splitPath(path)
	if err != nil {
		return "", "", err
	}
	if len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is a collection path, not a document", ErrInvalidPath, path)
	}
	return strings.Join(segments[:len(segments)-1], "/"), segments[len(segments)-1], nil
}

// DocumentPath собирает полный путь документа
func DocumentPath(collection, id string) string {
	return collection + "/" + id
}

// CollectionSegments возвращает сегменты пути коллекции
func CollectionSegments(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segments := strings.Split(trimmed, "/")
	for _, s := range segments {
		if !segmentPattern.MatchString(s) {
			return nil, fmt.Errorf("%w: bad segment %q in %q", ErrInvalidPath, s, path)
		}
	}
	return segments, nil
}
