package api

// ChangeKind тип изменения документа в потоке
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// Change одно изменение документа. Для ChangeRemoved поле Data может быть пустым,
// но ID и Path заполнены всегда.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Document Document   `json:"document"`
}

// SnapshotBatch пакет изменений подписки.
// Первый пакет подписки имеет Initial = true и содержит полный набор документов
// в виде ChangeAdded; последующие пакеты инкрементальные.
type SnapshotBatch struct {
	Changes []Change `json:"changes"`
	Seq     int64    `json:"seq"`
	Initial bool     `json:"initial"`
}

// FrameType тип сообщения в WebSocket потоке
type FrameType string

const (
	FrameBatch FrameType = "batch"
	FrameError FrameType = "error"
)

// Коды ошибок подписки
const (
	FeedErrInvalidQuery     = "invalid_query"
	FeedErrPermissionDenied = "permission_denied"
	FeedErrSlowConsumer     = "slow_consumer"
	FeedErrInternal         = "internal"
)

// FeedFrame сообщение сервера в потоке подписки
type FeedFrame struct {
	Batch   *SnapshotBatch `json:"batch,omitempty"`
	Type    FrameType      `json:"type"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
}
