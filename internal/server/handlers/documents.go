package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/tripsync/internal/server/documents"
	"github.com/iudanet/tripsync/internal/server/feed"
	"github.com/iudanet/tripsync/internal/server/storage"
	"github.com/iudanet/tripsync/pkg/api"
)

//go:generate moq -out documents_mock.go . DocumentService

// DocumentService операции документного сервиса, которые использует HTTP слой
type DocumentService interface {
	Create(ctx context.Context, userID, collection string, req api.UpsertRequest) (api.Document, error)
	Upsert(ctx context.Context, userID, docPath string, req api.UpsertRequest) (api.Document, error)
	Delete(ctx context.Context, userID, docPath string) error
	Batch(ctx context.Context, userID string, req api.BatchRequest) ([]api.Document, error)
	Get(ctx context.Context, userID, docPath string) (*api.Document, error)
	Query(ctx context.Context, userID string, q api.Query) ([]api.Document, int64, error)
	Subscribe(ctx context.Context, userID string, q api.Query) (*feed.Subscription, api.SnapshotBatch, error)
}

// DocumentsHandler обрабатывает запись и чтение документов
type DocumentsHandler struct {
	logger  *slog.Logger
	service DocumentService
}

// NewDocumentsHandler создает handler документов
func NewDocumentsHandler(logger *slog.Logger, service DocumentService) *DocumentsHandler {
	return &DocumentsHandler{
		logger:  logger,
		service: service,
	}
}

// Get обрабатывает GET /api/v1/documents/{path...}
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	doc, err := h.service.Get(r.Context(), userID, r.PathValue("path"))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(h.logger, w, doc, http.StatusOK)
}

// Create обрабатывает POST /api/v1/documents/{path...}, где path путь коллекции.
// ID документа назначает сервер.
func (h *DocumentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req api.UpsertRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.service.Create(r.Context(), userID, r.PathValue("path"), req)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(h.logger, w, doc, http.StatusCreated)
}

// Upsert обрабатывает PUT /api/v1/documents/{path...}
func (h *DocumentsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req api.UpsertRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.service.Upsert(r.Context(), userID, r.PathValue("path"), req)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(h.logger, w, doc, http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/documents/{path...}
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, r.PathValue("path")); err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Batch обрабатывает POST /api/v1/batch
func (h *DocumentsHandler) Batch(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req api.BatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	docs, err := h.service.Batch(r.Context(), userID, req)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	sendJSON(h.logger, w, api.BatchResponse{Documents: docs}, http.StatusOK)
}

// Query обрабатывает GET /api/v1/query?q=<json api.Query>
func (h *DocumentsHandler) Query(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("q")
	if raw == "" {
		sendError(h.logger, w, "query parameter q is required", http.StatusBadRequest)
		return
	}
	var q api.Query
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		sendError(h.logger, w, "invalid query", http.StatusBadRequest)
		return
	}

	docs, seq, err := h.service.Query(r.Context(), userID, q)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	if docs == nil {
		docs = []api.Document{}
	}
	sendJSON(h.logger, w, api.QueryResponse{Documents: docs, Seq: seq}, http.StatusOK)
}

func (h *DocumentsHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "user id not found in context")
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
	}
	return userID, ok
}

// sendServiceError переводит ошибку сервиса в HTTP статус
func (h *DocumentsHandler) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "document request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		sendError(h.logger, w, "internal server error", status)
		return
	}

	h.logger.DebugContext(r.Context(), "document request rejected",
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	sendError(h.logger, w, err.Error(), status)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, documents.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, documents.ErrInvalidRequest),
		errors.Is(err, api.ErrInvalidPath),
		errors.Is(err, api.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrDocumentNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
