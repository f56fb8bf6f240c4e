package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/tasklist/internal/auth"
	"github.com/vyrodovalexey/tasklist/internal/events"
	"github.com/vyrodovalexey/tasklist/internal/model"
	"github.com/vyrodovalexey/tasklist/internal/store"
)

// Version is the application version.
const Version = "1.0.0"

// RESTHandler handles the list item API.
type RESTHandler struct {
	store     store.Store
	publisher events.Publisher
	logger    *zap.Logger
}

// NewRESTHandler creates a new RESTHandler instance. A nil publisher drops
// domain events.
func NewRESTHandler(s store.Store, publisher events.Publisher, logger *zap.Logger) *RESTHandler {
	if publisher == nil {
		publisher = events.Discard
	}
	return &RESTHandler{
		store:     s,
		publisher: publisher,
		logger:    logger,
	}
}

// RegisterRoutes registers the REST API routes with the router.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet).Name(OpHealth)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet).Name(OpReady)

	router.HandleFunc("/api/v1/lists/{listID}/items", h.ListItems).Methods(http.MethodGet).Name(OpListItems)
	router.HandleFunc("/api/v1/lists/{listID}/items", h.CreateItem).Methods(http.MethodPost).Name(OpCreateItem)
	router.HandleFunc("/api/v1/lists/{listID}/items", h.UpdateItems).Methods(http.MethodPatch).Name(OpUpdateItems)
	router.HandleFunc("/api/v1/lists/{listID}/items/{id}", h.DeleteItem).Methods(http.MethodDelete).Name(OpDeleteItem)
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Version: Version,
	}
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(response))
}

// pinger is implemented by stores backed by an external resource.
type pinger interface {
	Ping(ctx context.Context) error
}

// ReadyCheck handles GET /ready requests. Stores that can be pinged must
// answer before the server reports ready.
func (h *RESTHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.Warn("store not ready", zap.Error(err))
			h.writeError(w, http.StatusServiceUnavailable, "store not ready")
			return
		}
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(ReadyResponse{Status: "ready"}))
}

// ListItems handles GET /api/v1/lists/{listID}/items requests.
func (h *RESTHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context(), scopeOf(r))
	if err != nil {
		h.handleStoreError(w, err, "list items")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(items))
}

// CreateItem handles POST /api/v1/lists/{listID}/items requests.
func (h *RESTHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var input model.CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := input.Validate(); err != nil {
		h.logger.Warn("validation failed", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.store.Create(r.Context(), scopeOf(r), &input)
	if err != nil {
		h.handleStoreError(w, err, "create item")
		return
	}

	h.publisher.Publish(events.ItemCreated(*item))

	h.writeJSON(w, http.StatusCreated, model.NewSuccessResponse(item))
}

// UpdateItems handles PATCH /api/v1/lists/{listID}/items requests. Entries
// for items the caller does not own are skipped and not counted.
func (h *RESTHandler) UpdateItems(w http.ResponseWriter, r *http.Request) {
	var input model.UpdateItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for i := range input.Items {
		if err := input.Items[i].Validate(); err != nil {
			h.logger.Warn("validation failed", zap.String("item_id", input.Items[i].ID), zap.Error(err))
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := h.store.UpdateItems(r.Context(), scopeOf(r), input.Items)
	if err != nil {
		h.handleStoreError(w, err, "update items")
		return
	}

	itemsUpdatedTotal.Add(float64(result.Updated))
	for _, item := range result.Completed {
		h.publisher.Publish(events.ItemCompleted(item))
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.UpdateItemsResult{Updated: result.Updated}))
}

// DeleteItem handles DELETE /api/v1/lists/{listID}/items/{id} requests.
// Deleting an absent item reports success false.
func (h *RESTHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	removed, err := h.store.Delete(r.Context(), scopeOf(r), id)
	if errors.Is(err, store.ErrNotFound) {
		h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.DeleteItemResult{Success: false}))
		return
	}
	if err != nil {
		h.handleStoreError(w, err, "delete item")
		return
	}

	h.publisher.Publish(events.ItemDeleted(*removed))

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.DeleteItemResult{Success: true}))
}

// scopeOf returns the list and owner a request acts on.
func scopeOf(r *http.Request) store.Scope {
	return store.Scope{
		ListID:  mux.Vars(r)["listID"],
		OwnerID: auth.OwnerID(r.Context()),
	}
}

// handleStoreError handles store errors and writes appropriate HTTP responses.
func (h *RESTHandler) handleStoreError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, store.ErrInvalidID):
		h.writeError(w, http.StatusBadRequest, "invalid item ID")
	case errors.Is(err, store.ErrInvalidList):
		h.writeError(w, http.StatusBadRequest, "invalid list ID")
	case errors.Is(err, store.ErrNilItem):
		h.writeError(w, http.StatusBadRequest, "missing item")
	default:
		h.logger.Error("store operation failed", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *RESTHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func (h *RESTHandler) writeError(w http.ResponseWriter, status int, message string) {
	response := model.ErrorResponse{
		Code:    status,
		Message: message,
	}
	h.writeJSON(w, status, response)
}
