package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wbwatch/wbwatch/internal/database"
	"github.com/wbwatch/wbwatch/internal/models"
)

// Extractor runs one supervised extraction.
type Extractor interface {
	Run(ctx context.Context, article string) (*models.Snapshot, error)
}

// TrackingStore is the persistence surface the handlers need (for testing).
type TrackingStore interface {
	CreateTracking(ctx context.Context, t *models.Tracking) error
	ListActiveTrackings(ctx context.Context) ([]*models.Tracking, error)
	GetTracking(ctx context.Context, id uuid.UUID) (*models.Tracking, error)
	DeactivateTracking(ctx context.Context, id uuid.UUID) error
	ListPriceHistory(ctx context.Context, trackingID uuid.UUID, limit int) ([]*models.PriceHistory, error)
	LatestPrice(ctx context.Context, trackingID uuid.UUID) (*int, error)
}

type Handlers struct {
	extractor Extractor
	store     TrackingStore
	logger    *slog.Logger
}

func NewHandlers(extractor Extractor, store TrackingStore, logger *slog.Logger) *Handlers {
	return &Handlers{
		extractor: extractor,
		store:     store,
		logger:    logger.With("component", "api"),
	}
}

// GetProduct extracts a fresh snapshot for one article.
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	article := chi.URLParam(r, "article")

	snapshot, err := h.extractor.Run(r.Context(), article)
	if err != nil && models.IsCode(err, models.ErrWorkerCrashed) {
		// A crashed worker is worth exactly one retry; everything else is
		// surfaced as is.
		h.logger.Warn("worker crashed, retrying once", "article", article)
		snapshot, err = h.extractor.Run(r.Context(), article)
	}
	if err != nil {
		h.respondExtractionError(w, article, err)
		return
	}

	h.respondJSON(w, http.StatusOK, snapshot)
}

// CreateTrackingRequest is the subscription creation body.
type CreateTrackingRequest struct {
	ChatID      int64  `json:"chat_id"`
	Article     string `json:"article"`
	TargetPrice int    `json:"target_price"`
}

func (h *Handlers) CreateTracking(w http.ResponseWriter, r *http.Request) {
	var req CreateTrackingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TargetPrice <= 0 {
		h.respondError(w, http.StatusBadRequest, "target_price must be positive")
		return
	}

	tracking := &models.Tracking{
		ChatID:      req.ChatID,
		Article:     req.Article,
		TargetPrice: req.TargetPrice,
	}

	if err := h.store.CreateTracking(r.Context(), tracking); err != nil {
		h.logger.Error("failed to create tracking", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create tracking")
		return
	}

	h.respondJSON(w, http.StatusCreated, tracking)
}

func (h *Handlers) ListTrackings(w http.ResponseWriter, r *http.Request) {
	trackings, err := h.store.ListActiveTrackings(r.Context())
	if err != nil {
		h.logger.Error("failed to list trackings", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list trackings")
		return
	}

	if trackings == nil {
		trackings = []*models.Tracking{}
	}
	h.respondJSON(w, http.StatusOK, trackings)
}

// TrackingResponse decorates a tracking with its latest observed price.
type TrackingResponse struct {
	*models.Tracking
	LatestPrice *int `json:"latest_price,omitempty"`
}

func (h *Handlers) GetTracking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "trackingID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid tracking ID")
		return
	}

	tracking, err := h.store.GetTracking(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrTrackingNotFound) {
			h.respondError(w, http.StatusNotFound, "tracking not found")
			return
		}
		h.logger.Error("failed to get tracking", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get tracking")
		return
	}

	latest, err := h.store.LatestPrice(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to query latest price", "tracking", id, "error", err)
	}

	h.respondJSON(w, http.StatusOK, TrackingResponse{Tracking: tracking, LatestPrice: latest})
}

func (h *Handlers) DeleteTracking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "trackingID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid tracking ID")
		return
	}

	if err := h.store.DeactivateTracking(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrTrackingNotFound) {
			h.respondError(w, http.StatusNotFound, "tracking not found")
			return
		}
		h.logger.Error("failed to deactivate tracking", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to deactivate tracking")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetTrackingHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "trackingID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid tracking ID")
		return
	}

	history, err := h.store.ListPriceHistory(r.Context(), id, 100)
	if err != nil {
		h.logger.Error("failed to list price history", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list price history")
		return
	}

	if history == nil {
		history = []*models.PriceHistory{}
	}
	h.respondJSON(w, http.StatusOK, history)
}

// respondExtractionError maps the engine's error taxonomy onto transport
// status codes. Timeout gets its own status so automated callers can treat
// it differently from a blocked or crashed extraction.
func (h *Handlers) respondExtractionError(w http.ResponseWriter, article string, err error) {
	code := models.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case models.ErrInvalidIdentifier:
		status = http.StatusBadRequest
	case models.ErrFetchTimeout:
		status = http.StatusRequestTimeout
	case models.ErrOutOfStock:
		status = http.StatusConflict
	case models.ErrNoUsableData, models.ErrWorkerCrashed, models.ErrFetchTransport:
		status = http.StatusBadGateway
	}

	h.logger.Info("extraction failed", "article", article, "code", code, "error", err)

	h.respondJSON(w, status, map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
