package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// ReadStore is the query surface the API exposes. *store.Store
// satisfies it.
type ReadStore interface {
	ListRecommendations(ctx context.Context, date time.Time, limit int) ([]contracts.Recommendation, error)
	GetRecommendation(ctx context.Context, id int64) (*contracts.Recommendation, error)
	ListPerformance(ctx context.Context, since time.Time) ([]contracts.Performance, error)
	ListSiteHealth(ctx context.Context) ([]contracts.SiteHealth, error)
	ListHoldings(ctx context.Context) ([]contracts.Holding, error)
}

// Handler serves the read-only endpoints
// ⭐ SSOT: 조회 API 핸들러는 이 구조체에서만
type Handler struct {
	store  ReadStore
	logger *logger.Logger
}

// NewHandler builds the handler set
func NewHandler(store ReadStore, log *logger.Logger) *Handler {
	return &Handler{store: store, logger: log.WithComponent("api")}
}

// ListRecommendations returns recommendations for ?date=YYYY-MM-DD
// (default: the latest batch). GET /api/recommendations
func (h *Handler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var date time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	recs, err := h.store.ListRecommendations(ctx, date, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list recommendations")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve recommendations")
		return
	}
	respondJSON(w, http.StatusOK, recs)
}

// GetRecommendation returns one recommendation by id.
// GET /api/recommendations/{id}
func (h *Handler) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	rec, err := h.store.GetRecommendation(ctx, id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get recommendation")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve recommendation")
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "recommendation not found")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// ListPerformance returns tracked horizons since ?days=N ago
// (default 30). GET /api/performance
func (h *Handler) ListPerformance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}

	perfs, err := h.store.ListPerformance(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list performance")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve performance")
		return
	}
	respondJSON(w, http.StatusOK, perfs)
}

// ListSiteHealth returns per-source health. GET /api/sites/health
func (h *Handler) ListSiteHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health, err := h.store.ListSiteHealth(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list site health")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve site health")
		return
	}
	respondJSON(w, http.StatusOK, health)
}

// ListHoldings returns current positions. GET /api/holdings
func (h *Handler) ListHoldings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	holdings, err := h.store.ListHoldings(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list holdings")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve holdings")
		return
	}
	respondJSON(w, http.StatusOK, holdings)
}
