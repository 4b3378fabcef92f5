package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

type fakeReadStore struct {
	recs   []contracts.Recommendation
	rec    *contracts.Recommendation
	err    error
	health []contracts.SiteHealth
}

func (f *fakeReadStore) ListRecommendations(ctx context.Context, date time.Time, limit int) ([]contracts.Recommendation, error) {
	return f.recs, f.err
}

func (f *fakeReadStore) GetRecommendation(ctx context.Context, id int64) (*contracts.Recommendation, error) {
	return f.rec, f.err
}

func (f *fakeReadStore) ListPerformance(ctx context.Context, since time.Time) ([]contracts.Performance, error) {
	return nil, f.err
}

func (f *fakeReadStore) ListSiteHealth(ctx context.Context) ([]contracts.SiteHealth, error) {
	return f.health, f.err
}

func (f *fakeReadStore) ListHoldings(ctx context.Context) ([]contracts.Holding, error) {
	return nil, f.err
}

func newTestRouter(st ReadStore) http.Handler {
	return NewRouter(NewHandler(st, logger.NewNop()), logger.NewNop())
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&fakeReadStore{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListRecommendations(t *testing.T) {
	st := &fakeReadStore{recs: []contracts.Recommendation{
		{ID: 1, TickerCode: "005930", Decision: contracts.DecisionBuy},
	}}
	router := newTestRouter(st)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/recommendations?date=2025-06-02", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var recs []contracts.Recommendation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "005930", recs[0].TickerCode)
}

func TestListRecommendationsBadDate(t *testing.T) {
	router := newTestRouter(&fakeReadStore{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/recommendations?date=junk", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetRecommendationNotFound(t *testing.T) {
	router := newTestRouter(&fakeReadStore{rec: nil})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/recommendations/42", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStoreErrorReturns500(t *testing.T) {
	router := newTestRouter(&fakeReadStore{err: fmt.Errorf("connection refused")})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/sites/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
