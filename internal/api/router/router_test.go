package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-history/internal/api/handlers"
	"go-history/internal/api/models"
	"go-history/internal/config"
)

type emptySource struct{}

func (emptySource) FetchHistory(ctx context.Context, deviceID, measurementID string, r models.TimeRange) ([]models.RawAggregateRow, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3500")
	config.InitEnvConfig()
	cfg := &models.HistoryConfig{Policy: models.DefaultGranularityPolicy, MaxBars: 20, Capacity: 3}
	h, err := handlers.NewHistoryHandler(handlers.HistoryDeps{
		Source:        emptySource{},
		Config:        func() *models.HistoryConfig { return cfg },
		Clock:         func() time.Time { return time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC) },
		DefaultPeriod: models.PeriodLast24h,
	})
	require.NoError(t, err)
	return NewRouter(h)
}

func TestRouterServesPageAndAssets(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/", "/assets/history.css", "/js/history.js", "/api/v1/health"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouterRejectsUnsupportedMethods(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/views", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/views", nil)
	req.Header.Set("Origin", "http://localhost:3500")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3500", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouterCORSIgnoresUnknownOrigin(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
