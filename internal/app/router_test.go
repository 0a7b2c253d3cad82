package app

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/tradebook/internal/observability"
	"github.com/odyssey-erp/tradebook/internal/sales"
	_ "github.com/odyssey-erp/tradebook/testing"
)

func newTestRouter(t *testing.T, health map[string]HealthCheck) (http.Handler, *observability.Metrics) {
	t.Helper()
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	t.Cleanup(func() { RefreshTestMode() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	salesHandler := sales.NewHandler(logger, sales.NewService(nil, nil, nil, logger), metrics)
	return NewRouter(RouterParams{
		Logger:       logger,
		Config:       &Config{AppEnv: "test"},
		SalesHandler: salesHandler,
		Metrics:      metrics,
		Health:       health,
	}), metrics
}

func TestRouterServesPricingUnderAPI(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/pricing/totals", strings.NewReader(`{"lines":[{"quantity":10,"unitPriceHT":100,"vatRate":20,"discountRate":10}]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"totalTTC":1080`)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Frame-Options"))
}

func TestRouterHealth(t *testing.T) {
	router, _ := newTestRouter(t, map[string]HealthCheck{
		"postgres": func(*http.Request) error { return nil },
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","postgres":"up"}`, rr.Body.String())

	router, _ = newTestRouter(t, map[string]HealthCheck{
		"redis": func(*http.Request) error { return errors.New("connection refused") },
	})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"degraded","redis":"down"}`, rr.Body.String())
}

func TestRouterMetricsCountRejections(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/pricing/lines", strings.NewReader(`{"lines":[]}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "tradebook_engine_rejections_total")
	assert.Contains(t, body, "tradebook_http_requests_total")
}
