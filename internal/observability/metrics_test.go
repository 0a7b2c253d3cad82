package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	_ = metrics.Jobs().Track("ar:settlement_sweep").End(nil)

	body := scrape(t, metrics)
	if !strings.Contains(body, `tradebook_jobs_total{job="ar:settlement_sweep",status="success"} 1`) {
		t.Fatalf("expected job run to be recorded, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "tradebook_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "tradebook_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestObserveRejection(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveRejection("inventory", shared.ErrRejected)
	metrics.ObserveRejection("inventory", shared.NewFieldError("quantity", "must be greater than zero"))
	metrics.ObserveRejection("inventory", errors.New("connection reset"))
	metrics.ObserveRejection("inventory", nil)

	body := scrape(t, metrics)
	if !strings.Contains(body, `tradebook_engine_rejections_total{component="inventory",reason="rejected"} 1`) {
		t.Fatalf("expected rejection to be counted, got: %s", body)
	}
	if !strings.Contains(body, `tradebook_engine_rejections_total{component="inventory",reason="validation"} 1`) {
		t.Fatalf("expected validation failure to be counted, got: %s", body)
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveRejection("inventory", shared.ErrRejected)
}
