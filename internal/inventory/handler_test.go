package inventory

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/tradebook/internal/platform/httpx"
)

func newTestRouter(repo *memoryRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, NewService(repo, nil, nil, logger), nil)
	r := chi.NewRouter()
	r.Route("/inventory", handler.MountRoutes)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlerPreviewAdjustment(t *testing.T) {
	router := newTestRouter(newMemoryRepo())

	rr := doJSON(t, router, http.MethodPost, "/inventory/adjustments/preview", `{"currentStock":"10","adjustmentType":"in","quantity":2.5}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var result AdjustmentResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.Equal(t, AdjustmentResult{ResultingStock: 12.5, AdjustmentType: KindIn, AppliedQuantity: 2.5}, result)
}

func TestHandlerPreviewRejectsShortfall(t *testing.T) {
	router := newTestRouter(newMemoryRepo())

	rr := doJSON(t, router, http.MethodPost, "/inventory/adjustments/preview", `{"currentStock":10,"adjustmentType":"OUT","quantity":15}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, "Rejected", problem.Title)
	require.Equal(t, 5.0, problem.Context["shortfall"])
}

func TestHandlerPostAdjustment(t *testing.T) {
	repo := newMemoryRepo(Product{ID: 2, StockQuantity: 4})
	router := newTestRouter(repo)

	rr := doJSON(t, router, http.MethodPost, "/inventory/products/2/adjustments", `{"adjustmentType":"CORRECTION","newStockQuantity":"7","reason":"count"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var movement Movement
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &movement))
	require.Equal(t, 7.0, movement.ResultingStock)
	require.Equal(t, 3.0, movement.AppliedQuantity)
	require.Equal(t, 7.0, repo.products[2].StockQuantity)

	rr = doJSON(t, router, http.MethodGet, "/inventory/products/2/stock-card?from=2020-01-01", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var card []Movement
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &card))
	require.Len(t, card, 1)
}

func TestHandlerValidationProblems(t *testing.T) {
	router := newTestRouter(newMemoryRepo(Product{ID: 2}))

	rr := doJSON(t, router, http.MethodPost, "/inventory/products/2/adjustments", `{"quantity":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, "is required", problem.Fields["adjustmentType"])

	rr = doJSON(t, router, http.MethodPost, "/inventory/products/abc/adjustments", `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/inventory/products/2/adjustments", `{`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/inventory/products/404", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}
