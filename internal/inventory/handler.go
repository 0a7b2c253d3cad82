package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/tradebook/internal/observability"
	"github.com/odyssey-erp/tradebook/internal/platform/httpx"
	"github.com/odyssey-erp/tradebook/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	metrics *observability.Metrics
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/adjustments/preview", h.previewAdjustment)
	r.Route("/products/{productID}", func(r chi.Router) {
		r.Get("/", h.showProduct)
		r.Post("/adjustments", h.postAdjustment)
		r.Get("/stock-card", h.stockCard)
	})
}

type adjustmentRequest struct {
	AdjustmentType   string     `json:"adjustmentType" validate:"required"`
	Quantity         any        `json:"quantity"`
	NewStockQuantity any        `json:"newStockQuantity"`
	Reason           string     `json:"reason" validate:"max=500"`
	Code             string     `json:"code" validate:"max=64"`
	Date             *time.Time `json:"date"`
}

type previewRequest struct {
	CurrentStock     any    `json:"currentStock"`
	AdjustmentType   string `json:"adjustmentType" validate:"required"`
	Quantity         any    `json:"quantity"`
	NewStockQuantity any    `json:"newStockQuantity"`
}

func (req adjustmentRequest) adjustment() (Adjustment, error) {
	return ParseAdjustment(req.AdjustmentType, req.Quantity, req.NewStockQuantity)
}

func (h *Handler) previewAdjustment(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "decode preview", err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, "validate preview", err)
		return
	}
	adj, err := ParseAdjustment(req.AdjustmentType, req.Quantity, req.NewStockQuantity)
	if err != nil {
		h.fail(w, "parse adjustment", err)
		return
	}
	result, err := Apply(shared.Number(req.CurrentStock), adj)
	if err != nil {
		h.fail(w, "preview adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) showProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := productIDParam(r)
	if err != nil {
		h.fail(w, "parse product id", err)
		return
	}
	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		h.fail(w, "load product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) postAdjustment(w http.ResponseWriter, r *http.Request) {
	productID, err := productIDParam(r)
	if err != nil {
		h.fail(w, "parse product id", err)
		return
	}
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "decode adjustment", err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, "validate adjustment", err)
		return
	}
	adj, err := req.adjustment()
	if err != nil {
		h.fail(w, "parse adjustment", err)
		return
	}
	input := AdjustmentInput{Code: req.Code, ProductID: productID, Adjustment: adj, Reason: req.Reason}
	if req.Date != nil {
		input.AdjustedAt = *req.Date
	}
	movement, err := h.service.PostAdjustment(r.Context(), input)
	if err != nil {
		h.fail(w, "post adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) stockCard(w http.ResponseWriter, r *http.Request) {
	productID, err := productIDParam(r)
	if err != nil {
		h.fail(w, "parse product id", err)
		return
	}
	filter := StockCardFilter{ProductID: productID}
	q := r.URL.Query()
	verr := &shared.ValidationError{}
	if v := q.Get("from"); v != "" {
		if filter.From, err = time.Parse("2006-01-02", v); err != nil {
			verr.Add(-1, "from", "must be a YYYY-MM-DD date")
		}
	}
	if v := q.Get("to"); v != "" {
		if filter.To, err = time.Parse("2006-01-02", v); err != nil {
			verr.Add(-1, "to", "must be a YYYY-MM-DD date")
		} else {
			filter.To = filter.To.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			verr.Add(-1, "limit", "must be an integer")
		}
	}
	if err := verr.OrNil(); err != nil {
		h.fail(w, "parse stock card filter", err)
		return
	}
	movements, err := h.service.GetStockCard(r.Context(), filter)
	if err != nil {
		h.fail(w, "stock card", err)
		return
	}
	if movements == nil {
		movements = []Movement{}
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.metrics.ObserveRejection("inventory", err)
	p := httpx.ProblemFor(err)
	if p.Status >= http.StatusInternalServerError {
		h.logger.Error("inventory: "+op, slog.Any("error", err))
	}
	httpx.WriteProblem(w, p)
}

func productIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewFieldError("productId", "must be a positive integer")
	}
	return id, nil
}
