package ar

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

// Handler manages AR endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	metrics *observability.Metrics
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics}
}

// MountRoutes registers AR routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/reconcile", h.reconcile)
	r.Route("/invoices/{invoiceID}", func(r chi.Router) {
		r.Post("/payments", h.recordPayment)
		r.Get("/balance", h.balance)
	})
}

type paymentRequest struct {
	Amount    float64    `json:"amount"`
	Date      *time.Time `json:"date"`
	Method    string     `json:"method" validate:"required"`
	Reference string     `json:"reference"`
}

func (p paymentRequest) toPayment() Payment {
	out := Payment{Amount: p.Amount, Method: p.Method, Reference: p.Reference}
	if p.Date != nil {
		out.Date = *p.Date
	}
	return out
}

type reconcileRequest struct {
	TotalTTC float64          `json:"totalTTC" validate:"gte=0"`
	Payments []paymentRequest `json:"payments" validate:"dive"`
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "decode reconcile", err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, "validate reconcile", err)
		return
	}
	list := make([]Payment, len(req.Payments))
	for i, p := range req.Payments {
		list[i] = p.toPayment()
	}
	httpx.JSON(w, http.StatusOK, Reconcile(req.TotalTTC, list))
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := invoiceIDParam(r)
	if err != nil {
		h.fail(w, "parse invoice id", err)
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "decode payment", err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, "validate payment", err)
		return
	}
	receipt, err := h.service.RecordPayment(r.Context(), RecordPaymentInput{
		InvoiceID:      invoiceID,
		Payment:        req.toPayment(),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.fail(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := invoiceIDParam(r)
	if err != nil {
		h.fail(w, "parse invoice id", err)
		return
	}
	balance, err := h.service.GetBalance(r.Context(), invoiceID)
	if err != nil {
		h.fail(w, "invoice balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.metrics.ObserveRejection("ar", err)
	p := httpx.ProblemFor(err)
	if p.Status >= http.StatusInternalServerError {
		h.logger.Error("ar: "+op, slog.Any("error", err))
	}
	httpx.WriteProblem(w, p)
}

func invoiceIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewFieldError("invoiceId", "must be a positive integer")
	}
	return id, nil
}
