package sales

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/tradebook/internal/observability"
	"github.com/odyssey-erp/tradebook/internal/platform/httpx"
	"github.com/odyssey-erp/tradebook/internal/sales/conversion"
	"github.com/odyssey-erp/tradebook/internal/sales/pricing"
	"github.com/odyssey-erp/tradebook/internal/shared"
)

// Handler manages sales and pricing endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	metrics *observability.Metrics
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/conversions/preview", h.previewConversion)
	r.Post("/documents", h.createDocument)
	r.Route("/documents/{kind}/{id}", func(r chi.Router) {
		r.Get("/", h.showDocument)
		r.Post("/convert", h.convertDocument)
		r.Get("/totals", h.showTotals)
		r.Post("/totals/refresh", h.refreshTotals)
	})
}

// MountPricingRoutes registers the stateless calculators.
func (h *Handler) MountPricingRoutes(r chi.Router) {
	r.Post("/lines", h.priceLines)
	r.Post("/totals", h.priceTotals)
}

type linesRequest struct {
	Lines []pricing.LineInput `json:"lines" validate:"required,min=1,max=1000"`
}

type pricedLine struct {
	pricing.LineItem
	pricing.LineTotals
	LineTotalTTC float64 `json:"lineTotalTTC"`
}

type documentLineRequest struct {
	ProductID    string `json:"productId" validate:"required,max=64"`
	ProductName  string `json:"productName" validate:"max=255"`
	Description  string `json:"description" validate:"max=1000"`
	Quantity     any    `json:"quantity"`
	UnitPriceHT  any    `json:"unitPriceHT"`
	VATRate      any    `json:"vatRate"`
	DiscountRate any    `json:"discountRate"`
}

type createRequest struct {
	Kind   string                `json:"kind" validate:"required,oneof=QUOTE DELIVERY_NOTE INVOICE"`
	Number string                `json:"number" validate:"max=64"`
	Lines  []documentLineRequest `json:"lines" validate:"required,min=1,max=1000,dive"`
}

type convertRequest struct {
	Target    string             `json:"target" validate:"required,oneof=DELIVERY_NOTE INVOICE"`
	Number    string             `json:"number" validate:"max=64"`
	Delivered map[string]float64 `json:"delivered"`
}

type previewRequest struct {
	Source    conversion.SourceDocument `json:"source"`
	Target    string                    `json:"target" validate:"required,oneof=DELIVERY_NOTE INVOICE"`
	Delivered map[string]float64        `json:"delivered"`
}

func (h *Handler) priceLines(w http.ResponseWriter, r *http.Request) {
	var req linesRequest
	if !h.decode(w, r, &req) {
		return
	}
	items := pricing.NormalizeAll(req.Lines)
	out := make([]pricedLine, len(items))
	for i, item := range items {
		totals := pricing.Calculate(item)
		out[i] = pricedLine{LineItem: item, LineTotals: totals.Rounded(), LineTotalTTC: shared.Round2(totals.TTC())}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lines": out})
}

func (h *Handler) priceTotals(w http.ResponseWriter, r *http.Request) {
	var req linesRequest
	if !h.decode(w, r, &req) {
		return
	}
	httpx.JSON(w, http.StatusOK, pricing.Aggregate(pricing.NormalizeAll(req.Lines)))
}

func (h *Handler) previewConversion(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !h.decode(w, r, &req) {
		return
	}
	preview, err := h.service.PreviewConversion(req.Source, conversion.DocumentKind(req.Target), req.Delivered)
	if err != nil {
		h.fail(w, "preview conversion", err)
		return
	}
	httpx.JSON(w, http.StatusOK, preview)
}

func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := CreateInput{Kind: conversion.DocumentKind(req.Kind), Number: req.Number}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, LineInput{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Description: l.Description,
			Values: pricing.LineInput{
				Quantity:     l.Quantity,
				UnitPriceHT:  l.UnitPriceHT,
				VATRate:      l.VATRate,
				DiscountRate: l.DiscountRate,
			},
		})
	}
	doc, err := h.service.CreateDocument(r.Context(), in)
	if err != nil {
		h.fail(w, "create document", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) showDocument(w http.ResponseWriter, r *http.Request) {
	kind, id, err := documentParams(r)
	if err != nil {
		h.fail(w, "parse document path", err)
		return
	}
	doc, err := h.service.GetDocument(r.Context(), kind, id)
	if err != nil {
		h.fail(w, "load document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) convertDocument(w http.ResponseWriter, r *http.Request) {
	kind, id, err := documentParams(r)
	if err != nil {
		h.fail(w, "parse document path", err)
		return
	}
	var req convertRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc, err := h.service.Convert(r.Context(), ConvertInput{
		SourceKind: kind,
		SourceID:   id,
		Target:     conversion.DocumentKind(req.Target),
		Number:     req.Number,
		Delivered:  req.Delivered,
	})
	if err != nil {
		h.fail(w, "convert document", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) showTotals(w http.ResponseWriter, r *http.Request) {
	kind, id, err := documentParams(r)
	if err != nil {
		h.fail(w, "parse document path", err)
		return
	}
	totals, err := h.service.Totals(r.Context(), kind, id)
	if err != nil {
		h.fail(w, "load totals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func (h *Handler) refreshTotals(w http.ResponseWriter, r *http.Request) {
	kind, id, err := documentParams(r)
	if err != nil {
		h.fail(w, "parse document path", err)
		return
	}
	totals, err := h.service.RecalculateTotals(r.Context(), kind, id)
	if err != nil {
		h.fail(w, "refresh totals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		h.fail(w, "decode request", err)
		return false
	}
	if err := httpx.Validate(dst); err != nil {
		h.fail(w, "validate request", err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.metrics.ObserveRejection("sales", err)
	p := httpx.ProblemFor(err)
	if p.Status >= http.StatusInternalServerError {
		h.logger.Error("sales: "+op, slog.Any("error", err))
	}
	httpx.WriteProblem(w, p)
}

func documentParams(r *http.Request) (conversion.DocumentKind, string, error) {
	kind := conversion.DocumentKind(strings.ToUpper(chi.URLParam(r, "kind")))
	if !kind.Valid() {
		return "", "", shared.NewFieldError("kind", "must be QUOTE, DELIVERY_NOTE or INVOICE")
	}
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		return "", "", shared.NewFieldError("id", "is required")
	}
	return kind, id, nil
}
