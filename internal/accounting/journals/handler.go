package journals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/tradebook/internal/observability"
	"github.com/odyssey-erp/tradebook/internal/platform/httpx"
	"github.com/odyssey-erp/tradebook/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics}
}

// MountRoutes registers journal endpoints. Entries are immutable once posted;
// corrections go through a reversal.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/validate", h.Validate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Show)
		r.Post("/reverse", h.Reverse)
	})
}

type lineRequest struct {
	Account string `json:"account"`
	Debit   any    `json:"debit"`
	Credit  any    `json:"credit"`
}

type entryRequest struct {
	Date         *time.Time    `json:"date"`
	Memo         string        `json:"memo" validate:"max=500"`
	SourceModule string        `json:"sourceModule" validate:"max=64"`
	SourceID     string        `json:"sourceId" validate:"max=128"`
	Lines        []lineRequest `json:"lines"`
}

func (req entryRequest) lines() []Line {
	out := make([]Line, len(req.Lines))
	for i, l := range req.Lines {
		out[i] = Line{Account: l.Account, Debit: shared.Number(l.Debit), Credit: shared.Number(l.Credit)}
	}
	return out
}

type reverseRequest struct {
	Date *time.Time `json:"date"`
	Memo string     `json:"memo" validate:"max=500"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.fail(w, "list journals", err)
		return
	}
	if entries == nil {
		entries = []JournalEntry{}
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := entryIDParam(r)
	if err != nil {
		h.fail(w, "parse journal id", err)
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "load journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// Validate reports the balance of draft lines without persisting anything.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "decode journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, Validate(req.lines()))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "decode journal", err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, "validate journal", err)
		return
	}
	input := PostingInput{
		Memo:         req.Memo,
		SourceModule: req.SourceModule,
		SourceID:     req.SourceID,
		Lines:        req.lines(),
	}
	if req.Date != nil {
		input.Date = *req.Date
	}
	entry, report, err := h.service.PostJournal(r.Context(), input)
	if err != nil {
		h.metrics.ObserveRejection("journals", err)
		p := httpx.ProblemFor(err)
		if p.Status >= http.StatusInternalServerError {
			h.logger.Error("post journal", slog.Any("error", err))
			httpx.WriteProblem(w, p)
			return
		}
		var lineErrs *LineErrors
		if errors.As(err, &lineErrs) {
			p.Fields = lineErrs.ValidationError().Map()
		}
		if p.Context == nil {
			p.Context = map[string]any{}
		}
		p.Context["report"] = report
		httpx.WriteProblem(w, p)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := entryIDParam(r)
	if err != nil {
		h.fail(w, "parse journal id", err)
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.fail(w, "decode reversal", err)
			return
		}
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, "validate reversal", err)
		return
	}
	reversal, err := h.service.ReverseJournal(r.Context(), ReverseInput{EntryID: id, TargetDate: req.Date, Memo: req.Memo})
	if err != nil {
		h.fail(w, "reverse journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reversal)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.metrics.ObserveRejection("journals", err)
	p := httpx.ProblemFor(err)
	if p.Status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.WriteProblem(w, p)
}

func entryIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewFieldError("id", "must be a positive integer")
	}
	return id, nil
}
