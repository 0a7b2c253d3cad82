package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

// Detailer is implemented by rejection errors that expose their numeric
// context, e.g. both journal sums or the stock shortfall.
type Detailer interface {
	Details() map[string]any
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	WriteProblem(w, ProblemFor(err))
}

// ProblemFor builds the problem document describing err.
func ProblemFor(err error) ProblemDetail {
	var verr *shared.ValidationError
	var detailer Detailer
	switch {
	case errors.Is(err, ErrBadBody):
		return ProblemDetail{Title: "Bad Request", Status: http.StatusBadRequest, Detail: err.Error()}
	case errors.As(err, &verr):
		return ProblemDetail{Title: "Validation Failed", Status: http.StatusUnprocessableEntity, Detail: verr.Error(), Fields: verr.Map()}
	case errors.Is(err, shared.ErrValidation):
		return ProblemDetail{Title: "Validation Failed", Status: http.StatusUnprocessableEntity, Detail: err.Error()}
	case errors.Is(err, shared.ErrRejected):
		p := ProblemDetail{Title: "Rejected", Status: http.StatusUnprocessableEntity, Detail: err.Error()}
		if errors.As(err, &detailer) {
			p.Context = detailer.Details()
		}
		return p
	case errors.Is(err, shared.ErrNotFound):
		return ProblemDetail{Title: "Not Found", Status: http.StatusNotFound, Detail: err.Error()}
	case errors.Is(err, shared.ErrLockBusy):
		return ProblemDetail{Title: "Conflict", Status: http.StatusConflict, Detail: err.Error()}
	case errors.Is(err, shared.ErrConflict):
		return ProblemDetail{Title: "Conflict", Status: http.StatusConflict, Detail: err.Error()}
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return ProblemDetail{Title: "Duplicate", Status: http.StatusConflict, Detail: err.Error()}
	default:
		return ProblemDetail{Title: "Internal Error", Status: http.StatusInternalServerError}
	}
}
