package journals

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

// Line is one draft posting of a journal entry.
type Line struct {
	Account string  `json:"account"`
	Debit   float64 `json:"debit"`
	Credit  float64 `json:"credit"`
}

// LineErrorKind classifies why a line cannot be posted.
type LineErrorKind string

const (
	LineErrMissingAccount LineErrorKind = "missing-account"
	LineErrNegativeAmount LineErrorKind = "negative-amount"
	LineErrDebitAndCredit LineErrorKind = "debit-and-credit"
	LineErrEmptyAmount    LineErrorKind = "empty-amount"
)

// MinLines is the smallest number of lines a journal entry may have.
const MinLines = 2

var (
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = fmt.Errorf("accounting: journal requires at least two lines: %w", shared.ErrValidation)
	// ErrUnbalanced is matched by *BalanceMismatchError.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
)

// BalanceReport is the outcome of validating a draft journal entry.
// IsBalanced only reflects the debit/credit sums; Accepted also requires
// every line to be well formed.
type BalanceReport struct {
	IsBalanced  bool                  `json:"isBalanced"`
	TotalDebit  float64               `json:"totalDebit"`
	TotalCredit float64               `json:"totalCredit"`
	LineErrors  map[int]LineErrorKind `json:"perLineErrors"`
	TooFewLines bool                  `json:"tooFewLines,omitempty"`
}

// Validate checks every line and the debit = credit identity. It never
// mutates its input.
func Validate(lines []Line) BalanceReport {
	report := BalanceReport{LineErrors: make(map[int]LineErrorKind)}
	for i, line := range lines {
		if kind, ok := checkLine(line); !ok {
			report.LineErrors[i] = kind
		}
		report.TotalDebit = shared.AddExact(report.TotalDebit, line.Debit)
		report.TotalCredit = shared.AddExact(report.TotalCredit, line.Credit)
	}
	report.IsBalanced = math.Abs(report.TotalDebit-report.TotalCredit) < shared.BalanceTolerance
	report.TooFewLines = len(lines) < MinLines
	return report
}

func checkLine(line Line) (LineErrorKind, bool) {
	switch {
	case strings.TrimSpace(line.Account) == "":
		return LineErrMissingAccount, false
	case line.Debit < 0 || line.Credit < 0:
		return LineErrNegativeAmount, false
	case line.Debit != 0 && line.Credit != 0:
		return LineErrDebitAndCredit, false
	case line.Debit == 0 && line.Credit == 0:
		return LineErrEmptyAmount, false
	}
	return "", true
}

// Accepted reports whether the entry may be persisted.
func (r BalanceReport) Accepted() bool {
	return r.IsBalanced && !r.TooFewLines && len(r.LineErrors) == 0
}

// Err returns nil for an accepted entry and otherwise the most fundamental
// reason for rejection: too few lines, malformed lines, then imbalance.
func (r BalanceReport) Err() error {
	switch {
	case r.TooFewLines:
		return ErrTooFewLines
	case len(r.LineErrors) > 0:
		return &LineErrors{Lines: r.LineErrors}
	case !r.IsBalanced:
		return &BalanceMismatchError{TotalDebit: r.TotalDebit, TotalCredit: r.TotalCredit}
	}
	return nil
}

// BalanceMismatchError carries both sums of an unbalanced entry.
type BalanceMismatchError struct {
	TotalDebit  float64
	TotalCredit float64
}

// Difference is debit minus credit.
func (e *BalanceMismatchError) Difference() float64 {
	return e.TotalDebit - e.TotalCredit
}

func (e *BalanceMismatchError) Error() string {
	return fmt.Sprintf("accounting: balance mismatch: debit %.2f, credit %.2f", e.TotalDebit, e.TotalCredit)
}

// Is matches ErrUnbalanced and shared.ErrRejected.
func (e *BalanceMismatchError) Is(target error) bool {
	return target == ErrUnbalanced || target == shared.ErrRejected
}

// Details exposes both sums for problem responses.
func (e *BalanceMismatchError) Details() map[string]any {
	return map[string]any{
		"totalDebit":  e.TotalDebit,
		"totalCredit": e.TotalCredit,
		"difference":  e.Difference(),
	}
}

// LineErrors reports malformed lines by index.
type LineErrors struct {
	Lines map[int]LineErrorKind
}

func (e *LineErrors) Error() string {
	idx := make([]int, 0, len(e.Lines))
	for i := range e.Lines {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, fmt.Sprintf("line %d: %s", i, e.Lines[i]))
	}
	return "accounting: invalid lines: " + strings.Join(parts, ", ")
}

// Is makes LineErrors a validation error.
func (e *LineErrors) Is(target error) bool {
	return target == shared.ErrValidation
}

// ValidationError converts the line errors into field feedback.
func (e *LineErrors) ValidationError() *shared.ValidationError {
	verr := &shared.ValidationError{}
	idx := make([]int, 0, len(e.Lines))
	for i := range e.Lines {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		field := "amount"
		if e.Lines[i] == LineErrMissingAccount {
			field = "account"
		}
		verr.Add(i, field, string(e.Lines[i]))
	}
	return verr
}
