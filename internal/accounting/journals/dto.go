package journals

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

var (
	// ErrJournalNotFound indicates an unknown entry.
	ErrJournalNotFound = fmt.Errorf("accounting: journal %w", shared.ErrNotFound)
	// ErrSourceAlreadyLinked indicates the source document was already posted.
	ErrSourceAlreadyLinked = fmt.Errorf("accounting: source already posted: %w", shared.ErrConflict)
	// ErrInvalidStatus indicates the entry cannot be reversed.
	ErrInvalidStatus = fmt.Errorf("accounting: journal already reversed: %w", shared.ErrRejected)
)

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	Date         time.Time
	SourceModule string
	SourceID     string
	Memo         string
	Lines        []Line
}

// ReverseInput requests a reversal of a posted entry.
type ReverseInput struct {
	EntryID    int64
	TargetDate *time.Time
	Memo       string
}

// Validate checks header fields. Line checks belong to the balance report.
func (in PostingInput) Validate() error {
	verr := &shared.ValidationError{}
	if in.Date.IsZero() {
		verr.Add(-1, "date", "is required")
	}
	if (in.SourceModule == "") != (in.SourceID == "") {
		verr.Add(-1, "sourceId", "source module and id go together")
	}
	if len(in.Memo) > 500 {
		verr.Add(-1, "memo", "must be at most 500 characters")
	}
	return verr.OrNil()
}

// centsOnly rejects amounts that the ledger cannot store without rounding,
// which could turn a balanced entry into an unbalanced one.
func centsOnly(lines []Line) error {
	verr := &shared.ValidationError{}
	for i, line := range lines {
		if shared.ExceedsScale(line.Debit, shared.MoneyScale) || shared.ExceedsScale(line.Credit, shared.MoneyScale) {
			verr.Add(i, "amount", "must have at most 2 decimals")
		}
	}
	return verr.OrNil()
}

func reverseLines(lines []JournalLine) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, Line{Account: line.Account, Debit: line.Credit, Credit: line.Debit})
	}
	return out
}

func defaultReversalMemo(memo string, number int64) string {
	if strings.TrimSpace(memo) != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of JE-%d", number)
}
