package journals

import (
	"time"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusPosted   JournalStatus = "POSTED"
	JournalStatusReversed JournalStatus = "REVERSED"
)

// JournalEntry captures posting metadata. Posted entries are never edited;
// a reversal entry cancels them instead.
type JournalEntry struct {
	ID           int64         `json:"id"`
	Number       int64         `json:"number"`
	Date         time.Time     `json:"date"`
	SourceModule string        `json:"sourceModule,omitempty"`
	SourceID     string        `json:"sourceId,omitempty"`
	Memo         string        `json:"memo,omitempty"`
	ReversalOf   *int64        `json:"reversalOf,omitempty"`
	TotalDebit   float64       `json:"totalDebit"`
	TotalCredit  float64       `json:"totalCredit"`
	Status       JournalStatus `json:"status"`
	PostedAt     time.Time     `json:"postedAt"`
	Lines        []JournalLine `json:"lines,omitempty"`
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID        int64   `json:"id"`
	JournalID int64   `json:"journalId"`
	LineNo    int     `json:"lineNo"`
	Account   string  `json:"account"`
	Debit     float64 `json:"debit"`
	Credit    float64 `json:"credit"`
}

func toJournalLines(entryID int64, lines []Line) []JournalLine {
	out := make([]JournalLine, len(lines))
	for i, line := range lines {
		out[i] = JournalLine{
			JournalID: entryID,
			LineNo:    i + 1,
			Account:   line.Account,
			Debit:     line.Debit,
			Credit:    line.Credit,
		}
	}
	return out
}
