package journals

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Service posts validated journal entries.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.List(ctx, limit)
}

func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, id)
}

// PostJournal validates the lines and persists the entry only when the
// report is accepted. The report is returned in every case.
func (s *Service) PostJournal(ctx context.Context, input PostingInput) (JournalEntry, BalanceReport, error) {
	if input.Date.IsZero() {
		input.Date = s.now()
	}
	report := Validate(input.Lines)
	if err := input.Validate(); err != nil {
		return JournalEntry{}, report, err
	}
	if err := centsOnly(input.Lines); err != nil {
		return JournalEntry{}, report, err
	}
	if err := report.Err(); err != nil {
		return JournalEntry{}, report, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.insert(ctx, tx, input, report, nil)
		return err
	})
	if err != nil {
		return JournalEntry{}, report, err
	}
	s.logger.Info("journal posted",
		slog.Int64("id", entry.ID),
		slog.Int64("number", entry.Number),
		slog.Float64("total", report.TotalDebit))
	return entry, report, nil
}

// ReverseJournal posts the mirror image of a posted entry and marks the
// original as reversed.
func (s *Service) ReverseJournal(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	if input.EntryID <= 0 {
		return JournalEntry{}, fmt.Errorf("accounting: reverse: %w", ErrJournalNotFound)
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetJournalForUpdate(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status != JournalStatusPosted {
			return ErrInvalidStatus
		}
		targetDate := original.Date
		if input.TargetDate != nil {
			targetDate = *input.TargetDate
		}
		posting := PostingInput{
			Date: targetDate,
			Memo: defaultReversalMemo(input.Memo, original.Number),
			// the mirrored lines of an accepted entry always balance
			Lines: reverseLines(original.Lines),
		}
		report := Validate(posting.Lines)
		if err := report.Err(); err != nil {
			return err
		}
		reversal, err = s.insert(ctx, tx, posting, report, &original.ID)
		if err != nil {
			return err
		}
		return tx.UpdateJournalStatus(ctx, original.ID, JournalStatusReversed)
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.logger.Info("journal reversed", slog.Int64("id", input.EntryID), slog.Int64("reversal_id", reversal.ID))
	return reversal, nil
}

func (s *Service) insert(ctx context.Context, tx TxRepository, input PostingInput, report BalanceReport, reversalOf *int64) (JournalEntry, error) {
	entry, err := tx.InsertJournalEntry(ctx, JournalEntry{
		Date:         input.Date,
		SourceModule: input.SourceModule,
		SourceID:     input.SourceID,
		Memo:         input.Memo,
		ReversalOf:   reversalOf,
		TotalDebit:   report.TotalDebit,
		TotalCredit:  report.TotalCredit,
		Status:       JournalStatusPosted,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	lines, err := tx.InsertJournalLines(ctx, entry.ID, toJournalLines(entry.ID, input.Lines))
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}
