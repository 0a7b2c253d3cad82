package journals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/tradebook/internal/platform/db"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	List(ctx context.Context, limit int) ([]JournalEntry, error)
	Get(ctx context.Context, id int64) (JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction
type TxRepository interface {
	InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertJournalLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error)
	GetJournalForUpdate(ctx context.Context, entryID int64) (JournalEntry, error)
	UpdateJournalStatus(ctx context.Context, entryID int64, status JournalStatus) error
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, number, date, source_module, source_id, memo, reversal_of, total_debit, total_credit, status, posted_at`

func (r *repository) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries ORDER BY number DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return getWithLines(ctx, r.db, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (date, source_module, source_id, memo, reversal_of, total_debit, total_credit, status)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8) RETURNING id, number, posted_at`,
		entry.Date, entry.SourceModule, entry.SourceID, entry.Memo, entry.ReversalOf,
		db.ToNumeric(entry.TotalDebit), db.ToNumeric(entry.TotalCredit), string(entry.Status))
	if err := row.Scan(&entry.ID, &entry.Number, &entry.PostedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_journal_entries_source" {
			return JournalEntry{}, ErrSourceAlreadyLinked
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error) {
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`INSERT INTO journal_lines (je_id, line_no, account, debit, credit) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			entryID, line.LineNo, line.Account, db.ToNumeric(line.Debit), db.ToNumeric(line.Credit))
	}
	results := r.tx.SendBatch(ctx, batch)
	defer results.Close()
	out := make([]JournalLine, len(lines))
	for i, line := range lines {
		line.JournalID = entryID
		if err := results.QueryRow().Scan(&line.ID); err != nil {
			return nil, err
		}
		out[i] = line
	}
	return out, nil
}

func (r *txRepository) GetJournalForUpdate(ctx context.Context, entryID int64) (JournalEntry, error) {
	return getWithLines(ctx, r.tx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, entryID)
}

func (r *txRepository) UpdateJournalStatus(ctx context.Context, entryID int64, status JournalStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2 WHERE id=$1`, entryID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func getWithLines(ctx context.Context, q queryer, sql string, id int64) (JournalEntry, error) {
	entry, err := scanEntry(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, je_id, line_no, account, debit, credit FROM journal_lines WHERE je_id=$1 ORDER BY line_no ASC`, id)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			line          JournalLine
			debit, credit pgtype.Numeric
		)
		if err := rows.Scan(&line.ID, &line.JournalID, &line.LineNo, &line.Account, &debit, &credit); err != nil {
			return JournalEntry{}, err
		}
		line.Debit = db.FromNumeric(debit)
		line.Credit = db.FromNumeric(credit)
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var (
		e                    JournalEntry
		module, source, memo pgtype.Text
		reversalOf           pgtype.Int8
		debit, credit        pgtype.Numeric
		status               string
	)
	if err := row.Scan(&e.ID, &e.Number, &e.Date, &module, &source, &memo, &reversalOf, &debit, &credit, &status, &e.PostedAt); err != nil {
		return JournalEntry{}, err
	}
	e.SourceModule = module.String
	e.SourceID = source.String
	e.Memo = memo.String
	if reversalOf.Valid {
		id := reversalOf.Int64
		e.ReversalOf = &id
	}
	e.TotalDebit = db.FromNumeric(debit)
	e.TotalCredit = db.FromNumeric(credit)
	e.Status = JournalStatus(status)
	return e, nil
}
