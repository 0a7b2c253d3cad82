package migrations

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	scripts []string
	err     error
}

func (e *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	e.scripts = append(e.scripts, sql)
	return pgconn.CommandTag{}, e.err
}

func TestApplyRunsSchema(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.Equal(t, "0001_tradebook.sql", names[0])

	exec := &recordingExecer{}
	require.NoError(t, Apply(context.Background(), exec))
	require.Len(t, exec.scripts, len(names))
	for _, table := range []string{"documents", "document_lines", "journal_entries", "journal_lines", "products", "stock_adjustments", "invoices", "invoice_payments", "idempotency_keys"} {
		require.True(t, strings.Contains(exec.scripts[0], "CREATE TABLE IF NOT EXISTS "+table+" ("), table)
	}
	require.Contains(t, exec.scripts[0], "uq_journal_entries_source")
}

func TestApplyWrapsErrors(t *testing.T) {
	exec := &recordingExecer{err: errors.New("syntax error")}
	err := Apply(context.Background(), exec)
	require.ErrorContains(t, err, "0001_tradebook.sql")
}
