package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	commitErr error
	committed bool
	rolled    bool
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolled = true
	return nil
}

type fakeBeginner struct {
	txs   []*fakeTx
	opts  []pgx.TxOptions
	begin error
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if b.begin != nil {
		return nil, b.begin
	}
	tx := &fakeTx{}
	b.txs = append(b.txs, tx)
	b.opts = append(b.opts, opts)
	return tx, nil
}

func TestWithTxCommits(t *testing.T) {
	b := &fakeBeginner{}
	require.NoError(t, WithTx(context.Background(), b, func(context.Context, pgx.Tx) error { return nil }))
	require.Len(t, b.txs, 1)
	require.True(t, b.txs[0].committed)
	require.Equal(t, pgx.RepeatableRead, b.opts[0].IsoLevel)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	b := &fakeBeginner{}
	boom := errors.New("boom")
	err := WithTx(context.Background(), b, func(context.Context, pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Len(t, b.txs, 1)
	require.False(t, b.txs[0].committed)
	require.True(t, b.txs[0].rolled)
}

func TestWithTxRetriesSerializationFailures(t *testing.T) {
	b := &fakeBeginner{}
	calls := 0
	err := WithTx(context.Background(), b, func(context.Context, pgx.Tx) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.True(t, b.txs[2].committed)

	calls = 0
	err = WithTx(context.Background(), b, func(context.Context, pgx.Tx) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, serializationRetries, calls)
}

func TestWithTxBeginFailure(t *testing.T) {
	b := &fakeBeginner{begin: errors.New("no conn")}
	err := WithTx(context.Background(), b, func(context.Context, pgx.Tx) error { return nil })
	require.ErrorContains(t, err, "begin tx")
}

func TestWithTxJoinsEnclosingTransaction(t *testing.T) {
	b := &fakeBeginner{}
	boom := errors.New("receivable rejected")
	err := WithTx(context.Background(), b, func(ctx context.Context, outer pgx.Tx) error {
		return WithTx(ctx, b, func(ctx context.Context, inner pgx.Tx) error {
			require.Same(t, outer, inner)
			got, ok := TxFromContext(ctx)
			require.True(t, ok)
			require.Same(t, outer, got)
			return boom
		})
	})
	require.ErrorIs(t, err, boom)
	require.Len(t, b.txs, 1)
	require.False(t, b.txs[0].committed)
	require.True(t, b.txs[0].rolled)

	_, ok := TxFromContext(context.Background())
	require.False(t, ok)
}
