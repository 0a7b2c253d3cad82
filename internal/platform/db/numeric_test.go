package db

import (
	"math"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

func TestNumericRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1471.48, 0.1, -12.5, 99.98} {
		require.InDelta(t, v, FromNumeric(ToNumeric(v)), 1e-9)
	}
}

func TestToNumericKeepsExactDigits(t *testing.T) {
	n := ToNumeric(1471.48)
	require.True(t, n.Valid)
	require.EqualValues(t, 147148, n.Int.Int64())
	require.EqualValues(t, -2, n.Exp)
}

func TestToNumericNonFiniteStaysValid(t *testing.T) {
	nan := ToNumeric(math.NaN())
	require.True(t, nan.Valid)
	require.True(t, nan.NaN)

	inf := ToNumeric(math.Inf(1))
	require.True(t, inf.Valid)
	require.Equal(t, pgtype.Infinity, inf.InfinityModifier)

	neg := ToNumeric(math.Inf(-1))
	require.Equal(t, pgtype.NegativeInfinity, neg.InfinityModifier)
}

func TestFromNumericNull(t *testing.T) {
	require.Zero(t, FromNumeric(pgtype.Numeric{}))
}
