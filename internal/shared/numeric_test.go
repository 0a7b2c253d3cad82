package shared

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNumberDefaultsToZero(t *testing.T) {
	cases := map[string]struct {
		in   any
		want float64
	}{
		"nil":          {nil, 0},
		"float":        {12.5, 12.5},
		"int":          {3, 3},
		"numeric text": {"7.25", 7.25},
		"json number":  {json.Number("4.5"), 4.5},
		"garbage":      {"abc", 0},
		"empty":        {"", 0},
		"nan":          {math.NaN(), 0},
		"inf":          {math.Inf(1), 0},
		"bool true":    {true, 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.InDelta(t, tc.want, Number(tc.in), 1e-9)
		})
	}
}

func TestPercentClamps(t *testing.T) {
	require.Equal(t, 0.0, Percent(-5))
	require.Equal(t, 100.0, Percent("250"))
	require.Equal(t, 19.6, Percent(19.6))
	require.Equal(t, 0.0, Percent("n/a"))
}

func TestRound2(t *testing.T) {
	require.Equal(t, 1.01, Round2(1.005))
	require.Equal(t, -1.01, Round2(-1.005))
	require.Equal(t, 0.3, Round2(0.1+0.2))
	require.Equal(t, 0.0, Round2(math.NaN()))
	require.Equal(t, 0.0, Round2(-1e-13))
}

func TestNearlyEqual(t *testing.T) {
	require.True(t, NearlyEqual(100, 100.0005, BalanceTolerance))
	require.False(t, NearlyEqual(100, 100.002, BalanceTolerance))
}

func TestExactArithmetic(t *testing.T) {
	require.Equal(t, 0.3, AddExact(0.1, 0.2))
	require.Equal(t, 0.1, SubExact(AddExact(0.1, 0.2), 0.2))
	require.Equal(t, 0.0, SubExact(SubExact(SubExact(0.3, 0.1), 0.1), 0.1))
	require.Equal(t, -0.05, SubExact(1.2, 1.25))
}

func TestExceedsScale(t *testing.T) {
	require.False(t, ExceedsScale(1.5, MoneyScale))
	require.False(t, ExceedsScale(1.01, MoneyScale))
	require.False(t, ExceedsScale(100, MoneyScale))
	require.True(t, ExceedsScale(1.005, MoneyScale))
	require.True(t, ExceedsScale(0.004, MoneyScale))
	require.False(t, ExceedsScale(0.0125, QuantityScale))
	require.True(t, ExceedsScale(0.00001, QuantityScale))
	require.True(t, ExceedsScale(math.NaN(), MoneyScale))
}
