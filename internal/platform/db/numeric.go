package db

import (
	"math"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ToNumeric converts an amount into a NUMERIC parameter. NaN and infinities
// map to NUMERIC's special values, which NUMERIC(p,s) columns reject.
func ToNumeric(f float64) pgtype.Numeric {
	switch {
	case math.IsNaN(f):
		return pgtype.Numeric{NaN: true, Valid: true}
	case math.IsInf(f, 1):
		return pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true}
	case math.IsInf(f, -1):
		return pgtype.Numeric{InfinityModifier: pgtype.NegativeInfinity, Valid: true}
	}
	d := decimal.NewFromFloat(f)
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// FromNumeric reads a NUMERIC column; NULL reads as zero.
func FromNumeric(n pgtype.Numeric) float64 {
	if !n.Valid {
		return 0
	}
	f, _ := n.Float64Value()
	return f.Float64
}
