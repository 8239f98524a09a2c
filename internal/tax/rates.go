package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"income-tax/internal/domain"
)

// DefaultRateTable is materialised when no table has been persisted yet.
func DefaultRateTable() domain.RateTable {
	return domain.RateTable{
		bracket(0, 36000, "0.03", 0),
		bracket(36000, 144000, "0.10", 2520),
		bracket(144000, 300000, "0.20", 16920),
		bracket(300000, 420000, "0.25", 31920),
		bracket(420000, 660000, "0.30", 52920),
		bracket(660000, 960000, "0.35", 85920),
		openBracket(960000, "0.45", 181920),
	}
}

func bracket(lower, upper int64, rate string, quick int64) domain.TaxBracket {
	return domain.TaxBracket{
		Lower:          decimal.NewFromInt(lower),
		Upper:          decimal.NewNullDecimal(decimal.NewFromInt(upper)),
		Rate:           decimal.RequireFromString(rate),
		QuickDeduction: decimal.NewFromInt(quick),
	}
}

func openBracket(lower int64, rate string, quick int64) domain.TaxBracket {
	return domain.TaxBracket{
		Lower:          decimal.NewFromInt(lower),
		Rate:           decimal.RequireFromString(rate),
		QuickDeduction: decimal.NewFromInt(quick),
	}
}

// DeriveQuickDeductions returns a copy of table whose quick deductions make
// the tax function continuous and zero at the origin.
//
// For consecutive brackets meeting at boundary b:
//
//	q[i] = q[i-1] + b*(rate[i]-rate[i-1])
func DeriveQuickDeductions(table domain.RateTable) (domain.RateTable, error) {
	out := table.Clone()
	if len(out) > 0 {
		out[0].QuickDeduction = decimal.Zero
	}
	for i := 1; i < len(out); i++ {
		prev := out[i-1]
		if prev.Unbounded() {
			return nil, fmt.Errorf("%w: bracket %d is unbounded but not last", domain.ErrInvalidRateTable, i-1)
		}
		boundary := prev.Upper.Decimal
		out[i].QuickDeduction = prev.QuickDeduction.Add(boundary.Mul(out[i].Rate.Sub(prev.Rate)))
	}
	return out, nil
}
