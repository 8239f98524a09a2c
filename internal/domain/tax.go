package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidRateTable reports a bracket table that does not partition [0, +inf)
// or whose quick deductions leave the tax function discontinuous.
var ErrInvalidRateTable = errors.New("invalid rate table")

// TaxBracket is one progressive tier. A null Upper means the bracket is unbounded.
type TaxBracket struct {
	Lower          decimal.Decimal     `json:"lower"`
	Upper          decimal.NullDecimal `json:"upper"`
	Rate           decimal.Decimal     `json:"rate"`
	QuickDeduction decimal.Decimal     `json:"quick_deduction"`
}

// Unbounded reports whether the bracket extends to +inf.
func (b TaxBracket) Unbounded() bool {
	return !b.Upper.Valid
}

// Contains reports whether amount falls in (Lower, Upper].
func (b TaxBracket) Contains(amount decimal.Decimal) bool {
	if !amount.GreaterThan(b.Lower) {
		return false
	}
	return b.Unbounded() || amount.LessThanOrEqual(b.Upper.Decimal)
}

// TaxAt evaluates the bracket's linear formula at amount.
func (b TaxBracket) TaxAt(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(b.Rate).Sub(b.QuickDeduction)
}

// RateTable is an ascending list of brackets.
type RateTable []TaxBracket

// Find returns the first bracket containing amount.
func (t RateTable) Find(amount decimal.Decimal) (TaxBracket, bool) {
	for _, b := range t {
		if b.Contains(amount) {
			return b, true
		}
	}
	return TaxBracket{}, false
}

// Clone returns a copy that shares no backing array with t.
func (t RateTable) Clone() RateTable {
	if t == nil {
		return nil
	}
	out := make(RateTable, len(t))
	copy(out, t)
	return out
}

// Validate checks the partition and continuity invariants, including a zero
// tax at the origin.
func (t RateTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: no brackets", ErrInvalidRateTable)
	}
	if !t[0].Lower.IsZero() {
		return fmt.Errorf("%w: first bracket starts at %s, want 0", ErrInvalidRateTable, t[0].Lower)
	}
	if !t[0].QuickDeduction.IsZero() {
		// tax at 0 must be 0, otherwise small incomes compute negative tax
		return fmt.Errorf("%w: first bracket quick deduction %s, want 0", ErrInvalidRateTable, t[0].QuickDeduction)
	}

	one := decimal.NewFromInt(1)
	for i, b := range t {
		if b.Rate.IsNegative() || b.Rate.GreaterThan(one) {
			return fmt.Errorf("%w: bracket %d rate %s outside [0,1]", ErrInvalidRateTable, i, b.Rate)
		}

		last := i == len(t)-1
		switch {
		case last && !b.Unbounded():
			return fmt.Errorf("%w: last bracket must be unbounded", ErrInvalidRateTable)
		case !last && b.Unbounded():
			return fmt.Errorf("%w: bracket %d is unbounded but not last", ErrInvalidRateTable, i)
		case !b.Unbounded() && !b.Upper.Decimal.GreaterThan(b.Lower):
			return fmt.Errorf("%w: bracket %d upper %s not above lower %s", ErrInvalidRateTable, i, b.Upper.Decimal, b.Lower)
		}

		if i == 0 {
			continue
		}
		prev := t[i-1]
		boundary := prev.Upper.Decimal
		if !b.Lower.Equal(boundary) {
			return fmt.Errorf("%w: bracket %d starts at %s, previous ends at %s", ErrInvalidRateTable, i, b.Lower, boundary)
		}
		if !prev.TaxAt(boundary).Equal(b.TaxAt(boundary)) {
			return fmt.Errorf("%w: discontinuous at %s (%s vs %s)", ErrInvalidRateTable, boundary, prev.TaxAt(boundary), b.TaxAt(boundary))
		}
	}
	return nil
}

// IncomeRecord is the transient input to a single calculation.
type IncomeRecord struct {
	Salary          decimal.Decimal
	Bonus           decimal.Decimal
	SocialSecurity  decimal.Decimal
	ProvidentFund   decimal.Decimal
	OtherDeductions decimal.Decimal
}

// TotalIncome is salary plus bonus.
func (r IncomeRecord) TotalIncome() decimal.Decimal {
	return r.Salary.Add(r.Bonus)
}

// TotalDeductions sums the itemised deductions.
func (r IncomeRecord) TotalDeductions() decimal.Decimal {
	return r.SocialSecurity.Add(r.ProvidentFund).Add(r.OtherDeductions)
}
