// Package tax implements the progressive income tax calculation.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"income-tax/internal/domain"
)

// StandardDeduction is subtracted from every record before bracket lookup.
var StandardDeduction = decimal.NewFromInt(5000)

// Breakdown carries every intermediate quantity of one calculation.
type Breakdown struct {
	TotalIncome       decimal.Decimal
	TotalDeductions   decimal.Decimal
	StandardDeduction decimal.Decimal
	TaxableIncome     decimal.Decimal
	// Taxable is false when TaxableIncome <= 0; no bracket is consulted then.
	Taxable bool
	// Matched is false when a positive taxable income hit no bracket.
	Matched bool
	Bracket domain.TaxBracket
	Tax     decimal.Decimal
}

// TaxableIncome returns total income minus deductions and the standard deduction.
// Negative inputs are not rejected.
func TaxableIncome(rec domain.IncomeRecord) decimal.Decimal {
	return rec.TotalIncome().Sub(rec.TotalDeductions()).Sub(StandardDeduction)
}

// Explain runs the calculation and keeps the intermediate values.
func Explain(rec domain.IncomeRecord, table domain.RateTable) Breakdown {
	b := Breakdown{
		TotalIncome:       rec.TotalIncome(),
		TotalDeductions:   rec.TotalDeductions(),
		StandardDeduction: StandardDeduction,
		TaxableIncome:     TaxableIncome(rec),
		Tax:               decimal.Zero,
	}
	if !b.TaxableIncome.IsPositive() {
		return b
	}
	b.Taxable = true

	bracket, ok := table.Find(b.TaxableIncome)
	if !ok {
		// malformed table: no tax rather than an error
		return b
	}
	b.Matched = true
	b.Bracket = bracket
	b.Tax = bracket.TaxAt(b.TaxableIncome)
	return b
}

// ComputeTax returns the tax payable for rec under table.
func ComputeTax(rec domain.IncomeRecord, table domain.RateTable) decimal.Decimal {
	return Explain(rec, table).Tax
}

// Lines renders the breakdown as human readable text lines.
func (b Breakdown) Lines() []string {
	if !b.Taxable {
		return []string{"Taxable income: 0 (no tax payable)"}
	}

	lines := []string{
		"Calculation details:",
		fmt.Sprintf("Total income: %s", b.TotalIncome.StringFixed(2)),
		fmt.Sprintf("Total deductions: %s", b.TotalDeductions.StringFixed(2)),
		fmt.Sprintf("Standard deduction: %s", b.StandardDeduction.StringFixed(2)),
		fmt.Sprintf("Taxable income: %s", b.TaxableIncome.StringFixed(2)),
	}
	if !b.Matched {
		return append(lines, "No matching tax bracket; tax payable: 0.00")
	}
	return append(lines,
		fmt.Sprintf("Applicable tax rate: %s%%", b.Bracket.Rate.Shift(2).StringFixed(0)),
		fmt.Sprintf("Quick deduction: %s", b.Bracket.QuickDeduction.StringFixed(2)),
		fmt.Sprintf("Tax payable: %s", b.Tax.StringFixed(2)),
	)
}
