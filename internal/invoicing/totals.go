package invoicing

import "github.com/shopspring/decimal"

// Totals holds the derived monetary figures of one invoice.
type Totals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ComputeTotals derives subtotal, tax and total from the lines. Tax applies
// to the subtotal only; the discount comes off after tax. Inputs must have
// been validated, negative figures are not checked again here.
func ComputeTotals(lines []LineInput, taxRate, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)
	total := subtotal.Add(tax).Sub(discount).Round(2)
	return Totals{Subtotal: subtotal.Round(2), TaxAmount: tax, Total: total}
}

// lineTotal derives the stored per-line total.
func lineTotal(line LineInput) decimal.Decimal {
	return line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
}
