package domain

import "github.com/shopspring/decimal"

// Totals is the money breakdown of a quotation.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	VatAmount decimal.Decimal `json:"vat_amount"`
	Total     decimal.Decimal `json:"total"`
}

// ComputeTotals prices a quotation from its lines. Only selected lines count.
// Each line total is quantity * unit price rounded to cents. VAT applies to
// the subtotal after the discount, clamped at zero so an oversized discount
// never yields negative tax.
func ComputeTotals(items []QuoteItem, discount, vatRate decimal.Decimal, includeVat bool) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		if !item.IsSelected {
			continue
		}
		subtotal = subtotal.Add(LineTotal(item))
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}

	vat := decimal.Zero
	if includeVat && vatRate.IsPositive() {
		vat = taxable.Mul(vatRate).Div(decimal.NewFromInt(100)).Round(2)
	}

	return Totals{
		Subtotal:  subtotal.Round(2),
		Discount:  discount.Round(2),
		VatAmount: vat,
		Total:     taxable.Add(vat).Round(2),
	}
}

// LineTotal is quantity * unit price rounded to cents.
func LineTotal(item QuoteItem) decimal.Decimal {
	qty := item.Quantity
	if qty.IsZero() {
		qty = decimal.NewFromInt(1)
	}
	return qty.Mul(item.UnitPrice).Round(2)
}
