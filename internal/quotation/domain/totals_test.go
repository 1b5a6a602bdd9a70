package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func line(qty, price string, selected bool) QuoteItem {
	item := QuoteItem{Quantity: d(qty), UnitPrice: d(price), IsSelected: selected}
	item.Total = LineTotal(item)
	return item
}

func TestComputeTotals(t *testing.T) {
	t.Run("vat applies after discount", func(t *testing.T) {
		items := []QuoteItem{line("1", "1000.00", true)}
		totals := ComputeTotals(items, d("100.00"), d("21"), true)

		assert.True(t, totals.Subtotal.Equal(d("1000.00")), totals.Subtotal.String())
		assert.True(t, totals.VatAmount.Equal(d("189.00")), totals.VatAmount.String())
		assert.True(t, totals.Total.Equal(d("1089.00")), totals.Total.String())
	})

	t.Run("unselected lines do not count", func(t *testing.T) {
		items := []QuoteItem{
			line("1", "500.00", true),
			line("1", "9999.00", false),
		}
		totals := ComputeTotals(items, decimal.Zero, d("21"), true)
		assert.True(t, totals.Subtotal.Equal(d("500.00")))
	})

	t.Run("vat excluded", func(t *testing.T) {
		items := []QuoteItem{line("2", "250.00", true)}
		totals := ComputeTotals(items, decimal.Zero, d("21"), false)
		assert.True(t, totals.VatAmount.IsZero())
		assert.True(t, totals.Total.Equal(d("500.00")))
	})

	t.Run("oversized discount clamps the vat base at zero", func(t *testing.T) {
		items := []QuoteItem{line("1", "100.00", true)}
		totals := ComputeTotals(items, d("150.00"), d("21"), true)
		assert.True(t, totals.VatAmount.IsZero())
		assert.True(t, totals.Total.IsZero(), totals.Total.String())
	})

	t.Run("negative discount is ignored", func(t *testing.T) {
		items := []QuoteItem{line("1", "100.00", true)}
		totals := ComputeTotals(items, d("-50.00"), d("21"), true)
		assert.True(t, totals.Discount.IsZero())
		assert.True(t, totals.Total.Equal(d("121.00")))
	})

	t.Run("line totals round to cents", func(t *testing.T) {
		items := []QuoteItem{line("3", "33.333", true)}
		totals := ComputeTotals(items, decimal.Zero, decimal.Zero, false)
		assert.True(t, totals.Subtotal.Equal(d("100.00")), totals.Subtotal.String())
	})

	t.Run("fractional quantities", func(t *testing.T) {
		items := []QuoteItem{line("2.5", "80.00", true)}
		totals := ComputeTotals(items, decimal.Zero, d("21"), true)
		assert.True(t, totals.Subtotal.Equal(d("200.00")))
		assert.True(t, totals.VatAmount.Equal(d("42.00")))
		assert.True(t, totals.Total.Equal(d("242.00")))
	})

	t.Run("zero quantity counts as one", func(t *testing.T) {
		item := QuoteItem{Quantity: decimal.Zero, UnitPrice: d("40.00"), IsSelected: true}
		assert.True(t, LineTotal(item).Equal(d("40.00")))
	})

	t.Run("empty quote", func(t *testing.T) {
		totals := ComputeTotals(nil, decimal.Zero, d("21"), true)
		assert.True(t, totals.Subtotal.IsZero())
		assert.True(t, totals.Total.IsZero())
	})
}
