package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// TaxModel describes how tax is levied on the discounted amount. A flat
// model charges TaxPercent; a split model charges SGSTPercent and
// CGSTPercent separately and reports each line on the invoice.
type TaxModel struct {
	Split       bool
	TaxPercent  decimal.Decimal
	SGSTPercent decimal.Decimal
	CGSTPercent decimal.Decimal
}

// FlatTax returns a single-rate tax model.
func FlatTax(percent decimal.Decimal) TaxModel {
	return TaxModel{TaxPercent: percent}
}

// SplitTax returns a state/central split tax model.
func SplitTax(sgst, cgst decimal.Decimal) TaxModel {
	return TaxModel{Split: true, SGSTPercent: sgst, CGSTPercent: cgst}
}

// CheckPercent reports why p is not a usable rate. A rate lies in
// [0,100] and carries at most two decimal places, the precision of the
// percent columns; anything finer would be rounded on write and the
// stored total would no longer follow from the stored rates.
func CheckPercent(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return fmt.Errorf("%s outside [0,100]", p)
	}
	if !p.Equal(p.Truncate(2)) {
		return fmt.Errorf("%s has more than two decimal places", p)
	}
	return nil
}

// BillFigures are the monetary lines of an invoice, each rounded half-up
// to two places.
type BillFigures struct {
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	Discounted      decimal.Decimal
	SGSTAmount      decimal.Decimal
	CGSTAmount      decimal.Decimal
	TaxAmount       decimal.Decimal
	Total           decimal.Decimal
}

// Subtotal sums unit price times quantity over items.
func Subtotal(items []OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// ComputeBill derives every invoice line from the subtotal, the discount
// and the tax model. Intermediate values keep full precision; rounding
// happens once per reported figure.
func ComputeBill(subtotal, discountPercent decimal.Decimal, tax TaxModel) BillFigures {
	discounted := subtotal.Mul(decimal.NewFromInt(1).Sub(discountPercent.Div(hundred)))

	var sgst, cgst, taxAmt decimal.Decimal
	if tax.Split {
		sgst = discounted.Mul(tax.SGSTPercent).Div(hundred)
		cgst = discounted.Mul(tax.CGSTPercent).Div(hundred)
		taxAmt = sgst.Add(cgst)
	} else {
		taxAmt = discounted.Mul(tax.TaxPercent).Div(hundred)
	}

	return BillFigures{
		Subtotal:        subtotal.Round(2),
		DiscountPercent: discountPercent,
		DiscountAmount:  subtotal.Sub(discounted).Round(2),
		Discounted:      discounted.Round(2),
		SGSTAmount:      sgst.Round(2),
		CGSTAmount:      cgst.Round(2),
		TaxAmount:       taxAmt.Round(2),
		Total:           discounted.Add(taxAmt).Round(2),
	}
}
