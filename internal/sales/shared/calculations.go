package shared

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the scale of every stored monetary amount.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// DefaultTaxRate applies when a line omits its tax rate.
var DefaultTaxRate = decimal.NewFromInt(20)

// LineInput is the caller supplied part of a line item.
type LineInput struct {
	ProductID        uuid.UUID        `json:"product_id" validate:"required"`
	Description      string           `json:"description,omitempty" validate:"max=500"`
	Quantity         decimal.Decimal  `json:"quantity"`
	UnitPrice        decimal.Decimal  `json:"unit_price"`
	LineDiscountRate decimal.Decimal  `json:"line_discount_rate"`
	TaxRate          *decimal.Decimal `json:"tax_rate,omitempty"`
}

// Item is a persisted line item with its computed amounts.
type Item struct {
	ID               uuid.UUID       `json:"id"`
	Position         int             `json:"position"`
	ProductID        uuid.UUID       `json:"product_id"`
	Description      string          `json:"description,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	LineDiscountRate decimal.Decimal `json:"line_discount_rate"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	LineSubtotal     decimal.Decimal `json:"line_subtotal"`
	LineTax          decimal.Decimal `json:"line_tax"`
	LineTotal        decimal.Decimal `json:"line_total"`
}

// Totals are the document level aggregates.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxTotal   decimal.Decimal `json:"tax_total"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// CalculateLine computes the rounded amounts of a single line.
func CalculateLine(position int, in LineInput) Item {
	taxRate := DefaultTaxRate
	if in.TaxRate != nil {
		taxRate = *in.TaxRate
	}
	gross := in.Quantity.Mul(in.UnitPrice)
	subtotal := gross.Mul(hundred.Sub(in.LineDiscountRate)).Div(hundred).Round(MoneyPlaces)
	tax := subtotal.Mul(taxRate).Div(hundred).Round(MoneyPlaces)
	return Item{
		Position:         position,
		ProductID:        in.ProductID,
		Description:      in.Description,
		Quantity:         in.Quantity,
		UnitPrice:        in.UnitPrice,
		LineDiscountRate: in.LineDiscountRate,
		TaxRate:          taxRate,
		LineSubtotal:     subtotal,
		LineTax:          tax,
		LineTotal:        subtotal.Add(tax),
	}
}

// BuildItems computes every line and numbers positions from 1.
func BuildItems(inputs []LineInput) []Item {
	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		items = append(items, CalculateLine(i+1, in))
	}
	return items
}

// CalculateTotals aggregates rounded line amounts and applies the document discount.
// The document discount reduces the subtotal only; tax stays the sum of line taxes.
func CalculateTotals(items []Item, discountRate decimal.Decimal) Totals {
	lineSubtotal := decimal.Zero
	taxTotal := decimal.Zero
	for _, item := range items {
		lineSubtotal = lineSubtotal.Add(item.LineSubtotal)
		taxTotal = taxTotal.Add(item.LineTax)
	}
	subtotal := lineSubtotal.Mul(hundred.Sub(discountRate)).Div(hundred).Round(MoneyPlaces)
	return Totals{
		Subtotal:   subtotal,
		TaxTotal:   taxTotal,
		GrandTotal: subtotal.Add(taxTotal),
	}
}

// Inputs converts persisted items back into line inputs, e.g. for copying documents.
func Inputs(items []Item) []LineInput {
	inputs := make([]LineInput, 0, len(items))
	for _, item := range items {
		rate := item.TaxRate
		inputs = append(inputs, LineInput{
			ProductID:        item.ProductID,
			Description:      item.Description,
			Quantity:         item.Quantity,
			UnitPrice:        item.UnitPrice,
			LineDiscountRate: item.LineDiscountRate,
			TaxRate:          &rate,
		})
	}
	return inputs
}
