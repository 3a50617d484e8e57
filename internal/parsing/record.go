package parsing

import "github.com/shopspring/decimal"

// ItemRecord is one purchased line item on a receipt
type ItemRecord struct {
	Discounted     bool            `json:"discounted"`
	Name           string          `json:"name"`
	Barcode        string          `json:"barcode"` // 13 ASCII digits
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       decimal.Decimal `json:"quantity"` // fractional for weighed goods
	Unit           string          `json:"unit"`
	LineTotal      decimal.Decimal `json:"line_total"` // before discount
	DiscountLabel  *string         `json:"discount_label,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// NetTotal is the amount actually paid for the line
func (r ItemRecord) NetTotal() decimal.Decimal {
	return r.LineTotal.Sub(r.DiscountAmount)
}

// Metadata is the store header of a receipt
type Metadata struct {
	Store string `json:"store"`
	Date  string `json:"date"` // YYYY-MM-DD
	Time  string `json:"time"` // HH:MM
}

// Dataset is the parsed form of one receipt document.
// Items are kept in the order they appear in the text.
type Dataset struct {
	Metadata Metadata     `json:"metadata"`
	Items    []ItemRecord `json:"items"`
}
