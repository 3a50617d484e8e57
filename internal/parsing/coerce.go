package parsing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	discountMarker = "*"
	barcodeLength  = 13
)

// Coerce converts a raw capture into an ItemRecord.
// A *CoercionError means the record must be dropped; warnings never drop it.
func Coerce(raw RawCapture) (ItemRecord, []Warning, error) {
	var warnings []Warning

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return ItemRecord{}, nil, coercionError(raw, "name", raw.Name, "empty product name")
	}

	barcode := strings.TrimSpace(raw.Barcode)
	if !isBarcode(barcode) {
		return ItemRecord{}, nil, coercionError(raw, "barcode", raw.Barcode, "expected 13 digits")
	}

	unitPrice, err := parseAmount(raw.UnitPrice)
	if err != nil {
		return ItemRecord{}, nil, coercionError(raw, "unit_price", raw.UnitPrice, err.Error())
	}
	quantity, err := parseAmount(raw.Quantity)
	if err != nil {
		return ItemRecord{}, nil, coercionError(raw, "quantity", raw.Quantity, err.Error())
	}
	lineTotal, err := parseAmount(raw.LineTotal)
	if err != nil {
		return ItemRecord{}, nil, coercionError(raw, "line_total", raw.LineTotal, err.Error())
	}

	record := ItemRecord{
		Discounted: strings.TrimSpace(raw.Marker) == discountMarker,
		Name:       name,
		Barcode:    barcode,
		UnitPrice:  unitPrice,
		Quantity:   quantity,
		Unit:       strings.TrimSpace(raw.Unit),
		LineTotal:  lineTotal,
	}

	if !record.Discounted {
		return record, nil, nil
	}

	if !raw.HasDiscountLine {
		warnings = append(warnings, Warning{
			Kind:    WarnDiscountAmbiguity,
			Raw:     raw.Raw,
			Message: "discount marker without a discount line",
		})
		return record, warnings, nil
	}

	// an unnamed discount keeps its amount but has no label
	if label := strings.TrimSpace(raw.DiscountLabel); label != "" {
		record.DiscountLabel = &label
	}

	amount, err := parseAmount(raw.DiscountAmount)
	if err != nil {
		warnings = append(warnings, Warning{
			Kind:    WarnDiscountUnparsable,
			Raw:     raw.Raw,
			Message: fmt.Sprintf("discount amount %q: %v", raw.DiscountAmount, err),
		})
		return record, warnings, nil
	}
	record.DiscountAmount = amount

	if amount.GreaterThan(lineTotal) {
		warnings = append(warnings, Warning{
			Kind:    WarnDiscountExceedsTotal,
			Raw:     raw.Raw,
			Message: fmt.Sprintf("discount %s exceeds line total %s", amount, lineTotal),
		})
	}

	return record, warnings, nil
}

func coercionError(raw RawCapture, field, value, reason string) *CoercionError {
	return &CoercionError{
		Raw:    raw.Raw,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// parseAmount parses a non-negative decimal written with a '.' separator
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errEmptyNumber
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errNotANumber
	}
	if d.IsNegative() {
		return decimal.Zero, errNegativeNumber
	}
	return d, nil
}

func isBarcode(s string) bool {
	if len(s) != barcodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

var (
	errEmptyNumber    = errors.New("empty number")
	errNotANumber     = errors.New("not a decimal number")
	errNegativeNumber = errors.New("negative number")
)
