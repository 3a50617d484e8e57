package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/zombor/kvitto/internal/parsing"
)

// Columns is the fixed column order of the tabular corpus format
var Columns = []string{
	"discounted",
	"name",
	"barcode",
	"unit_price",
	"quantity",
	"unit",
	"line_total",
	"discount_label",
	"discount_amount",
	"store",
	"date",
	"time",
}

// WriteCSV writes the corpus as CSV, one item per row, with a header row
func (c *Corpus) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, item := range c.items {
		if err := cw.Write(itemRow(item)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

func itemRow(item Item) []string {
	label := ""
	if item.DiscountLabel != nil {
		label = *item.DiscountLabel
	}
	return []string{
		strconv.FormatBool(item.Discounted),
		item.Name,
		item.Barcode,
		item.UnitPrice.String(),
		item.Quantity.String(),
		item.Unit,
		item.LineTotal.String(),
		label,
		item.DiscountAmount.String(),
		item.Store,
		item.Date,
		item.Time,
	}
}

// ReadCSV reads a corpus written by WriteCSV.
// An empty discount label is read back as absent; parsing never produces an empty label.
func ReadCSV(r io.Reader) (*Corpus, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if !slices.Equal(header, Columns) {
		return nil, fmt.Errorf("unexpected header: %v", header)
	}

	c := New()
	for row := 2; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", row, err)
		}
		item, err := rowItem(fields)
		if err != nil {
			return nil, fmt.Errorf("parsing row %d: %w", row, err)
		}
		c.items = append(c.items, item)
	}
	return c, nil
}

func rowItem(fields []string) (Item, error) {
	discounted, err := strconv.ParseBool(fields[0])
	if err != nil {
		return Item{}, fmt.Errorf("discounted: %w", err)
	}

	numbers := make([]decimal.Decimal, 0, 4)
	for _, i := range []int{3, 4, 6, 8} {
		d, err := decimal.NewFromString(fields[i])
		if err != nil {
			return Item{}, fmt.Errorf("%s: %w", Columns[i], err)
		}
		numbers = append(numbers, d)
	}

	record := parsing.ItemRecord{
		Discounted:     discounted,
		Name:           fields[1],
		Barcode:        fields[2],
		UnitPrice:      numbers[0],
		Quantity:       numbers[1],
		Unit:           fields[5],
		LineTotal:      numbers[2],
		DiscountAmount: numbers[3],
	}
	if fields[7] != "" {
		label := fields[7]
		record.DiscountLabel = &label
	}

	return Item{
		ItemRecord: record,
		Store:      fields[9],
		Date:       fields[10],
		Time:       fields[11],
	}, nil
}
