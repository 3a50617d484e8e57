package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/zombor/kvitto/internal/corpus"
)

// Sink renders a sequence of items to an output target
type Sink interface {
	Render(items []corpus.Item, target string) error
}

// TableSink renders items as a purchase table with gross and net columns,
// in the order given. Callers usually pass Corpus.ItemsSortedByTotal(true).
type TableSink struct {
	Title    string
	Currency string
}

// Render writes the table to the file at target, creating its directory
func (s TableSink) Render(items []corpus.Item, target string) error {
	return renderFile(target, func(w io.Writer) error {
		return s.Write(w, items)
	})
}

// Write writes the table to w
func (s TableSink) Write(w io.Writer, items []corpus.Item) error {
	title := s.Title
	if title == "" {
		title = "Purchases (ordered by price descending)"
	}
	currency := s.Currency
	if currency == "" {
		currency = "SEK"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\n\n", title)
	fmt.Fprintf(tw, "Name\tBarcode\tStore\tDate\tTotal (%s)\tDiscount\tNet (%s)\t\n", currency, currency)
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			item.Name,
			item.Barcode,
			item.Store,
			item.Date,
			item.LineTotal.StringFixed(2),
			item.DiscountAmount.StringFixed(2),
			item.NetTotal().StringFixed(2),
		)
	}

	totals := corpus.Sum(items)
	fmt.Fprintf(tw, "\t\t\t\t\t\t\t\n")
	fmt.Fprintf(tw, "%d items\t\t\t\t%s\t%s\t%s\t\n",
		totals.Items,
		totals.Gross.StringFixed(2),
		totals.Discount.StringFixed(2),
		totals.Net.StringFixed(2),
	)

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}
	return nil
}

// CountSink renders how often each product name was bought
type CountSink struct{}

// Render writes the counts to the file at target, creating its directory
func (s CountSink) Render(items []corpus.Item, target string) error {
	return renderFile(target, func(w io.Writer) error {
		return s.Write(w, items)
	})
}

// Write writes the counts to w
func (CountSink) Write(w io.Writer, items []corpus.Item) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name\tCount\n")
	for _, c := range corpus.CountPurchases(items) {
		fmt.Fprintf(tw, "%s\t%d\n", c.Name, c.Count)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing counts: %w", err)
	}
	return nil
}

func renderFile(target string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing report: %w", err)
	}
	return nil
}
