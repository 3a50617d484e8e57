package scanning

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// wordGap is the horizontal distance, in PDF units, treated as a column break
const wordGap = 1.0

// PDF extracts text from PDF receipts without cgo
type PDF struct{}

// NewPDF creates a new pure Go PDF extractor
func NewPDF() *PDF {
	return &PDF{}
}

// ExtractText rebuilds each page row by row
func (p *PDF) ExtractText(data []byte, contentType string) (string, error) {
	if IsPlainText(contentType) {
		return string(data), nil
	}
	if !IsPDF(contentType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("reading rows from page %d: %w", i, err)
		}
		for _, row := range rows {
			lines = append(lines, joinRow(row.Content))
		}
	}

	return strings.Join(mergeContinuations(lines), "\n") + "\n", nil
}

// Close is a no-op
func (p *PDF) Close() error {
	return nil
}

// joinRow concatenates the text runs of one row, inserting a space where
// two runs are visibly apart
func joinRow(texts pdf.TextHorizontal) string {
	var b strings.Builder
	var end float64
	for i, t := range texts {
		if i > 0 && t.X-end > wordGap && !strings.HasSuffix(b.String(), " ") && !strings.HasPrefix(t.S, " ") {
			b.WriteString(" ")
		}
		b.WriteString(t.S)
		end = t.X + t.W
	}
	return strings.TrimSpace(b.String())
}

// mergeContinuations joins rows that end on a unit with the row holding the
// line total. Some receipt PDFs emit the total on its own row.
func mergeContinuations(lines []string) []string {
	out := make([]string, 0, len(lines))
	carry := ""
	for _, line := range lines {
		if carry != "" {
			line = carry + " " + line
			carry = ""
		}
		if endsWithUnit(line) {
			carry = line
			continue
		}
		out = append(out, line)
	}
	if carry != "" {
		out = append(out, carry)
	}
	return out
}

func endsWithUnit(line string) bool {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return false
	}
	last := fields[len(fields)-1]
	return last == "st" || last == "kg"
}
