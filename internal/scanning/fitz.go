package scanning

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Fitz extracts text from PDF receipts using MuPDF
type Fitz struct{}

// NewFitz creates a new MuPDF backed extractor
func NewFitz() *Fitz {
	return &Fitz{}
}

// ExtractText returns the text of every page, in page order
func (f *Fitz) ExtractText(data []byte, contentType string) (string, error) {
	if IsPlainText(contentType) {
		return string(data), nil
	}
	if !IsPDF(contentType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	var text strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		page, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("extracting text from page %d: %w", i+1, err)
		}
		text.WriteString(page)
		if !strings.HasSuffix(page, "\n") {
			text.WriteString("\n")
		}
	}

	return text.String(), nil
}

// Close is a no-op, documents are closed after each extraction
func (f *Fitz) Close() error {
	return nil
}
