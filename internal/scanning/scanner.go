package scanning

import (
	"errors"
	"mime"
	"strings"
)

// ErrUnsupportedContentType is returned when an extractor cannot read a document type
var ErrUnsupportedContentType = errors.New("unsupported content type")

// Extractor defines the interface for turning a receipt document into plain text
type Extractor interface {
	// ExtractText returns the text content of a receipt document
	ExtractText(data []byte, contentType string) (string, error)
	// Close releases any resources held by the extractor
	Close() error
}

// normalizeContentType lowercases the media type and drops parameters
func normalizeContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// IsPlainText reports whether the content type is already receipt text
func IsPlainText(contentType string) bool {
	return normalizeContentType(contentType) == "text/plain"
}

// IsPDF reports whether the content type is a PDF document
func IsPDF(contentType string) bool {
	return normalizeContentType(contentType) == "application/pdf"
}
