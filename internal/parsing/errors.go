package parsing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMetadataNotFound means the store, date or time header is missing.
	// It is the only error that fails a whole document.
	ErrMetadataNotFound = errors.New("metadata not found")

	// ErrRecordCoercion marks a single item line that could not be turned into a record
	ErrRecordCoercion = errors.New("record coercion failed")
)

// MetadataError reports which header field was missing from a document
type MetadataError struct {
	Field    string
	Fragment string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("%s: %s missing near %q", ErrMetadataNotFound, e.Field, e.Fragment)
}

func (e *MetadataError) Unwrap() error {
	return ErrMetadataNotFound
}

// CoercionError describes an item line that was dropped during coercion
type CoercionError struct {
	Raw    string `json:"raw"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("coercing %s %q: %s (line %q)", e.Field, e.Value, e.Reason, e.Raw)
}

func (e *CoercionError) Is(target error) bool {
	return target == ErrRecordCoercion
}

// WarningKind classifies advisory findings that never drop a record
type WarningKind string

const (
	WarnDiscountAmbiguity    WarningKind = "discount_ambiguity"
	WarnDiscountUnparsable   WarningKind = "discount_unparsable"
	WarnDiscountExceedsTotal WarningKind = "discount_exceeds_total"
	WarnEmptyDocument        WarningKind = "empty_document"
)

// Warning is an advisory finding attached to the raw text that caused it
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Raw     string      `json:"raw"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (line %q)", w.Kind, w.Message, w.Raw)
}

// fragment returns the first non-blank lines of text, capped to a readable length
func fragment(text string) string {
	const maxLen = 80

	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(line)
		if b.Len() >= maxLen {
			break
		}
	}

	s := b.String()
	if len(s) > maxLen {
		r := []rune(s)
		if len(r) > maxLen {
			s = string(r[:maxLen]) + "..."
		}
	}
	return s
}
