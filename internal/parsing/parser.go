package parsing

import "errors"

// Diagnostics collects everything that went wrong short of a document failure
type Diagnostics struct {
	Matched  int              `json:"matched"`
	Failures []*CoercionError `json:"failures,omitempty"`
	Warnings []Warning        `json:"warnings,omitempty"`
}

// Count returns the number of warnings of the given kind
func (d *Diagnostics) Count(kind WarningKind) int {
	n := 0
	for _, w := range d.Warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}

// Clean reports whether every matched line became a record without warnings
func (d *Diagnostics) Clean() bool {
	return len(d.Failures) == 0 && len(d.Warnings) == 0
}

// Parser turns receipt text into a Dataset
type Parser struct {
	matcher  Matcher
	metadata *MetadataExtractor
}

// NewParser creates a Parser for the default receipt layout
func NewParser() *Parser {
	return NewParserWith(NewRegexMatcher(), NewMetadataExtractor())
}

// NewParserWith creates a Parser with a custom matcher and metadata extractor
func NewParserWith(matcher Matcher, metadata *MetadataExtractor) *Parser {
	return &Parser{
		matcher:  matcher,
		metadata: metadata,
	}
}

// Parse extracts the metadata and item records of one receipt.
// Only a missing header fails the document; bad item lines are reported in the diagnostics.
func (p *Parser) Parse(text string) (*Dataset, *Diagnostics, error) {
	meta, err := p.metadata.Extract(text)
	if err != nil {
		return nil, nil, err
	}

	diag := &Diagnostics{}
	items := make([]ItemRecord, 0)
	for raw := range p.matcher.Matches(text) {
		diag.Matched++

		record, warnings, err := Coerce(raw)
		diag.Warnings = append(diag.Warnings, warnings...)
		if err != nil {
			var cerr *CoercionError
			if errors.As(err, &cerr) {
				diag.Failures = append(diag.Failures, cerr)
			} else {
				diag.Failures = append(diag.Failures, coercionError(raw, "record", raw.Raw, err.Error()))
			}
			continue
		}
		items = append(items, record)
	}

	if diag.Matched == 0 {
		diag.Warnings = append(diag.Warnings, Warning{
			Kind:    WarnEmptyDocument,
			Raw:     fragment(text),
			Message: "no item lines matched",
		})
	}

	dataset, err := Assemble(meta, items)
	if err != nil {
		return nil, nil, err
	}
	return dataset, diag, nil
}

// Assemble packages metadata and records into a Dataset.
// An empty item list is valid; incomplete metadata is not.
func Assemble(meta Metadata, items []ItemRecord) (*Dataset, error) {
	switch {
	case meta.Store == "":
		return nil, &MetadataError{Field: "store"}
	case meta.Date == "":
		return nil, &MetadataError{Field: "date"}
	case meta.Time == "":
		return nil, &MetadataError{Field: "time"}
	}

	owned := make([]ItemRecord, len(items))
	copy(owned, items)

	return &Dataset{
		Metadata: meta,
		Items:    owned,
	}, nil
}

var defaultParser = NewParser()

// Parse parses receipt text with the default layout
func Parse(text string) (*Dataset, *Diagnostics, error) {
	return defaultParser.Parse(text)
}
