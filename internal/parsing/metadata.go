package parsing

import (
	"regexp"
	"strings"
)

var (
	storePattern = regexp.MustCompile(`Kvitto\r?\n(.+)`)
	datePattern  = regexp.MustCompile(`Datum: (\d{4}-\d{2}-\d{2})`)
	timePattern  = regexp.MustCompile(`Tid: (\d{2}:\d{2})`)
)

// MetadataExtractor finds the store header of a receipt.
// Each field is searched independently over the whole text.
type MetadataExtractor struct {
	store *regexp.Regexp
	date  *regexp.Regexp
	time  *regexp.Regexp
}

// NewMetadataExtractor creates an extractor for the default receipt header
func NewMetadataExtractor() *MetadataExtractor {
	return &MetadataExtractor{
		store: storePattern,
		date:  datePattern,
		time:  timePattern,
	}
}

// NewMetadataExtractorWithPatterns creates an extractor from custom patterns.
// Each pattern must capture its value in the first group.
func NewMetadataExtractorWithPatterns(store, date, time *regexp.Regexp) *MetadataExtractor {
	return &MetadataExtractor{
		store: store,
		date:  date,
		time:  time,
	}
}

// Extract returns the store, date and time, or a *MetadataError if any is missing
func (x *MetadataExtractor) Extract(text string) (Metadata, error) {
	store, ok := firstGroup(x.store, text)
	if !ok {
		return Metadata{}, &MetadataError{Field: "store", Fragment: fragment(text)}
	}
	date, ok := firstGroup(x.date, text)
	if !ok {
		return Metadata{}, &MetadataError{Field: "date", Fragment: fragment(text)}
	}
	clock, ok := firstGroup(x.time, text)
	if !ok {
		return Metadata{}, &MetadataError{Field: "time", Fragment: fragment(text)}
	}

	return Metadata{
		Store: store,
		Date:  date,
		Time:  clock,
	}, nil
}

func firstGroup(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	return v, v != ""
}
