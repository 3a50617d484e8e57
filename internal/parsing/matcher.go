package parsing

import (
	"fmt"
	"iter"
	"regexp"
	"strings"
)

// RawCapture holds the uncoerced fields of one item line and its optional discount line
type RawCapture struct {
	Marker    string
	Name      string
	Barcode   string
	UnitPrice string
	Quantity  string
	Unit      string
	LineTotal string

	// HasDiscountLine is set when a "<label> - <amount>" line followed the item
	HasDiscountLine bool
	DiscountLabel   string
	DiscountAmount  string

	// Raw is the matched text, Offset its byte position in the document
	Raw    string
	Offset int
}

// Matcher finds item lines in receipt text
type Matcher interface {
	// Matches yields captures left to right without overlap.
	// Text with no item lines yields nothing.
	Matches(text string) iter.Seq[RawCapture]
}

// itemLinePattern matches an item line and, optionally, the discount line after it.
// The line ends at a newline, the word "Total" or the end of the text.
const itemLinePattern = `(?P<marker>\*?)(?P<name>.*?)\s+(?P<barcode>\d{13})\s+(?P<price>[\d.]+)\s+(?P<quantity>[\d.]+)\s+(?P<unit>.*?)\s+(?P<total>[\d.]+)(?:\r?\n|Total|\z)(?:(?P<label>.*?) - (?P<amount>[\d.]+))?`

// RegexMatcher implements Matcher with a single regular expression
type RegexMatcher struct {
	re     *regexp.Regexp
	groups map[string]int
}

// NewRegexMatcher creates a matcher for the default receipt layout
func NewRegexMatcher() *RegexMatcher {
	m, err := NewRegexMatcherWithPattern(itemLinePattern)
	if err != nil {
		panic(err)
	}
	return m
}

// NewRegexMatcherWithPattern creates a matcher from a custom pattern.
// The pattern must define the named groups marker, name, barcode, price, quantity,
// unit and total; label and amount are optional.
func NewRegexMatcherWithPattern(pattern string) (*RegexMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling item pattern: %w", err)
	}

	groups := make(map[string]int)
	for i, name := range re.SubexpNames() {
		if name != "" {
			groups[name] = i
		}
	}
	for _, required := range []string{"marker", "name", "barcode", "price", "quantity", "unit", "total"} {
		if _, ok := groups[required]; !ok {
			return nil, fmt.Errorf("item pattern is missing named group %q", required)
		}
	}

	return &RegexMatcher{re: re, groups: groups}, nil
}

// Matches yields one capture per item line
func (m *RegexMatcher) Matches(text string) iter.Seq[RawCapture] {
	return func(yield func(RawCapture) bool) {
		pos := 0
		for pos < len(text) {
			loc := m.re.FindStringSubmatchIndex(text[pos:])
			if loc == nil {
				return
			}

			capture := m.capture(text[pos:], loc)
			capture.Offset = pos + loc[0]
			if !yield(capture) {
				return
			}

			// custom patterns may match the empty string
			if loc[1] == 0 {
				pos++
				continue
			}
			pos += loc[1]
		}
	}
}

func (m *RegexMatcher) capture(text string, loc []int) RawCapture {
	group := func(name string) (string, bool) {
		i, ok := m.groups[name]
		if !ok || loc[2*i] < 0 {
			return "", false
		}
		return text[loc[2*i]:loc[2*i+1]], true
	}
	value := func(name string) string {
		s, _ := group(name)
		return s
	}

	c := RawCapture{
		Marker:    value("marker"),
		Name:      value("name"),
		Barcode:   value("barcode"),
		UnitPrice: value("price"),
		Quantity:  value("quantity"),
		Unit:      value("unit"),
		LineTotal: value("total"),
		Raw:       strings.TrimRight(text[loc[0]:loc[1]], "\r\n"),
	}

	label, hasLabel := group("label")
	amount, hasAmount := group("amount")
	if hasLabel && hasAmount {
		c.HasDiscountLine = true
		c.DiscountLabel = label
		c.DiscountAmount = amount
	}

	return c
}
