package corpus

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/zombor/kvitto/internal/parsing"
)

// Item is a parsed line item tagged with the receipt it came from
type Item struct {
	parsing.ItemRecord
	Store string `json:"store"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

// ProductKey groups items of the same product sold at the same store
type ProductKey struct {
	Barcode string
	Store   string
}

// PriceRange is the lowest and highest unit price seen for a product at a store
type PriceRange struct {
	Barcode      string          `json:"barcode"`
	Store        string          `json:"store"`
	Name         string          `json:"name"` // first name seen for the barcode
	MinPrice     decimal.Decimal `json:"min_price"`
	MaxPrice     decimal.Decimal `json:"max_price"`
	Observations int             `json:"observations"`
}

// Totals sums line totals and discounts over a set of items
type Totals struct {
	Items    int             `json:"items"`
	Gross    decimal.Decimal `json:"gross"`
	Discount decimal.Decimal `json:"discount"`
	Net      decimal.Decimal `json:"net"`
}

// PurchaseCount is how often a product name was bought
type PurchaseCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Corpus accumulates the items of many receipts in arrival order.
// Items are only ever appended. Derived views are computed on every call.
// A Corpus is not safe for concurrent use.
type Corpus struct {
	items []Item
}

// New creates an empty Corpus
func New() *Corpus {
	return &Corpus{}
}

// FromDataset creates a Corpus holding the items of a single receipt
func FromDataset(ds *parsing.Dataset) *Corpus {
	c := New()
	c.Append(ds)
	return c
}

// Append adds every item of the dataset, tagged with its store, date and time
func (c *Corpus) Append(ds *parsing.Dataset) {
	if ds == nil {
		return
	}
	c.items = slices.Grow(c.items, len(ds.Items))
	for _, record := range ds.Items {
		c.items = append(c.items, Item{
			ItemRecord: record,
			Store:      ds.Metadata.Store,
			Date:       ds.Metadata.Date,
			Time:       ds.Metadata.Time,
		})
	}
}

// Len returns the number of items in the corpus
func (c *Corpus) Len() int {
	return len(c.items)
}

// Items returns a copy of all items in arrival order
func (c *Corpus) Items() []Item {
	return slices.Clone(c.items)
}

// NetTotals returns the net total of every item, aligned with Items
func (c *Corpus) NetTotals() []decimal.Decimal {
	totals := make([]decimal.Decimal, len(c.items))
	for i, item := range c.items {
		totals[i] = item.NetTotal()
	}
	return totals
}

// Totals sums the gross, discount and net totals of the corpus
func (c *Corpus) Totals() Totals {
	return Sum(c.items)
}

// Sum totals an arbitrary slice of items
func Sum(items []Item) Totals {
	t := Totals{Items: len(items)}
	for _, item := range items {
		t.Gross = t.Gross.Add(item.LineTotal)
		t.Discount = t.Discount.Add(item.DiscountAmount)
	}
	t.Net = t.Gross.Sub(t.Discount)
	return t
}

// PriceRangeByProductStore groups items by barcode and store and returns the unit price range of each group
func (c *Corpus) PriceRangeByProductStore() map[ProductKey]PriceRange {
	ranges := make(map[ProductKey]PriceRange)
	for _, item := range c.items {
		key := ProductKey{Barcode: item.Barcode, Store: item.Store}
		r, ok := ranges[key]
		if !ok {
			ranges[key] = PriceRange{
				Barcode:      item.Barcode,
				Store:        item.Store,
				Name:         item.Name,
				MinPrice:     item.UnitPrice,
				MaxPrice:     item.UnitPrice,
				Observations: 1,
			}
			continue
		}
		if item.UnitPrice.LessThan(r.MinPrice) {
			r.MinPrice = item.UnitPrice
		}
		if item.UnitPrice.GreaterThan(r.MaxPrice) {
			r.MaxPrice = item.UnitPrice
		}
		r.Observations++
		ranges[key] = r
	}
	return ranges
}

// PriceRanges returns the price ranges ordered by the first appearance of each group
func (c *Corpus) PriceRanges() []PriceRange {
	byKey := c.PriceRangeByProductStore()
	ordered := make([]PriceRange, 0, len(byKey))
	for _, item := range c.items {
		key := ProductKey{Barcode: item.Barcode, Store: item.Store}
		if r, ok := byKey[key]; ok {
			ordered = append(ordered, r)
			delete(byKey, key)
		}
	}
	return ordered
}

// ItemsSortedByTotal orders items by line total.
// Equal totals keep their arrival order in both directions.
func (c *Corpus) ItemsSortedByTotal(descending bool) []Item {
	sorted := slices.Clone(c.items)
	slices.SortStableFunc(sorted, func(a, b Item) int {
		if descending {
			return b.LineTotal.Cmp(a.LineTotal)
		}
		return a.LineTotal.Cmp(b.LineTotal)
	})
	return sorted
}

// Anomalies returns the items whose discount is larger than their line total
func (c *Corpus) Anomalies() []Item {
	var anomalies []Item
	for _, item := range c.items {
		if item.DiscountAmount.GreaterThan(item.LineTotal) {
			anomalies = append(anomalies, item)
		}
	}
	return anomalies
}

// PurchaseCounts counts items per product name, in order of first appearance
func (c *Corpus) PurchaseCounts() []PurchaseCount {
	return CountPurchases(c.items)
}

// CountPurchases counts an arbitrary slice of items per product name
func CountPurchases(items []Item) []PurchaseCount {
	index := make(map[string]int)
	var counts []PurchaseCount
	for _, item := range items {
		i, ok := index[item.Name]
		if !ok {
			index[item.Name] = len(counts)
			counts = append(counts, PurchaseCount{Name: item.Name, Count: 1})
			continue
		}
		counts[i].Count++
	}
	return counts
}
