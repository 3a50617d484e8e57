package receipt

import (
	"time"

	"github.com/zombor/kvitto/internal/parsing"
)

// Receipt is one parsed receipt document as stored
type Receipt struct {
	ID          string               `json:"id"`
	Seq         uint64               `json:"seq"` // commit order, replayed on restart
	Source      string               `json:"source"`
	Filename    string               `json:"filename"`
	ContentType string               `json:"content_type"`
	Digest      string               `json:"digest"` // sha256 of the original document
	Dataset     *parsing.Dataset     `json:"dataset"`
	Diagnostics *parsing.Diagnostics `json:"diagnostics"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Summary is the listing view of a receipt
type Summary struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Store     string    `json:"store"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Items     int       `json:"items"`
	Failures  int       `json:"failures"`
	Warnings  int       `json:"warnings"`
	CreatedAt time.Time `json:"created_at"`
}

// Summarize returns the listing view of r
func (r *Receipt) Summarize() Summary {
	s := Summary{
		ID:        r.ID,
		Source:    r.Source,
		CreatedAt: r.CreatedAt,
	}
	if r.Dataset != nil {
		s.Store = r.Dataset.Metadata.Store
		s.Date = r.Dataset.Metadata.Date
		s.Time = r.Dataset.Metadata.Time
		s.Items = len(r.Dataset.Items)
	}
	if r.Diagnostics != nil {
		s.Failures = len(r.Diagnostics.Failures)
		s.Warnings = len(r.Diagnostics.Warnings)
	}
	return s
}
