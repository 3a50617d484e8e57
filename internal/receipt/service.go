package receipt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/kvitto/internal/corpus"
	"github.com/zombor/kvitto/internal/parsing"
	"github.com/zombor/kvitto/internal/scanning"
)

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service extracts, parses and stores receipts, and keeps the running corpus
// of every committed receipt's items.
type Service struct {
	db          DB
	extractor   scanning.Extractor
	storage     Storage
	parser      *parsing.Parser
	idGenerator IDGenerator
	timeSource  TimeSource

	// mu serializes commits and guards corpus
	mu     sync.Mutex
	corpus *corpus.Corpus
}

// NewService creates a new Service with the default parser, UUIDs and wall clock
func NewService(db DB, extractor scanning.Extractor, storage Storage) *Service {
	return NewServiceWithDeps(db, extractor, storage, parsing.NewParser(), &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor scanning.Extractor, storage Storage, parser *parsing.Parser, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		parser:      parser,
		idGenerator: idGen,
		timeSource:  timeSrc,
		corpus:      corpus.New(),
	}
}

// ErrDuplicate is returned when an identical document was already stored
var ErrDuplicate = errors.New("document already stored")

// DuplicateError carries the receipt an identical document was stored as
type DuplicateError struct {
	Receipt *Receipt
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%v as receipt %s", ErrDuplicate, e.Receipt.ID)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

func documentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// findDuplicate returns a *DuplicateError when a document with digest is stored
func (s *Service) findDuplicate(digest string) error {
	existing, err := s.db.FindByDigest(digest)
	switch {
	case err == nil:
		return &DuplicateError{Receipt: existing}
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return fmt.Errorf("looking up document: %w", err)
	}
}

var (
	filenameDisallowed = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces     = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = filenameDisallowed.ReplaceAllString(base, "")
	base = filenameSpaces.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	if filenameDisallowed.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}

	return base + ext
}

// parsed is a document that has been extracted and parsed but not yet committed
type parsed struct {
	source      string
	contentType string
	data        []byte
	digest      string
	dataset     *parsing.Dataset
	diagnostics *parsing.Diagnostics
}

// prepare extracts and parses a document. It only reads the database and is
// safe to run concurrently. A document already stored is not extracted again.
func (s *Service) prepare(filename string, data []byte, contentType string) (*parsed, error) {
	digest := documentDigest(data)
	if err := s.findDuplicate(digest); err != nil {
		var dup *DuplicateError
		if errors.As(err, &dup) {
			slog.Info("Document already stored", "filename", filename, "id", dup.Receipt.ID)
		}
		return nil, err
	}

	text, err := s.extractor.ExtractText(data, contentType)
	if err != nil {
		slog.Error("Failed to extract receipt text",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("extracting text: %w", err)
	}

	dataset, diag, err := s.parser.Parse(text)
	if err != nil {
		slog.Warn("Failed to parse receipt", "filename", filename, "error", err)
		return nil, fmt.Errorf("parsing receipt: %w", err)
	}

	for _, failure := range diag.Failures {
		slog.Warn("Skipped receipt line", "filename", filename, "field", failure.Field, "value", failure.Value, "reason", failure.Reason, "raw", failure.Raw)
	}
	for _, warning := range diag.Warnings {
		slog.Debug("Receipt warning", "filename", filename, "kind", warning.Kind, "message", warning.Message, "raw", warning.Raw)
	}

	return &parsed{
		source:      filename,
		contentType: contentType,
		data:        data,
		digest:      digest,
		dataset:     dataset,
		diagnostics: diag,
	}, nil
}

// commit stores the document and its parse, then appends the items to the corpus
func (s *Service) commit(p *parsed) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// an identical document may have been committed since prepare
	if err := s.findDuplicate(p.digest); err != nil {
		return nil, err
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedName, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(p.source)), p.data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	receipt := &Receipt{
		ID:          id,
		Source:      p.source,
		Filename:    savedName,
		ContentType: p.contentType,
		Digest:      p.digest,
		Dataset:     p.dataset,
		Diagnostics: p.diagnostics,
		CreatedAt:   now,
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		if delErr := s.storage.Delete(savedName); delErr != nil {
			slog.Warn("Failed to delete file", "filename", savedName, "error", delErr)
		}
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	s.corpus.Append(p.dataset)

	slog.Info("Receipt processed",
		"id", id,
		"source", p.source,
		"store", p.dataset.Metadata.Store,
		"date", p.dataset.Metadata.Date,
		"items", len(p.dataset.Items),
		"failures", len(p.diagnostics.Failures),
		"warnings", len(p.diagnostics.Warnings),
	)
	return receipt, nil
}

// ProcessReceipt extracts, parses and stores one receipt and appends its items to the corpus.
// A document identical to a stored one returns a *DuplicateError and leaves the corpus as is.
func (s *Service) ProcessReceipt(filename string, data []byte, contentType string) (*Receipt, error) {
	p, err := s.prepare(filename, data, contentType)
	if err != nil {
		return nil, err
	}
	return s.commit(p)
}

// LoadCorpus rebuilds the corpus from the stored receipts, in commit order.
// It returns the number of receipts replayed.
func (s *Service) LoadCorpus() (int, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return 0, fmt.Errorf("listing receipts: %w", err)
	}

	c := corpus.New()
	for _, r := range receipts {
		c.Append(r.Dataset)
	}

	s.mu.Lock()
	s.corpus = c
	s.mu.Unlock()

	slog.Info("Corpus loaded", "receipts", len(receipts), "items", c.Len())
	return len(receipts), nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts in commit order
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// GetReceiptFile retrieves the original document for a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt.ContentType, nil
}

// Items returns the corpus items ordered by line total, ties in arrival order
func (s *Service) Items(descending bool) []corpus.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corpus.ItemsSortedByTotal(descending)
}

// PriceRanges returns the unit price range per product and store
func (s *Service) PriceRanges() []corpus.PriceRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corpus.PriceRanges()
}

// Totals returns the gross, discount and net sums of the corpus
func (s *Service) Totals() corpus.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corpus.Totals()
}

// Anomalies returns the items whose discount exceeds their line total
func (s *Service) Anomalies() []corpus.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corpus.Anomalies()
}

// WriteCSV writes the corpus as CSV
func (s *Service) WriteCSV(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corpus.WriteCSV(w)
}
