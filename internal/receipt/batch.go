package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Document is one receipt document waiting to be processed
type Document struct {
	Name        string
	Data        []byte
	ContentType string
}

// BatchOptions controls ProcessBatch
type BatchOptions struct {
	// Workers bounds how many documents are extracted and parsed at once
	Workers int
	// FailFast stops the batch at the first document that fails
	FailFast bool
}

// DocumentError is a failure of a single document in a batch
type DocumentError struct {
	Name string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// BatchResult holds the committed receipts, the documents already stored
// before the batch, and the failed documents
type BatchResult struct {
	Receipts   []*Receipt
	Duplicates []*Receipt
	Failed     []*DocumentError
}

// ProcessBatch extracts and parses documents in parallel and commits them in
// the order given, so the corpus equals the one sequential processing builds.
// A document identical to a stored one is listed in Duplicates and not committed.
// A failed document is recorded and skipped unless FailFast is set, in which
// case every document before it is committed and the failure is returned.
func (s *Service) ProcessBatch(ctx context.Context, docs []Document, opts BatchOptions) (*BatchResult, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	prepared := make([]*parsed, len(docs))
	errs := make([]error, len(docs))

	// firstFailed is the lowest index whose prepare failed. Documents after it
	// need no work when failing fast; documents before it always get prepared.
	var firstFailed atomic.Int64
	firstFailed.Store(int64(len(docs)))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, doc := range docs {
		g.Go(func() error {
			if opts.FailFast && int64(i) > firstFailed.Load() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			p, err := s.prepare(doc.Name, doc.Data, doc.ContentType)
			if err != nil {
				errs[i] = err
				if !errors.Is(err, ErrDuplicate) {
					lowerTo(&firstFailed, int64(i))
				}
				return nil
			}
			prepared[i] = p
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{}
	for i, doc := range docs {
		err := errs[i]
		if err == nil {
			var r *Receipt
			r, err = s.commit(prepared[i])
			if err == nil {
				result.Receipts = append(result.Receipts, r)
				continue
			}
		}

		var dup *DuplicateError
		if errors.As(err, &dup) {
			result.Duplicates = append(result.Duplicates, dup.Receipt)
			continue
		}

		docErr := &DocumentError{Name: doc.Name, Err: err}
		result.Failed = append(result.Failed, docErr)
		slog.Error("Failed to process receipt", "filename", doc.Name, "error", err)
		if opts.FailFast {
			return result, docErr
		}
	}

	slog.Info("Batch processed",
		"documents", len(docs),
		"committed", len(result.Receipts),
		"duplicates", len(result.Duplicates),
		"failed", len(result.Failed),
	)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// lowerTo stores v in n unless n already holds a smaller value
func lowerTo(n *atomic.Int64, v int64) {
	for {
		current := n.Load()
		if v >= current || n.CompareAndSwap(current, v) {
			return
		}
	}
}
