package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zombor/kvitto/internal/corpus"
	"github.com/zombor/kvitto/internal/receipt"
	"github.com/zombor/kvitto/internal/report"
)

type batchConfig struct {
	srcDir   string
	outDir   string
	csvPath  string
	workers  int
	failFast bool
}

// loadDocuments reads every receipt document in dir, ordered by file name
func loadDocuments(dir string) ([]receipt.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading source directory: %w", err)
	}

	var docs []receipt.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		var contentType string
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pdf":
			contentType = "application/pdf"
		case ".txt":
			contentType = "text/plain"
		default:
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		docs = append(docs, receipt.Document{
			Name:        entry.Name(),
			Data:        data,
			ContentType: contentType,
		})
	}

	slices.SortFunc(docs, func(a, b receipt.Document) int {
		return strings.Compare(a.Name, b.Name)
	})
	return docs, nil
}

func runBatch(ctx context.Context, service *receipt.Service, cfg batchConfig) error {
	docs, err := loadDocuments(cfg.srcDir)
	if err != nil {
		return err
	}
	slog.Info("Processing receipts", "directory", cfg.srcDir, "documents", len(docs), "workers", cfg.workers)

	result, err := service.ProcessBatch(ctx, docs, receipt.BatchOptions{
		Workers:  cfg.workers,
		FailFast: cfg.failFast,
	})
	if err != nil {
		return err
	}

	// documents stored by an earlier run still get their report
	for _, r := range slices.Concat(result.Receipts, result.Duplicates) {
		sink := report.TableSink{
			Title: fmt.Sprintf("%s %s %s", r.Dataset.Metadata.Store, r.Dataset.Metadata.Date, r.Dataset.Metadata.Time),
		}
		name := strings.TrimSuffix(r.Source, filepath.Ext(r.Source)) + ".txt"
		items := corpus.FromDataset(r.Dataset).ItemsSortedByTotal(true)
		if err := sink.Render(items, filepath.Join(cfg.outDir, name)); err != nil {
			return fmt.Errorf("rendering %s: %w", name, err)
		}
	}

	items := service.Items(true)
	if err := (report.TableSink{Title: "All purchases (ordered by price descending)"}).Render(items, filepath.Join(cfg.outDir, "total.txt")); err != nil {
		return fmt.Errorf("rendering total: %w", err)
	}
	if err := (report.CountSink{}).Render(items, filepath.Join(cfg.outDir, "counts.txt")); err != nil {
		return fmt.Errorf("rendering counts: %w", err)
	}

	csvPath := cfg.csvPath
	if csvPath == "" {
		csvPath = filepath.Join(cfg.outDir, "corpus.csv")
	}
	if err := writeCSV(service, csvPath); err != nil {
		return err
	}

	for _, anomaly := range service.Anomalies() {
		slog.Warn("Discount exceeds line total", "name", anomaly.Name, "store", anomaly.Store, "date", anomaly.Date, "net", anomaly.NetTotal().String())
	}
	slog.Info("Reports written", "directory", cfg.outDir, "receipts", len(result.Receipts), "duplicates", len(result.Duplicates), "failed", len(result.Failed), "csv", csvPath)
	return nil
}

func writeCSV(service *receipt.Service, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating CSV directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV: %w", err)
	}
	if err := service.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("writing CSV: %w", err)
	}
	return f.Close()
}
