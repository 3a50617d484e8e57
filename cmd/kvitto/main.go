package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/kvitto/internal/receipt"
	"github.com/zombor/kvitto/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("kvitto")
	var (
		srcDir        = fs.StringLong("src", "./kvitton", "Directory of receipt PDFs to process (empty to skip)")
		outDir        = fs.StringLong("out", "./reports", "Directory for rendered reports")
		csvPath       = fs.StringLong("csv", "", "Corpus CSV path (default <out>/corpus.csv)")
		dbPath        = fs.StringLong("db", "kvitto.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./documents", "Directory for original receipt documents")
		extractorType = fs.StringLong("extractor", "fitz", "Text extractor: 'fitz', 'pdf' or 'gemini'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		workers       = fs.IntLong("workers", 4, "Documents extracted and parsed in parallel")
		failFast      = fs.BoolLong("fail-fast", "Stop at the first receipt that cannot be parsed")
		port          = fs.IntLong("port", 0, "HTTP server port (0 disables the server)")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("KVITTO"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Initializing database...", "path", *dbPath)
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var extractor scanning.Extractor
	switch *extractorType {
	case "fitz":
		extractor = scanning.NewFitz()
	case "pdf":
		extractor = scanning.NewPDF()
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		extractor, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid extractor type", "type", *extractorType, "valid", "fitz, pdf or gemini")
		os.Exit(1)
	}
	defer extractor.Close()

	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	receiptService := receipt.NewService(db, extractor, store)
	if _, err := receiptService.LoadCorpus(); err != nil {
		slog.Error("Failed to load stored receipts", "error", err)
		os.Exit(1)
	}

	if *srcDir != "" {
		if err := runBatch(ctx, receiptService, batchConfig{
			srcDir:   *srcDir,
			outDir:   *outDir,
			csvPath:  *csvPath,
			workers:  *workers,
			failFast: *failFast,
		}); err != nil {
			slog.Error("Batch failed", "error", err)
			os.Exit(1)
		}
	}

	if *port == 0 {
		return
	}

	server := receipt.NewServer(receiptService, receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	addr := fmt.Sprintf(":%d", *port)
	if err := server.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}
