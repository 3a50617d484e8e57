package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/kvitto/internal/corpus"
	"github.com/zombor/kvitto/internal/parsing"
	"github.com/zombor/kvitto/internal/scanning"
)

const maxUploadSize = int64(50 << 20)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// contentTypeFor guesses a content type from the upload's extension
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleListReceipts returns a summary of every receipt
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	summaries := make([]Summary, 0, len(receipts))
	for _, receipt := range receipts {
		summaries = append(summaries, receipt.Summarize())
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleUploadReceipt handles receipt upload
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "File is too large. Maximum size is 50MB.", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file was provided. Upload the receipt in the \"file\" field.", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(header.Filename)
	}

	receipt, err := s.service.ProcessReceipt(header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		switch {
		case errors.Is(err, parsing.ErrMetadataNotFound):
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, ErrDuplicate):
			jsonError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, scanning.ErrUnsupportedContentType):
			jsonError(w, err.Error(), http.StatusUnsupportedMediaType)
		default:
			jsonError(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// handleGetReceipt returns a single receipt with its items and diagnostics
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(r.PathValue("id"))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("Error getting receipt", "error", err)
		}
		corsError(w, "Receipt not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// handleGetReceiptFile returns the original document for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(r.PathValue("id"))
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleListItems returns every corpus item ordered by line total
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	var descending bool
	switch r.URL.Query().Get("order") {
	case "", "desc":
		descending = true
	case "asc":
		descending = false
	default:
		corsError(w, `order must be "asc" or "desc"`, http.StatusBadRequest)
		return
	}

	items := s.service.Items(descending)
	if items == nil {
		items = []corpus.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handlePriceRanges returns the unit price range per product and store
func (s *Server) handlePriceRanges(w http.ResponseWriter, r *http.Request) {
	ranges := s.service.PriceRanges()
	if ranges == nil {
		ranges = []corpus.PriceRange{}
	}
	writeJSON(w, http.StatusOK, ranges)
}

// handleTotals returns the corpus totals and the items whose discount exceeds their total
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	anomalies := s.service.Anomalies()
	if anomalies == nil {
		anomalies = []corpus.Item{}
	}
	writeJSON(w, http.StatusOK, struct {
		corpus.Totals
		Anomalies []corpus.Item `json:"anomalies"`
	}{
		Totals:    s.service.Totals(),
		Anomalies: anomalies,
	})
}

// handleCorpusCSV streams the corpus as CSV
func (s *Server) handleCorpusCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="corpus.csv"`)
	if err := s.service.WriteCSV(w); err != nil {
		slog.Error("Error writing corpus CSV", "error", err)
	}
}
