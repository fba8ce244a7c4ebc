package receipt

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/zombor/receipt-pipeline/internal/catalog"
)

// maxUploadSize covers high-resolution phone photos once base64 encoded
const maxUploadSize = int64(50 << 20)

const tooLargeMessage = "File is too large. Maximum size is 50MB. Please compress or resize your image."

// scanResponse has the same shape as the pipeline result
type scanResponse struct {
	Success bool           `json:"success"`
	Receipt *StoredReceipt `json:"receipt,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScan accepts either a JSON ScanRequest or a multipart form with a
// file and user_id
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeScanRequest(w, r)
	if !ok {
		return
	}

	stored, err := s.service.ScanReceipt(r.Context(), req)
	var scanErr *ScanError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, scanResponse{Success: true, Receipt: stored})
	case errors.Is(err, ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, scanResponse{Error: err.Error()})
	case errors.As(err, &scanErr):
		writeJSON(w, http.StatusUnprocessableEntity, scanResponse{Error: scanErr.Message})
	default:
		slog.Error("Error scanning receipt", "user_id", req.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, scanResponse{Error: "Internal server error"})
	}
}

func decodeScanRequest(w http.ResponseWriter, r *http.Request) (ScanRequest, bool) {
	var req ScanRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, tooLargeMessage, http.StatusRequestEntityTooLarge)
				return req, false
			}
			writeError(w, "Invalid request body", http.StatusBadRequest)
			return req, false
		}
		return req, true
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, "Error parsing form", http.StatusBadRequest)
		return req, false
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, "No file was selected. Please choose a file to upload.", http.StatusBadRequest)
		return req, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file. Please try again.", http.StatusBadRequest)
		return req, false
	}

	req.ImageBase64 = base64.StdEncoding.EncodeToString(data)
	req.UserID = r.FormValue("user_id")
	req.UserCity = r.FormValue("user_city")
	return req, true
}

// handleListReceipts returns receipts, optionally for one user
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts(r.URL.Query().Get("user_id"))
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		writeError(w, "Receipt not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting receipt", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleGetReceiptImage returns the image a receipt was scanned from
func (s *Server) handleGetReceiptImage(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptImage(r.PathValue("id"))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("Error getting receipt image", "error", err)
		}
		writeError(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteReceipt(r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		writeError(w, "Receipt not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error deleting receipt", "error", err)
		writeError(w, "Error deleting receipt", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryLimit reads ?limit=, falling back to def
func queryLimit(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// handleListCorrections returns recent local versus cloud diffs
func (s *Server) handleListCorrections(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r, 100)
	if !ok {
		writeError(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	diffs, err := s.service.ListCorrections(limit)
	if err != nil {
		slog.Error("Error listing corrections", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, diffs)
}

// handleSearchProducts ranks catalog products against ?q=
func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r, 10)
	if !ok {
		writeError(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	results, err := s.service.SearchProducts(r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleLearnMapping stores a raw name to product mapping
func (s *Server) handleLearnMapping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RawName   string `json:"raw_name"`
		ProductID string `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := s.service.LearnProductMapping(req.RawName, req.ProductID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{
			"raw_name":   req.RawName,
			"product_id": req.ProductID,
		})
	case errors.Is(err, catalog.ErrUnknownProduct):
		writeError(w, err.Error(), http.StatusNotFound)
	default:
		writeError(w, err.Error(), http.StatusBadRequest)
	}
}
