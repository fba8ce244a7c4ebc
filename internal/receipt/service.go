package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/zombor/receipt-pipeline/internal/catalog"
	"github.com/zombor/receipt-pipeline/internal/extraction"
	"github.com/zombor/receipt-pipeline/internal/pipeline"
	"github.com/zombor/receipt-pipeline/internal/scanning"
)

// ErrInvalidRequest marks input the caller has to fix
var ErrInvalidRequest = errors.New("invalid request")

// ScanError is returned when the pipeline produced no receipt. Message is
// the pipeline's error text, safe to show to the user.
type ScanError struct {
	Message string
	Err     error
}

func (e *ScanError) Error() string {
	return e.Message
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Pipeline turns a receipt image into a FinalReceipt
type Pipeline interface {
	Process(ctx context.Context, imageBase64, userID, userCity string) *pipeline.Outcome
}

// ProductCatalog resolves item names to catalog products
type ProductCatalog interface {
	Normalize(raw string) catalog.Match
	LearnMapping(raw, productID string) error
	Search(query string, limit int) []catalog.SearchResult
}

// Service handles receipt operations
type Service struct {
	db         DB
	pipeline   Pipeline
	storage    Storage
	products   ProductCatalog
	timeSource extraction.TimeSource
}

// NewService creates a new Service with the system clock
func NewService(db DB, p Pipeline, storage Storage, products ProductCatalog) *Service {
	return NewServiceWithDeps(db, p, storage, products, extraction.SystemClock{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, p Pipeline, storage Storage, products ProductCatalog, timeSrc extraction.TimeSource) *Service {
	return &Service{
		db:         db,
		pipeline:   p,
		storage:    storage,
		products:   products,
		timeSource: timeSrc,
	}
}

func imageFileName(receiptID string) string {
	return receiptID + ".img"
}

// ScanReceipt runs the pipeline on an image and stores the receipt it produced
func (s *Service) ScanReceipt(ctx context.Context, req ScanRequest) (*StoredReceipt, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	image, contentType, err := scanning.DecodeImage(req.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	outcome := s.pipeline.Process(ctx, req.ImageBase64, userID, req.UserCity)
	result := outcome.Result
	if result == nil || !result.Success || result.Receipt == nil {
		msg := "receipt processing failed"
		if result != nil && result.Error != "" {
			msg = result.Error
		}
		slog.Warn("Receipt scan failed",
			"user_id", userID,
			"error", msg,
			"states", fmt.Sprint(outcome.States),
		)
		return nil, &ScanError{Message: msg, Err: outcome.Err}
	}

	final := result.Receipt
	stored := &StoredReceipt{
		FinalReceipt:   final,
		UserID:         userID,
		UserCity:       req.UserCity,
		ImageFile:      imageFileName(final.ID),
		ContentType:    contentType,
		ProductMatches: s.matchProducts(final.Items),
		StoredAt:       s.timeSource.Now(),
	}

	if err := s.storage.Save(stored.ImageFile, image); err != nil {
		return nil, fmt.Errorf("saving image: %w", err)
	}
	if err := s.db.SaveReceipt(stored); err != nil {
		if delErr := s.storage.Delete(stored.ImageFile); delErr != nil {
			slog.Warn("Failed to clean up image", "file", stored.ImageFile, "error", delErr)
		}
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	slog.Info("Stored receipt",
		"receipt_id", final.ID,
		"user_id", userID,
		"method", final.ExtractionMethod,
		"items", len(final.Items),
	)
	return stored, nil
}

func (s *Service) matchProducts(items []extraction.FinalItem) []catalog.Match {
	matches := make([]catalog.Match, 0, len(items))
	for _, item := range items {
		name := item.NormalizedName
		if strings.TrimSpace(name) == "" {
			name = item.Name
		}
		if s.products == nil {
			matches = append(matches, catalog.Match{Method: catalog.MethodNone, NeedsReview: true})
			continue
		}
		matches = append(matches, s.products.Normalize(name))
	}
	return matches
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*StoredReceipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns receipts newest first. An empty userID lists every user.
func (s *Service) ListReceipts(userID string) ([]*StoredReceipt, error) {
	all, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	receipts := make([]*StoredReceipt, 0, len(all))
	for _, r := range all {
		if userID == "" || r.UserID == userID {
			receipts = append(receipts, r)
		}
	}
	sort.SliceStable(receipts, func(i, j int) bool {
		a, b := receipts[i], receipts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return receipts, nil
}

// DeleteReceipt removes a receipt and its image
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if err := s.storage.Delete(receipt.ImageFile); err != nil {
		slog.Warn("Failed to delete image", "file", receipt.ImageFile, "error", err)
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptImage returns the stored image and its content type
func (s *Service) GetReceiptImage(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.ImageFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt image: %w", err)
	}
	return data, receipt.ContentType, nil
}

// ListCorrections returns the most recent local versus cloud diffs
func (s *Service) ListCorrections(limit int) ([]*pipeline.CorrectionDiff, error) {
	diffs, err := s.db.ListCorrections(limit)
	if err != nil {
		return nil, fmt.Errorf("listing corrections: %w", err)
	}
	return diffs, nil
}

// LearnProductMapping teaches the catalog that raw names productID
func (s *Service) LearnProductMapping(raw, productID string) error {
	if strings.TrimSpace(raw) == "" || strings.TrimSpace(productID) == "" {
		return fmt.Errorf("%w: raw_name and product_id are required", ErrInvalidRequest)
	}
	if err := s.products.LearnMapping(raw, productID); err != nil {
		return fmt.Errorf("learning mapping: %w", err)
	}
	return nil
}

// SearchProducts ranks catalog products against query
func (s *Service) SearchProducts(query string, limit int) ([]catalog.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = 10
	}
	return s.products.Search(query, limit), nil
}
