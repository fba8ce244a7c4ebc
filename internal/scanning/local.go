package scanning

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zombor/receipt-pipeline/internal/extraction"
)

// OCRText is the raw output of an OCR engine
type OCRText struct {
	Text string
	// Confidence is the engine's mean word confidence in [0,1]
	Confidence float64
}

// OCREngine recognizes text in a PNG image
type OCREngine interface {
	Available() bool
	Recognize(ctx context.Context, png []byte) (OCRText, error)
}

// LocalScanner implements LocalExtractor with an OCR engine and text heuristics
type LocalScanner struct {
	engine OCREngine
}

// NewLocalScanner creates a LocalScanner. A nil engine is never available.
func NewLocalScanner(engine OCREngine) *LocalScanner {
	return &LocalScanner{engine: engine}
}

// Available reports whether the OCR engine is usable
func (s *LocalScanner) Available() bool {
	return s.engine != nil && s.engine.Available()
}

// ExtractReceiptData decodes the image, runs OCR and parses the text
func (s *LocalScanner) ExtractReceiptData(ctx context.Context, imageBase64 string) (*extraction.ExtractionAttempt, error) {
	if !s.Available() {
		return nil, fmt.Errorf("ocr engine is not available")
	}

	pngData, err := decodeToPNG(imageBase64)
	if err != nil {
		return &extraction.ExtractionAttempt{ErrorMessage: err.Error()}, nil
	}

	ocr, err := s.engine.Recognize(ctx, pngData)
	if err != nil {
		return nil, fmt.Errorf("recognizing text: %w", err)
	}

	attempt := ParseReceiptText(ocr.Text, ocr.Confidence)
	slog.Debug("Local extraction finished",
		"success", attempt.Success,
		"confidence", ocr.Confidence,
		"items", len(attempt.LineItems),
		"merchant", attempt.MerchantName,
	)
	return attempt, nil
}
