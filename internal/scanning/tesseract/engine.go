// Package tesseract provides the on-device OCR engine backed by Tesseract
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/zombor/receipt-pipeline/internal/scanning"
)

// Engine runs Tesseract through gosseract. A client is created per call since
// gosseract clients are not safe for concurrent use.
type Engine struct {
	languages []string
	version   string
}

// NewEngine creates an Engine for the given Tesseract languages, e.g. "fra", "eng"
func NewEngine(languages ...string) *Engine {
	return &Engine{
		languages: languages,
		version:   gosseract.Version(),
	}
}

// Available reports whether the Tesseract library could be loaded
func (e *Engine) Available() bool {
	return e.version != ""
}

// Version is the linked Tesseract version
func (e *Engine) Version() string {
	return e.version
}

type recognition struct {
	text scanning.OCRText
	err  error
}

// Recognize reads text from a PNG image. Tesseract cannot be interrupted, so a
// cancelled context returns immediately and the work finishes in the background.
func (e *Engine) Recognize(ctx context.Context, png []byte) (scanning.OCRText, error) {
	if err := ctx.Err(); err != nil {
		return scanning.OCRText{}, err
	}

	done := make(chan recognition, 1)
	go func() {
		text, err := e.recognize(png)
		done <- recognition{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return scanning.OCRText{}, ctx.Err()
	case r := <-done:
		return r.text, r.err
	}
}

func (e *Engine) recognize(png []byte) (scanning.OCRText, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if len(e.languages) > 0 {
		if err := client.SetLanguage(e.languages...); err != nil {
			return scanning.OCRText{}, fmt.Errorf("setting languages: %w", err)
		}
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return scanning.OCRText{}, fmt.Errorf("loading image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return scanning.OCRText{}, fmt.Errorf("reading text: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return scanning.OCRText{}, fmt.Errorf("reading word confidences: %w", err)
	}

	return scanning.OCRText{Text: text, Confidence: meanConfidence(boxes)}, nil
}

// meanConfidence averages word confidences, reported by Tesseract as 0..100
func meanConfidence(boxes []gosseract.BoundingBox) float64 {
	if len(boxes) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range boxes {
		sum += b.Confidence
	}
	mean := sum / float64(len(boxes)) / 100
	return max(0, min(1, mean))
}
