// Package ocr provides text extraction from photographed identity documents.
//
// Providers:
//   - GoogleVisionService: Google Cloud Vision DOCUMENT_TEXT_DETECTION, returns
//     the full text plus every word with its bounding box and confidence
//   - DocumentAIService: Google Document AI OCR processor, tokens as words
//   - OpenAIVisionService: transcription by a vision-capable chat model
//
// HybridExtractor chains a primary and an optional secondary provider: the
// secondary is consulted, sequentially, only when the primary confidence is
// below a threshold. CachedExtractor stores results in Redis keyed by the
// image content hash.
//
// Required Environment Variables (Google providers):
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// Image limits:
//   - Maximum file size: 20MB
//   - Supported formats: JPEG, PNG, GIF, BMP, WEBP, TIFF, PDF (single page)
package ocr

import (
	"context"
	"time"
)

// TextExtractor transcribes the document at imagePath.
type TextExtractor interface {
	ExtractText(ctx context.Context, imagePath string) (*Extraction, error)
}

// Provider is a named TextExtractor holding a client that must be closed.
type Provider interface {
	TextExtractor

	// Name identifies the provider in logs, metrics and reports.
	Name() string

	// Close releases the underlying client.
	Close() error
}

// Extraction is the result of transcribing one image. It is never mutated
// after a provider returns it.
type Extraction struct {
	// Text is the transcribed text in reading order, lines separated by '\n'.
	Text string `json:"text"`

	// Confidence is the engine confidence (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Words holds word-level results when the provider supports them.
	Words []Word `json:"words,omitempty"`

	// PageWidth and PageHeight are the image dimensions in the same units as
	// the word bounding boxes. Zero when unknown.
	PageWidth  int `json:"page_width,omitempty"`
	PageHeight int `json:"page_height,omitempty"`

	// Provider names the engine that produced the text.
	Provider string `json:"provider"`

	// LanguageCodes contains the detected languages.
	LanguageCodes []string `json:"language_codes,omitempty"`

	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// Word is a single transcribed word.
type Word struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bbox"`
}

// BoundingBox is an axis-aligned rectangle in pixels, origin at the top left.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CenterY returns the vertical center of the box.
func (b BoundingBox) CenterY() int {
	return b.Y + b.Height/2
}

// Bottom returns the lower edge of the box.
func (b BoundingBox) Bottom() int {
	return b.Y + b.Height
}
