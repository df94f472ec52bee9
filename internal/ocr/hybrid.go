package ocr

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"idverify/internal/logger"
)

// DefaultFallbackThreshold is the primary confidence below which the
// secondary provider is consulted.
const DefaultFallbackThreshold = 0.7

// Fallback reasons passed to FallbackObserver.
const (
	FallbackLowConfidence = "low_confidence"
	FallbackPrimaryError  = "primary_error"
)

// FallbackObserver is notified each time the secondary provider is used.
type FallbackObserver interface {
	OCRFallback(reason string, secondaryWon bool)
}

// HybridExtractor runs the primary extractor and, when its confidence is
// below Threshold or it fails, the secondary. The higher-confidence result
// wins; ties keep the primary.
type HybridExtractor struct {
	primary   TextExtractor
	secondary TextExtractor
	threshold float64
	observer  FallbackObserver
	log       zerolog.Logger
}

// NewHybridExtractor creates the chain. secondary may be nil, in which case
// the primary result is returned unchanged.
func NewHybridExtractor(primary, secondary TextExtractor, threshold float64) *HybridExtractor {
	if threshold <= 0 {
		threshold = DefaultFallbackThreshold
	}
	return &HybridExtractor{
		primary:   primary,
		secondary: secondary,
		threshold: threshold,
		log:       logger.WithComponent("ocr-hybrid"),
	}
}

// WithObserver sets the fallback observer and returns h.
func (h *HybridExtractor) WithObserver(observer FallbackObserver) *HybridExtractor {
	h.observer = observer
	return h
}

// Name implements Provider.
func (h *HybridExtractor) Name() string {
	return "hybrid"
}

// ExtractText implements TextExtractor.
func (h *HybridExtractor) ExtractText(ctx context.Context, imagePath string) (*Extraction, error) {
	primary, primaryErr := h.primary.ExtractText(ctx, imagePath)
	if primaryErr == nil && primary.Confidence >= h.threshold {
		return primary, nil
	}
	if h.secondary == nil {
		return primary, primaryErr
	}
	if primaryErr != nil && errors.Is(primaryErr, ErrContextCanceled) {
		return nil, primaryErr
	}

	var event *zerolog.Event
	reason := FallbackLowConfidence
	if primaryErr != nil {
		reason = FallbackPrimaryError
		event = h.log.Warn().Err(primaryErr)
	} else {
		event = h.log.Info().Float64("primary_confidence", primary.Confidence)
	}
	event.Str("image", imagePath).
		Float64("threshold", h.threshold).
		Str("reason", reason).
		Msg("Consulting secondary OCR provider")

	secondary, secondaryErr := h.secondary.ExtractText(ctx, imagePath)
	if secondaryErr != nil {
		h.log.Warn().Err(secondaryErr).Str("image", imagePath).Msg("Secondary OCR provider failed")
		h.notify(reason, false)
		if primaryErr != nil {
			return nil, primaryErr
		}
		return primary, nil
	}

	if primaryErr != nil || secondary.Confidence > primary.Confidence {
		h.notify(reason, true)
		return secondary, nil
	}
	h.notify(reason, false)
	return primary, nil
}

func (h *HybridExtractor) notify(reason string, secondaryWon bool) {
	if h.observer != nil {
		h.observer.OCRFallback(reason, secondaryWon)
	}
}

// Close closes both extractors when they hold resources.
func (h *HybridExtractor) Close() error {
	var errs []error
	for _, e := range []TextExtractor{h.primary, h.secondary} {
		if c, ok := e.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
