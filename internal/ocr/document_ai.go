package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"idverify/internal/logger"
)

// ProviderDocumentAI is the name reported by DocumentAIService.
const ProviderDocumentAI = "document-ai"

// DocumentAIConfig configures the Document AI OCR processor.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string // "us" or "eu"
	ProcessorID string
	Timeout     time.Duration
}

// DocumentAIService implements Provider using a Google Document AI OCR processor.
type DocumentAIService struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIService creates the processor client. ProjectID and ProcessorID
// are required; Location defaults to "us".
func NewDocumentAIService(ctx context.Context, config DocumentAIConfig) (*DocumentAIService, error) {
	const op = "NewDocumentAIService"

	if config.ProjectID == "" {
		return nil, WrapOCRError(op, ProviderDocumentAI, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapOCRError(op, ProviderDocumentAI, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	// Regional endpoint for anything but the default multi-region
	var clientOptions []option.ClientOption
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	credOptions, source := googleClientOptions()
	clientOptions = append(clientOptions, credOptions...)

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if source == "" {
			return nil, WrapOCRError(op, ProviderDocumentAI, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, ProviderDocumentAI, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return NewDocumentAIServiceWithClient(config, client), nil
}

// NewDocumentAIServiceWithClient creates the service with an explicit client (for testing).
func NewDocumentAIServiceWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIService {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &DocumentAIService{
		client: client,
		config: config,
		log:    logger.WithComponent("ocr-document-ai"),
	}
}

// Name implements Provider.
func (p *DocumentAIService) Name() string {
	return ProviderDocumentAI
}

// ExtractText sends the raw image to the OCR processor.
func (p *DocumentAIService) ExtractText(ctx context.Context, imagePath string) (*Extraction, error) {
	const op = "ExtractText"
	startTime := time.Now()

	data, mimeType, err := loadImage(imagePath)
	if err != nil {
		return nil, WrapOCRError(op, ProviderDocumentAI, err, "failed to load image")
	}

	processCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
	}

	resp, err := p.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, p.handleProcessingError(op, err)
	}
	if resp.Document == nil {
		return nil, WrapOCRError(op, ProviderDocumentAI, ErrOCRFailed, "no document in response")
	}

	result, err := convertDocument(resp.Document)
	if err != nil {
		return nil, WrapOCRError(op, ProviderDocumentAI, err, imagePath)
	}

	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)

	p.log.Debug().
		Str("image", imagePath).
		Str("processor", p.config.ProcessorID).
		Int("tokens", len(result.Words)).
		Float64("confidence", result.Confidence).
		Msg("Document AI OCR completed")

	return result, nil
}

func (p *DocumentAIService) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// handleProcessingError converts Document AI errors to OCR errors.
func (p *DocumentAIService) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"), strings.Contains(errStr, "PermissionDenied"):
		return WrapOCRError(op, ProviderDocumentAI, ErrMissingCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "NOT_FOUND"), strings.Contains(errStr, "NotFound"):
		return WrapOCRError(op, ProviderDocumentAI, ErrInvalidConfiguration, fmt.Sprintf("processor not found: %s", p.config.ProcessorID))
	case strings.Contains(errStr, "INVALID_ARGUMENT"), strings.Contains(errStr, "InvalidArgument"):
		return WrapOCRError(op, ProviderDocumentAI, ErrUnsupportedImage, "image format not supported or corrupted")
	case strings.Contains(errStr, "DeadlineExceeded"), strings.Contains(errStr, "context deadline exceeded"),
		strings.Contains(errStr, "Canceled"), strings.Contains(errStr, "context canceled"):
		return WrapOCRError(op, ProviderDocumentAI, ErrContextCanceled, errStr)
	default:
		return WrapOCRError(op, ProviderDocumentAI, ErrOCRFailed, errStr)
	}
}

// convertDocument maps page tokens to words. Token text is resolved through
// the text anchor into Document.Text; normalized vertices are scaled by the
// page dimension.
func convertDocument(doc *documentaipb.Document) (*Extraction, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrEmptyDocument
	}

	result := &Extraction{
		Text:     doc.Text,
		Provider: ProviderDocumentAI,
	}

	var confidenceSum float64
	var confidenceCount int
	languageSet := make(map[string]bool)

	for _, page := range doc.Pages {
		var width, height float32
		if page.Dimension != nil {
			width, height = page.Dimension.Width, page.Dimension.Height
		}
		if int(width) > result.PageWidth {
			result.PageWidth = int(width)
		}
		result.PageHeight += int(height)

		for _, lang := range page.DetectedLanguages {
			if lang.LanguageCode != "" {
				languageSet[lang.LanguageCode] = true
			}
		}

		for _, token := range page.Tokens {
			layout := token.Layout
			if layout == nil {
				continue
			}
			text := strings.TrimSpace(anchorText(doc.Text, layout.TextAnchor))
			if text == "" {
				continue
			}
			confidenceSum += float64(layout.Confidence)
			confidenceCount++

			result.Words = append(result.Words, Word{
				Text:        text,
				Confidence:  float64(layout.Confidence),
				BoundingBox: boxFromLayout(layout.BoundingPoly, width, height),
			})
		}
	}

	if confidenceCount > 0 {
		result.Confidence = confidenceSum / float64(confidenceCount)
	}
	for lang := range languageSet {
		result.LanguageCodes = append(result.LanguageCodes, lang)
	}

	return result, nil
}

func anchorText(text string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 || end > len(text) || start >= end {
			continue
		}
		b.WriteString(text[start:end])
	}
	return b.String()
}

func boxFromLayout(poly *documentaipb.BoundingPoly, width, height float32) BoundingBox {
	if poly == nil {
		return BoundingBox{}
	}
	if len(poly.Vertices) > 0 {
		minX, minY := poly.Vertices[0].X, poly.Vertices[0].Y
		maxX, maxY := minX, minY
		for _, v := range poly.Vertices[1:] {
			minX, minY = min(minX, v.X), min(minY, v.Y)
			maxX, maxY = max(maxX, v.X), max(maxY, v.Y)
		}
		return BoundingBox{X: int(minX), Y: int(minY), Width: int(maxX - minX), Height: int(maxY - minY)}
	}
	if len(poly.NormalizedVertices) == 0 {
		return BoundingBox{}
	}
	minX, minY := poly.NormalizedVertices[0].X, poly.NormalizedVertices[0].Y
	maxX, maxY := minX, minY
	for _, v := range poly.NormalizedVertices[1:] {
		minX, minY = min(minX, v.X), min(minY, v.Y)
		maxX, maxY = max(maxX, v.X), max(maxY, v.Y)
	}
	return BoundingBox{
		X:      int(minX * width),
		Y:      int(minY * height),
		Width:  int((maxX - minX) * width),
		Height: int((maxY - minY) * height),
	}
}

// Close closes the underlying Document AI client.
func (p *DocumentAIService) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
