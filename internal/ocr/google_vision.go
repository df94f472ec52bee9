package ocr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"

	"idverify/internal/logger"
)

// ProviderGoogleVision is the name reported by GoogleVisionService.
const ProviderGoogleVision = "google-vision"

// defaultLanguageHints covers the scripts printed on Indian identity documents.
var defaultLanguageHints = []string{"en", "hi"}

// GoogleVisionService implements Provider using Google Cloud Vision API.
type GoogleVisionService struct {
	client        *vision.ImageAnnotatorClient
	languageHints []string
	log           zerolog.Logger
}

// NewGoogleVisionService creates a Vision client with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewGoogleVisionService(ctx context.Context) (*GoogleVisionService, error) {
	const op = "NewGoogleVisionService"

	opts, source := googleClientOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if source == "" {
			return nil, WrapOCRError(op, ProviderGoogleVision, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, ProviderGoogleVision, err, "failed to create client with "+source)
	}

	return NewGoogleVisionServiceWithClient(client), nil
}

// NewGoogleVisionServiceWithClient creates the service with an explicit client (for testing).
func NewGoogleVisionServiceWithClient(client *vision.ImageAnnotatorClient) *GoogleVisionService {
	return &GoogleVisionService{
		client:        client,
		languageHints: defaultLanguageHints,
		log:           logger.WithComponent("ocr-vision"),
	}
}

// Name implements Provider.
func (g *GoogleVisionService) Name() string {
	return ProviderGoogleVision
}

// ExtractText runs DOCUMENT_TEXT_DETECTION on the image at imagePath.
func (g *GoogleVisionService) ExtractText(ctx context.Context, imagePath string) (*Extraction, error) {
	const op = "ExtractText"
	startTime := time.Now()

	data, _, err := loadImage(imagePath)
	if err != nil {
		return nil, WrapOCRError(op, ProviderGoogleVision, err, "failed to load image")
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: g.languageHints},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, WrapOCRError(op, ProviderGoogleVision, ErrContextCanceled, err.Error())
		}
		return nil, WrapOCRError(op, ProviderGoogleVision, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ProviderGoogleVision, ErrOCRFailed, "no response from Vision API")
	}

	imageResp := resp.Responses[0]
	if imageResp.Error != nil {
		return nil, WrapOCRError(op, ProviderGoogleVision, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imageResp.Error.Message))
	}

	result, err := convertTextAnnotation(imageResp.FullTextAnnotation)
	if err != nil {
		return nil, WrapOCRError(op, ProviderGoogleVision, err, imagePath)
	}

	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)

	g.log.Debug().
		Str("image", imagePath).
		Int("words", len(result.Words)).
		Float64("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Msg("Vision OCR completed")

	return result, nil
}

// convertTextAnnotation flattens the page/block/paragraph/word hierarchy into
// words with pixel bounding boxes.
func convertTextAnnotation(annotation *visionpb.TextAnnotation) (*Extraction, error) {
	if annotation == nil || strings.TrimSpace(annotation.Text) == "" {
		return nil, ErrEmptyDocument
	}

	result := &Extraction{
		Text:     annotation.Text,
		Provider: ProviderGoogleVision,
	}

	var confidenceSum float64
	var confidenceCount int
	languageSet := make(map[string]bool)

	for _, page := range annotation.Pages {
		if int(page.Width) > result.PageWidth {
			result.PageWidth = int(page.Width)
		}
		result.PageHeight += int(page.Height)

		if page.Property != nil {
			for _, lang := range page.Property.DetectedLanguages {
				if lang.LanguageCode != "" {
					languageSet[lang.LanguageCode] = true
				}
			}
		}

		for _, block := range page.Blocks {
			if block.Confidence > 0 {
				confidenceSum += float64(block.Confidence)
				confidenceCount++
			}
			for _, paragraph := range block.Paragraphs {
				for _, word := range paragraph.Words {
					var text strings.Builder
					for _, symbol := range word.Symbols {
						text.WriteString(symbol.Text)
					}
					if text.Len() == 0 {
						continue
					}
					result.Words = append(result.Words, Word{
						Text:        text.String(),
						Confidence:  float64(word.Confidence),
						BoundingBox: boxFromVertices(word.BoundingBox),
					})
				}
			}
		}
	}

	if confidenceCount > 0 {
		result.Confidence = confidenceSum / float64(confidenceCount)
	}

	for lang := range languageSet {
		result.LanguageCodes = append(result.LanguageCodes, lang)
	}
	sort.Strings(result.LanguageCodes)

	return result, nil
}

func boxFromVertices(poly *visionpb.BoundingPoly) BoundingBox {
	if poly == nil || len(poly.Vertices) == 0 {
		return BoundingBox{}
	}
	minX, minY := poly.Vertices[0].X, poly.Vertices[0].Y
	maxX, maxY := minX, minY
	for _, v := range poly.Vertices[1:] {
		minX = min(minX, v.X)
		minY = min(minY, v.Y)
		maxX = max(maxX, v.X)
		maxY = max(maxY, v.Y)
	}
	return BoundingBox{
		X:      int(minX),
		Y:      int(minY),
		Width:  int(maxX - minX),
		Height: int(maxY - minY),
	}
}

// Close closes the underlying Vision client.
func (g *GoogleVisionService) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
