package ocr

import (
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func visionWord(text string, confidence float32, x0, y0, x1, y1 int32) *visionpb.Word {
	var symbols []*visionpb.Symbol
	for _, r := range text {
		symbols = append(symbols, &visionpb.Symbol{Text: string(r)})
	}
	return &visionpb.Word{
		Symbols:    symbols,
		Confidence: confidence,
		BoundingBox: &visionpb.BoundingPoly{Vertices: []*visionpb.Vertex{
			{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
		}},
	}
}

func TestConvertTextAnnotation(t *testing.T) {
	annotation := &visionpb.TextAnnotation{
		Text: "Arnav Mehta\n",
		Pages: []*visionpb.Page{{
			Width:  800,
			Height: 500,
			Property: &visionpb.TextAnnotation_TextProperty{
				DetectedLanguages: []*visionpb.TextAnnotation_DetectedLanguage{{LanguageCode: "hi"}, {LanguageCode: "en"}},
			},
			Blocks: []*visionpb.Block{
				{
					Confidence: 0.9,
					Paragraphs: []*visionpb.Paragraph{{Words: []*visionpb.Word{
						visionWord("Arnav", 0.95, 100, 120, 180, 140),
						visionWord("Mehta", 0.85, 190, 121, 260, 141),
					}}},
				},
				{Confidence: 0.7},
			},
		}},
	}

	result, err := convertTextAnnotation(annotation)
	require.NoError(t, err)

	assert.Equal(t, ProviderGoogleVision, result.Provider)
	assert.InDelta(t, 0.8, result.Confidence, 1e-6)
	assert.Equal(t, 800, result.PageWidth)
	assert.Equal(t, 500, result.PageHeight)
	assert.Equal(t, []string{"en", "hi"}, result.LanguageCodes)
	require.Len(t, result.Words, 2)
	assert.Equal(t, "Arnav", result.Words[0].Text)
	assert.Equal(t, BoundingBox{X: 100, Y: 120, Width: 80, Height: 20}, result.Words[0].BoundingBox)
	assert.InDelta(t, 0.85, result.Words[1].Confidence, 1e-6)
}

func TestConvertTextAnnotationEmpty(t *testing.T) {
	_, err := convertTextAnnotation(nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = convertTextAnnotation(&visionpb.TextAnnotation{Text: "  \n"})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestConvertDocument(t *testing.T) {
	text := "Arnav Mehta\n"
	token := func(start, end int64, confidence float32, x0, y0, x1, y1 float32) *documentaipb.Document_Page_Token {
		return &documentaipb.Document_Page_Token{Layout: &documentaipb.Document_Page_Layout{
			TextAnchor: &documentaipb.Document_TextAnchor{TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{
				{StartIndex: start, EndIndex: end},
			}},
			Confidence: confidence,
			BoundingPoly: &documentaipb.BoundingPoly{NormalizedVertices: []*documentaipb.NormalizedVertex{
				{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
			}},
		}}
	}

	doc := &documentaipb.Document{
		Text: text,
		Pages: []*documentaipb.Document_Page{{
			Dimension: &documentaipb.Document_Page_Dimension{Width: 1000, Height: 600},
			Tokens: []*documentaipb.Document_Page_Token{
				token(0, 6, 0.9, 0.1, 0.2, 0.18, 0.25),
				token(6, 12, 0.8, 0.19, 0.2, 0.26, 0.25),
			},
		}},
	}

	result, err := convertDocument(doc)
	require.NoError(t, err)
	require.Len(t, result.Words, 2)
	assert.Equal(t, "Arnav", result.Words[0].Text)
	assert.Equal(t, "Mehta", result.Words[1].Text)
	assert.Equal(t, 100, result.Words[0].BoundingBox.X)
	assert.Equal(t, 120, result.Words[0].BoundingBox.Y)
	assert.InDelta(t, 0.85, result.Confidence, 1e-6)
	assert.Equal(t, 600, result.PageHeight)
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()

	png := filepath.Join(dir, "card.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o600))
	data, mimeType, err := loadImage(png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.NotEmpty(t, data)

	tiff := filepath.Join(dir, "card.tif")
	require.NoError(t, os.WriteFile(tiff, []byte("II*\x00rest-of-tiff"), 0o600))
	_, mimeType, err = loadImage(tiff)
	require.NoError(t, err)
	assert.Equal(t, "image/tiff", mimeType)

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("just some text"), 0o600))
	_, _, err = loadImage(txt)
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, _, err = loadImage(filepath.Join(dir, "missing.jpg"))
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestParseTranscription(t *testing.T) {
	got, err := parseTranscription(`{"text": " Aadhaar\nArnav Mehta ", "confidence": 1.4}`)
	require.NoError(t, err)
	assert.Equal(t, "Aadhaar\nArnav Mehta", got.Text)
	assert.Equal(t, 1.0, got.Confidence)

	_, err = parseTranscription(`{"text": "", "confidence": 0.9}`)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = parseTranscription("not json")
	assert.Error(t, err)
}

func TestOCRErrorWrapping(t *testing.T) {
	err := WrapOCRError("ExtractText", ProviderGoogleVision, ErrOCRFailed, "quota")
	assert.ErrorIs(t, err, ErrOCRFailed)
	assert.Equal(t, "ocr: google-vision.ExtractText failed: quota: OCR processing failed", err.Error())

	again := WrapOCRError("Outer", "", err, "")
	assert.Same(t, err, again)
	assert.Nil(t, WrapOCRError("op", "", nil, ""))
}
