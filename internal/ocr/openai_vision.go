package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"idverify/internal/logger"
)

// ProviderOpenAI is the name reported by OpenAIVisionService.
const ProviderOpenAI = "openai-vision"

// OpenAIConfig configures the vision model transcription.
type OpenAIConfig struct {
	APIKey     string
	Model      string // gpt-4o, gpt-4o-mini
	MaxRetries int
}

// OpenAIVisionService implements Provider by asking a vision-capable chat
// model to transcribe the document verbatim.
type OpenAIVisionService struct {
	client *openai.Client
	config OpenAIConfig
	log    zerolog.Logger
}

type transcriptionResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// NewOpenAIVisionService creates the service. APIKey is required.
func NewOpenAIVisionService(config OpenAIConfig) (*OpenAIVisionService, error) {
	const op = "NewOpenAIVisionService"

	if config.APIKey == "" {
		return nil, WrapOCRError(op, ProviderOpenAI, ErrMissingAPIKey, "")
	}
	return NewOpenAIVisionServiceWithClient(openai.NewClient(config.APIKey), config), nil
}

// NewOpenAIVisionServiceWithClient creates the service with an explicit client (for testing).
func NewOpenAIVisionServiceWithClient(client *openai.Client, config OpenAIConfig) *OpenAIVisionService {
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	return &OpenAIVisionService{
		client: client,
		config: config,
		log:    logger.WithComponent("ocr-openai"),
	}
}

// Name implements Provider.
func (s *OpenAIVisionService) Name() string {
	return ProviderOpenAI
}

// ExtractText transcribes the image. The model has no word geometry, so
// Words is always empty.
func (s *OpenAIVisionService) ExtractText(ctx context.Context, imagePath string) (*Extraction, error) {
	const op = "ExtractText"
	startTime := time.Now()

	data, mimeType, err := loadImage(imagePath)
	if err != nil {
		return nil, WrapOCRError(op, ProviderOpenAI, err, "failed to load image")
	}
	if mimeType == "application/pdf" {
		return nil, WrapOCRError(op, ProviderOpenAI, ErrUnsupportedImage, "PDF input is not supported by the vision model")
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	s.log.Debug().
		Str("image", imagePath).
		Str("model", s.config.Model).
		Int("bytes", len(data)).
		Msg("Sending transcription request")

	var lastErr error
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.config.Model,
			Temperature: 0,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: transcriptionPrompt,
				},
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeText,
							Text: "Transcribe this identity document.",
						},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL:    dataURL,
								Detail: openai.ImageURLDetailHigh,
							},
						},
					},
				},
			},
			MaxTokens: 1500,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, WrapOCRError(op, ProviderOpenAI, ErrContextCanceled, ctx.Err().Error())
			}
			lastErr = err
			s.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", s.config.MaxRetries).
				Msg("Transcription request failed, retrying")
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = errors.New("no response choices from model")
			continue
		}

		parsed, err := parseTranscription(resp.Choices[0].Message.Content)
		if err != nil {
			lastErr = err
			s.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Msg("Failed to parse transcription, retrying")
			continue
		}

		processedAt := time.Now()
		return &Extraction{
			Text:               parsed.Text,
			Confidence:         parsed.Confidence,
			Provider:           ProviderOpenAI,
			ProcessedAt:        processedAt,
			ProcessingDuration: processedAt.Sub(startTime),
		}, nil
	}

	return nil, WrapOCRError(op, ProviderOpenAI, ErrOCRFailed,
		fmt.Sprintf("all %d attempts failed, last error: %v", s.config.MaxRetries, lastErr))
}

// parseTranscription decodes the model reply and clamps its confidence.
func parseTranscription(content string) (*transcriptionResponse, error) {
	var parsed transcriptionResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse transcription JSON: %w", err)
	}
	parsed.Text = strings.TrimSpace(parsed.Text)
	if parsed.Text == "" {
		return nil, ErrEmptyDocument
	}
	parsed.Confidence = max(0, min(parsed.Confidence, 1))
	return &parsed, nil
}

// Close is a no-op; the HTTP client holds no resources.
func (s *OpenAIVisionService) Close() error {
	return nil
}

const transcriptionPrompt = `You transcribe Indian identity documents (PAN card, Aadhaar card, passport, driving licence).

Return ONLY a JSON object:
{"text": "<every printed line, top to bottom, separated by \n>", "confidence": <0.0-1.0>}

Rules:
- Copy text exactly as printed, including labels, numbers and names.
- Do not correct spelling, translate or summarise.
- Skip text you cannot read; lower the confidence accordingly.`
