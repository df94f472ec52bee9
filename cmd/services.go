package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"idverify/internal/config"
	"idverify/internal/metrics"
	"idverify/internal/names"
	"idverify/internal/ocr"
	"idverify/internal/policy"
	"idverify/internal/verification"
)

// pipeline holds everything a command needs to verify documents.
type pipeline struct {
	cfg      *config.Config
	ocr      ocr.Provider
	verifier *verification.Service
	metrics  *metrics.Metrics
	redis    *redis.Client
	log      zerolog.Logger
}

// newPipeline builds the verifier from the environment. withOCR=false skips
// the OCR providers for commands that only read text.
func newPipeline(ctx context.Context, withOCR bool, log zerolog.Logger) (*pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rolePolicy, err := loadPolicy(cfg, log)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:     cfg,
		metrics: metrics.New(),
		log:     log,
	}

	var extractor ocr.TextExtractor
	if withOCR {
		provider, err := p.buildOCR(ctx)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.ocr = provider
		extractor = provider
	}

	p.verifier = verification.NewService(extractor, verification.Config{
		Policy:  rolePolicy,
		Names:   names.NewExtractor(names.Config{WordConfidenceMin: cfg.OCRWordConfidenceMin}),
		Metrics: p.metrics,
	})
	return p, nil
}

func loadPolicy(cfg *config.Config, log zerolog.Logger) (*policy.Policy, error) {
	if cfg.RolePolicyFile == "" {
		return policy.Default(), nil
	}
	p, err := policy.LoadFile(cfg.RolePolicyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load role policy %s: %w", cfg.RolePolicyFile, err)
	}
	log.Debug().Str("file", cfg.RolePolicyFile).Str("version", p.Version).Msg("Role policy loaded")
	return p, nil
}

// buildOCR assembles primary, optional fallback and optional Redis cache.
func (p *pipeline) buildOCR(ctx context.Context) (ocr.Provider, error) {
	primary, err := newProvider(ctx, p.cfg, p.cfg.OCRProvider)
	if err != nil {
		return nil, handleSetupError(err, p.cfg.OCRProvider, p.log)
	}

	var provider ocr.Provider = primary
	if p.cfg.HasSecondaryProvider() {
		secondary, err := newProvider(ctx, p.cfg, p.cfg.OCRSecondaryProvider)
		if err != nil {
			primary.Close()
			return nil, handleSetupError(err, p.cfg.OCRSecondaryProvider, p.log)
		}
		provider = ocr.NewHybridExtractor(primary, secondary, p.cfg.OCRFallbackThreshold).WithObserver(p.metrics)
		p.log.Debug().
			Str("primary", primary.Name()).
			Str("secondary", secondary.Name()).
			Float64("threshold", p.cfg.OCRFallbackThreshold).
			Msg("Hybrid OCR configured")
	}

	client, err := ocr.NewRedisClient(ctx, p.cfg.RedisURL)
	if err != nil {
		// The cache is optional; run without it.
		p.log.Warn().Err(err).Msg("OCR cache unavailable, continuing without it")
		return provider, nil
	}
	if client != nil {
		p.redis = client
		name := p.cfg.OCRProvider
		if p.cfg.HasSecondaryProvider() {
			name += "+" + p.cfg.OCRSecondaryProvider
		}
		provider = ocr.NewCachedExtractor(provider, name, client, p.cfg.OCRCacheTTL)
		p.log.Debug().Dur("ttl", p.cfg.OCRCacheTTL).Msg("OCR cache enabled")
	}
	return provider, nil
}

func newProvider(ctx context.Context, cfg *config.Config, name string) (ocr.Provider, error) {
	switch name {
	case config.ProviderVision:
		return ocr.NewGoogleVisionService(ctx)
	case config.ProviderDocumentAI:
		return ocr.NewDocumentAIService(ctx, ocr.DocumentAIConfig{
			ProjectID:   cfg.GoogleCloudProject,
			Location:    cfg.GoogleCloudLocation,
			ProcessorID: cfg.DocumentAIProcessorID,
			Timeout:     cfg.OCRTimeout,
		})
	case config.ProviderOpenAI:
		return ocr.NewOpenAIVisionService(ocr.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.OpenAIModel,
			MaxRetries: cfg.OpenAIMaxRetries,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ocr.ErrInvalidConfiguration, name)
	}
}

// Close releases OCR clients and Redis, then writes the metrics textfile
// when METRICS_FILE is set.
func (p *pipeline) Close() {
	if p.ocr != nil {
		if err := p.ocr.Close(); err != nil {
			p.log.Warn().Err(err).Msg("Failed to close OCR provider")
		}
	}
	if p.redis != nil {
		if err := p.redis.Close(); err != nil {
			p.log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	if p.cfg != nil && p.cfg.MetricsFile != "" {
		if err := p.metrics.WriteTextfile(p.cfg.MetricsFile); err != nil {
			p.log.Warn().Err(err).Str("file", p.cfg.MetricsFile).Msg("Failed to write metrics")
		} else {
			p.log.Debug().Str("file", p.cfg.MetricsFile).Msg("Metrics written")
		}
	}
}

// createContextWithTimeout returns a context that ends after timeout or on
// SIGINT/SIGTERM.
func createContextWithTimeout(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleSetupError turns provider construction failures into actionable messages.
func handleSetupError(err error, provider string, log zerolog.Logger) error {
	log.Error().Err(err).Str("provider", provider).Msg("Failed to create OCR provider")

	switch {
	case errors.Is(err, ocr.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials not configured for the %s provider. Please set one of:\n\n"+
			"1. GOOGLE_APPLICATION_CREDENTIALS with the path to a service account JSON file:\n"+
			"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n"+
			"2. GOOGLE_CREDENTIALS with inline JSON:\n"+
			"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",...}'\n\n"+
			"Original error: %w", provider, err)
	case errors.Is(err, ocr.ErrMissingAPIKey):
		return fmt.Errorf("OpenAI API key not configured. Please set OPENAI_API_KEY: %w", err)
	case errors.Is(err, ocr.ErrInvalidConfiguration):
		return fmt.Errorf("invalid OCR configuration (OCR_PROVIDER=%s): %w", provider, err)
	default:
		return fmt.Errorf("failed to create %s OCR provider: %w", provider, err)
	}
}

// handleOCRError explains OCR failures of the raw ocr command.
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled), errors.Is(err, ocr.ErrContextCanceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrImageNotFound):
		return fmt.Errorf("image file not found: %w", err)
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large (maximum 20MB). Try a smaller or compressed photo")
	case errors.Is(err, ocr.ErrUnsupportedImage):
		return fmt.Errorf("unsupported or corrupted image. Use JPEG, PNG, TIFF or PDF")
	case errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("no readable text found in the image")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS: %w", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Ensure the service account can use the configured OCR API: %w", err)
	case strings.Contains(errStr, "quota") || strings.Contains(errStr, "QUOTA_EXCEEDED"):
		return fmt.Errorf("OCR API quota exceeded. Check your project quotas: %w", err)
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}
