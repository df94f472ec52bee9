// Package verification runs the identity document pipeline: OCR, type
// classification, the role policy gate, number and name extraction, and the
// five-parameter score that decides validity.
//
// Pipeline:
//   - OCR through any ocr.TextExtractor (single provider, hybrid or cached)
//   - Classification against the PAN, Aadhaar, passport and driving licence signatures
//   - Role policy check before any scoring
//   - Number extraction, name extraction and name matching in parallel
//   - Scoring of Keyword Presence, Document Number, Format Validity,
//     Name Extraction and Pattern Recognition; valid at 60% or more
//
// Document problems never surface as errors. OCR failures, unrecognized
// documents and role rejections all produce an invalid report with a message
// and recommendations. Errors are reserved for invalid requests.
package verification

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"idverify/internal/document"
	"idverify/internal/fuzzy"
	"idverify/internal/logger"
	"idverify/internal/metrics"
	"idverify/internal/names"
	"idverify/internal/ocr"
	"idverify/internal/policy"
	"idverify/pkg/models"
	"idverify/pkg/services"
)

// ProviderText labels reports built from already-transcribed text.
const ProviderText = "text"

// Outcome labels recorded in metrics.
const (
	StatusValid        = "valid"
	StatusInvalid      = "invalid"
	StatusOCRFailed    = "ocr_failed"
	StatusUnknownType  = "unknown_type"
	StatusRoleRejected = "role_rejected"
)

// Config wires the pipeline's collaborators. Nil fields take defaults.
type Config struct {
	// Policy decides which document types each role may use.
	Policy *policy.Policy

	// Names finds holder names. Defaults to names.NewExtractor(names.DefaultConfig()).
	Names *names.Extractor

	// Metrics records outcomes. Nil disables metrics.
	Metrics *metrics.Metrics

	// Parameters overrides the scored parameter table.
	Parameters []Parameter
}

// Service implements services.DocumentVerifier.
type Service struct {
	extractor ocr.TextExtractor
	provider  string
	policy    *policy.Policy
	names     *names.Extractor
	metrics   *metrics.Metrics
	params    []Parameter
	log       zerolog.Logger
	now       func() time.Time
}

var _ services.DocumentVerifier = (*Service)(nil)

// NewService creates a Service around extractor. extractor may be nil when
// only VerifyText is used.
func NewService(extractor ocr.TextExtractor, cfg Config) *Service {
	if cfg.Policy == nil {
		cfg.Policy = policy.Default()
	}
	if cfg.Names == nil {
		cfg.Names = names.NewExtractor(names.DefaultConfig())
	}
	if len(cfg.Parameters) == 0 {
		cfg.Parameters = DefaultParameters
	}

	provider := "none"
	if p, ok := extractor.(interface{ Name() string }); ok {
		provider = p.Name()
	}

	return &Service{
		extractor: extractor,
		provider:  provider,
		policy:    cfg.Policy,
		names:     cfg.Names,
		metrics:   cfg.Metrics,
		params:    cfg.Parameters,
		log:       logger.WithComponent("verification"),
		now:       time.Now,
	}
}

// VerifyDocument runs OCR on the image at imagePath and evaluates it for role.
func (s *Service) VerifyDocument(ctx context.Context, imagePath, role, declaredName, declaredNumber string) (*models.VerificationReport, error) {
	const op = "VerifyDocument"

	r, err := s.policy.ParseRole(role)
	if err != nil {
		return nil, WrapVerificationError(op, err, "")
	}
	if strings.TrimSpace(imagePath) == "" {
		return nil, WrapVerificationError(op, ErrEmptyImagePath, "")
	}
	if s.extractor == nil {
		return nil, WrapVerificationError(op, ocr.ErrInvalidConfiguration, "no OCR provider configured")
	}

	start := s.now()
	report, log := s.newReport(r, s.provider, start)
	log.Info().Str("image", imagePath).Msg("Starting document verification")

	ext, err := s.extractor.ExtractText(ctx, imagePath)
	s.metrics.ObserveOCRLatency(s.provider, s.now().Sub(start))
	if err != nil {
		if ctx.Err() != nil {
			return nil, WrapVerificationError(op, errors.Join(ErrCanceled, ctx.Err()), imagePath)
		}
		log.Warn().Err(err).Str("image", imagePath).Msg("OCR failed, reporting document as unreadable")
		s.fillOCRFailure(report, err)
		return s.finish(report, log, StatusOCRFailed, start), nil
	}
	if ext.Provider != "" {
		report.OCRProvider = ext.Provider
	}

	if err := s.evaluate(ctx, log, report, r, ext, declaredName, declaredNumber, start); err != nil {
		return nil, WrapVerificationError(op, err, imagePath)
	}
	return report, nil
}

// VerifyText evaluates already-transcribed text for role without OCR.
func (s *Service) VerifyText(ctx context.Context, text, role, declaredName, declaredNumber string) (*models.VerificationReport, error) {
	const op = "VerifyText"

	r, err := s.policy.ParseRole(role)
	if err != nil {
		return nil, WrapVerificationError(op, err, "")
	}

	start := s.now()
	report, log := s.newReport(r, ProviderText, start)
	ext := &ocr.Extraction{
		Text:        text,
		Confidence:  1,
		Provider:    ProviderText,
		ProcessedAt: start,
	}
	if strings.TrimSpace(text) == "" {
		ext.Confidence = 0
	}

	if err := s.evaluate(ctx, log, report, r, ext, declaredName, declaredNumber, start); err != nil {
		return nil, WrapVerificationError(op, err, "")
	}
	return report, nil
}

func (s *Service) newReport(role policy.Role, provider string, start time.Time) (*models.VerificationReport, zerolog.Logger) {
	id := uuid.NewString()
	report := &models.VerificationReport{
		VerificationID:  id,
		Role:            string(role),
		DocumentType:    string(document.Unknown),
		TotalParameters: len(s.params),
		OCRProvider:     provider,
		Timestamp:       start.UTC(),
	}
	return report, logger.WithVerificationID(s.log, id)
}

// evaluate runs everything after OCR. It fails only when ctx ends.
func (s *Service) evaluate(ctx context.Context, log zerolog.Logger, report *models.VerificationReport, role policy.Role,
	ext *ocr.Extraction, declaredName, declaredNumber string, start time.Time) error {
	report.OCRConfidence = ext.Confidence

	cls := document.Classify(ext.Text)
	report.DocumentType = string(cls.Type)
	report.ClassificationConfidence = cls.Confidence
	log.Debug().
		Str("document_type", string(cls.Type)).
		Float64("confidence", cls.Confidence).
		Int("text_length", len(ext.Text)).
		Msg("Document classified")

	sig, ok := document.Lookup(cls.Type)
	if !ok {
		s.fillUnknownType(report)
		s.finish(report, log, StatusUnknownType, start)
		return nil
	}

	decision := s.policy.Check(role, cls.Type)
	report.AdvisoryMinConfidence = decision.MinConfidence
	if !decision.Allowed {
		s.fillRoleRejection(report, decision)
		s.finish(report, log, StatusRoleRejected, start)
		return nil
	}

	ev, err := s.gather(ctx, ext, sig, declaredName, declaredNumber)
	if err != nil {
		return err
	}

	card := Score(s.params, ev)
	fillScored(report, ev, card)

	status := StatusInvalid
	if card.IsValid {
		status = StatusValid
	}
	s.finish(report, log, status, start)
	return nil
}

// gather collects the evidence. Each step writes its own fields.
func (s *Service) gather(ctx context.Context, ext *ocr.Extraction, sig document.Signature, declaredName, declaredNumber string) (*Evidence, error) {
	ev := &Evidence{
		Text:           ext.Text,
		Signature:      sig,
		DeclaredNumber: declaredNumber,
		DeclaredName:   declaredName,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		ev.Number = document.ExtractNumber(ext.Text, sig.Type)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		ev.Keywords = document.KeywordsFound(sig, ext.Text)
		ev.PatternConfidence = PatternConfidence(ext.Text, sig)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		ev.Name = s.names.ExtractBest(ext, declaredName)
		if ev.Name != nil && strings.TrimSpace(declaredName) != "" {
			m := fuzzy.CompareNames(ev.Name.Text, declaredName)
			ev.NameMatch = &m
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, errors.Join(ErrCanceled, err)
	}
	return ev, nil
}

// finish stamps the duration, records metrics and logs the outcome.
func (s *Service) finish(report *models.VerificationReport, log zerolog.Logger, status string, start time.Time) *models.VerificationReport {
	report.Duration = s.now().Sub(start)

	s.metrics.IncrementOutcome(status, report.DocumentType, report.Role)
	s.metrics.ObserveVerifyLatency(report.Duration)
	for _, p := range report.Parameters {
		s.metrics.IncrementParameter(p.Name, p.Passed)
	}
	if report.NameMatch != nil {
		s.metrics.IncrementNameMatch(report.NameMatch.Method, report.NameMatch.Matched)
	}

	log.Info().
		Str("status", status).
		Str("document_type", report.DocumentType).
		Bool("is_valid", report.IsValid).
		Float64("pass_percentage", report.PassPercentage).
		Dur("duration", report.Duration).
		Msg("Verification complete")
	return report
}
