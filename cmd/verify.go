package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"idverify/internal/document"
	"idverify/internal/logger"
	"idverify/pkg/models"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [image-file]",
	Short: "Verify one identity document for a registration role",
	Long: `Run OCR on an identity document photo and verify it for a tenant, owner or
admin registration.

The document is classified as PAN card, Aadhaar card, passport or driving
licence and checked against the role policy. The document number and holder
name are extracted and the document is scored on five checks: Keyword
Presence, Document Number, Format Validity, Name Extraction and Pattern
Recognition. It is valid when at least 60% of the checks pass.

With --text the argument is a file of already-transcribed text and no OCR
provider is contacted.

Environment variables:
  OCR_PROVIDER            - vision (default), documentai or openai
  OCR_SECONDARY_PROVIDER  - fallback provider for low-confidence reads (default: none)
  ROLE_POLICY_FILE        - YAML file overriding the built-in role policy
  REDIS_URL               - enables the OCR result cache`,
	Example: `  # Verify a tenant's Aadhaar card
  idverify verify aadhaar.jpg --role tenant --name "Arnav Mehta" --number "1234 5678 9012"

  # JSON report written to a file
  idverify verify pan.png --role owner --json -o report.json

  # Verify transcribed text without OCR
  idverify verify scan.txt --text --role admin`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("role", "", "Registration role: tenant, owner or admin [REQUIRED]")
	verifyCmd.Flags().String("name", "", "Name declared by the user")
	verifyCmd.Flags().String("number", "", "Document number declared by the user")
	verifyCmd.Flags().Bool("text", false, "Treat the argument as a text file and skip OCR")
	verifyCmd.Flags().Bool("json", false, "Output the report as JSON")
	verifyCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	verifyCmd.Flags().Duration("timeout", 2*time.Minute, "Verification timeout")

	verifyCmd.MarkFlagRequired("role")
}

func runVerify(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("verify")

	role, _ := cmd.Flags().GetString("role")
	declaredName, _ := cmd.Flags().GetString("name")
	declaredNumber, _ := cmd.Flags().GetString("number")
	textMode, _ := cmd.Flags().GetBool("text")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	outputPath, _ := cmd.Flags().GetString("output")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	path := args[0]
	log.Info().
		Str("file", path).
		Str("role", role).
		Bool("text", textMode).
		Dur("timeout", timeout).
		Msg("Starting verification")

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	p, err := newPipeline(ctx, !textMode, log)
	if err != nil {
		return err
	}
	defer p.Close()

	var report *models.VerificationReport
	if textMode {
		text, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("failed to read text file: %w", readErr)
		}
		report, err = p.verifier.VerifyText(ctx, string(text), role, declaredName, declaredNumber)
	} else {
		report, err = p.verifier.VerifyDocument(ctx, path, role, declaredName, declaredNumber)
	}
	if err != nil {
		return err
	}

	return writeReport(report, outputPath, jsonOutput, log)
}

func writeReport(report *models.VerificationReport, outputPath string, jsonOutput bool, log zerolog.Logger) error {
	var data []byte
	if jsonOutput {
		var err error
		data, err = json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		data = append(data, '\n')
	} else {
		data = []byte(formatReport(report))
	}

	if outputPath == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Error().Err(err).Str("output_file", outputPath).Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().Str("output_file", outputPath).Int("bytes", len(data)).Msg("Report written to file")
	return nil
}

// formatReport renders a report for the terminal.
func formatReport(r *models.VerificationReport) string {
	var b strings.Builder

	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString("                 DOCUMENT VERIFICATION\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Verification ID: %s\n", r.VerificationID)
	fmt.Fprintf(&b, "Role:            %s\n", r.Role)

	docType := document.DocumentType(r.DocumentType)
	fmt.Fprintf(&b, "Document:        %s (%.0f%% confidence)\n", docType.DisplayName(), r.ClassificationConfidence*100)
	if r.OCRProvider != "" {
		fmt.Fprintf(&b, "OCR:             %s (%.0f%% confidence)\n", r.OCRProvider, r.OCRConfidence*100)
	}

	verdict := "INVALID"
	if r.IsValid {
		verdict = "VALID"
	}
	fmt.Fprintf(&b, "Result:          %s %s (%d/%d checks, %.0f%%)\n",
		getStatusEmoji(verdictStatus(r)), verdict, r.PassedParameters, r.TotalParameters, r.PassPercentage)

	if r.DocumentNumber != "" {
		valid := "valid format"
		if !r.DocumentNumberValid {
			valid = "invalid format"
		}
		fmt.Fprintf(&b, "Number:          %s (%s)\n", r.DocumentNumber, valid)
	}
	if r.ExtractedName != "" {
		fmt.Fprintf(&b, "Name:            %s (%s)\n", r.ExtractedName, r.NameSource)
	}
	if r.NameMatch != nil {
		match := "does not match"
		if r.NameMatch.Matched {
			match = "matches"
		}
		fmt.Fprintf(&b, "Declared name:   %s, %s (%.0f%%, %s)\n", r.NameMatch.Declared, match, r.NameMatch.Similarity*100, r.NameMatch.Method)
	}
	if r.Message != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Message)
	}

	if len(r.Parameters) > 0 {
		b.WriteString("\nChecks:\n")
		for _, p := range r.Parameters {
			mark := "✅"
			if !p.Passed {
				mark = "❌"
			}
			fmt.Fprintf(&b, "  %s %-20s %s\n", mark, p.Name, p.Details)
		}
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", rec)
		}
	}
	b.WriteString(strings.Repeat("=", 60) + "\n")
	return b.String()
}

// verdictStatus maps a report to a batch status.
func verdictStatus(r *models.VerificationReport) string {
	switch {
	case r == nil:
		return "error"
	case r.IsValid && (r.NameMatch == nil || r.NameMatch.Matched):
		return "success"
	case r.IsValid:
		return "warning"
	default:
		return "rejected"
	}
}
