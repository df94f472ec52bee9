package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"idverify/internal/logger"
	"idverify/internal/ocr"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [image-file]",
	Short: "Extract text from a document photo with the configured OCR provider",
	Long: `Run the configured OCR chain on an image and print the transcription.

Useful for checking what the verifier sees before scoring. The provider chain
follows OCR_PROVIDER, OCR_SECONDARY_PROVIDER and REDIS_URL exactly as the
verify command does.`,
	Example: `  # Print the text
  idverify ocr aadhaar.jpg

  # Metadata and word boxes as JSON
  idverify ocr aadhaar.jpg --json --words -o aadhaar.json`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().BoolP("metadata", "m", false, "Include metadata in text output")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().Bool("words", false, "Include word boxes in JSON output")
	ocrCmd.Flags().Duration("timeout", 2*time.Minute, "Processing timeout")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	includeMetadata, _ := cmd.Flags().GetBool("metadata")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	includeWords, _ := cmd.Flags().GetBool("words")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	imagePath := args[0]
	log.Info().
		Str("file", imagePath).
		Bool("json", jsonOutput).
		Dur("timeout", timeout).
		Msg("Starting OCR processing")

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	p, err := newPipeline(ctx, true, log)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.ocr.ExtractText(ctx, imagePath)
	if err != nil {
		return handleOCRError(err, log)
	}

	log.Info().
		Str("provider", result.Provider).
		Float64("confidence", result.Confidence).
		Int("words", len(result.Words)).
		Dur("duration", result.ProcessingDuration).
		Msg("OCR processing completed")

	var data []byte
	switch {
	case jsonOutput:
		out := *result
		if !includeWords {
			out.Words = nil
		}
		data, err = json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		data = append(data, '\n')
	case includeMetadata:
		data = []byte(formatExtraction(imagePath, result))
	default:
		data = []byte(result.Text + "\n")
	}

	if outputPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().Str("output_file", outputPath).Int("bytes", len(data)).Msg("OCR results written to file")
	return nil
}

func formatExtraction(imagePath string, result *ocr.Extraction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== OCR Results for %s ===\n", filepath.Base(imagePath))
	fmt.Fprintf(&b, "Provider: %s\n", result.Provider)
	fmt.Fprintf(&b, "Confidence: %.1f%%\n", result.Confidence*100)
	if result.PageWidth > 0 {
		fmt.Fprintf(&b, "Page: %dx%d\n", result.PageWidth, result.PageHeight)
	}
	if len(result.Words) > 0 {
		fmt.Fprintf(&b, "Words: %d\n", len(result.Words))
	}
	if len(result.LanguageCodes) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(result.LanguageCodes, ", "))
	}
	fmt.Fprintf(&b, "Processing time: %v\n", result.ProcessingDuration)
	fmt.Fprintf(&b, "Processed at: %s\n", result.ProcessedAt.Format(time.RFC3339))
	b.WriteString("\n=== Extracted Text ===\n\n")
	b.WriteString(result.Text)
	b.WriteString("\n")
	return b.String()
}
