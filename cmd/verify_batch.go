package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"idverify/internal/logger"
	"idverify/internal/review"
	"idverify/pkg/services"
)

var verifyBatchCmd = &cobra.Command{
	Use:   "verify-batch [manifest-file | folder]",
	Short: "Verify many documents in parallel and log them to the review sheet",
	Long: `Verify a batch of identity documents with a pool of parallel workers.

The argument is either a manifest file (YAML or JSON list of requests) or a
folder of images. Manifest entries look like:

  - image_path: uploads/aadhaar_1042.jpg
    role: tenant
    declared_name: Arnav Mehta
    declared_number: "1234 5678 9012"

When a folder is given every image in it is verified with --role.

Results are appended to the Google Sheet in REVIEW_SHEET_URL unless
--dry-run is set.

Environment variables:
  BATCH_WORKERS     - Number of parallel workers (default: 8)
  REVIEW_SHEET_URL  - Google Sheets URL of the manual review queue
  REVIEW_WORKSHEET  - Worksheet name (default: Verifications)
  METRICS_FILE      - Prometheus textfile written when the batch ends`,
	Example: `  # Verify a manifest and log to the review sheet
  idverify verify-batch uploads.yaml

  # Verify a folder of owner uploads without writing anywhere
  idverify verify-batch ./uploads --role owner --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runVerifyBatch,
}

// batchJob is one queued request.
type batchJob struct {
	Request services.VerificationRequest
	Index   int
}

// imageExtensions are the files picked up from a folder.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
	".gif": true, ".bmp": true, ".tif": true, ".tiff": true, ".pdf": true,
}

func init() {
	rootCmd.AddCommand(verifyBatchCmd)

	verifyBatchCmd.Flags().String("role", "", "Role for folder input and manifest entries without one")
	verifyBatchCmd.Flags().Int("workers", 0, "Number of parallel workers (default: BATCH_WORKERS)")
	verifyBatchCmd.Flags().Bool("dry-run", false, "Verify documents but don't write to the review sheet")
	verifyBatchCmd.Flags().Duration("timeout", 30*time.Minute, "Timeout for the whole batch")
	verifyBatchCmd.Flags().Bool("verbose", false, "Show detailed results per document")
}

func runVerifyBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("verify-batch")

	input := args[0]
	defaultRole, _ := cmd.Flags().GetString("role")
	workers, _ := cmd.Flags().GetInt("workers")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	verbose, _ := cmd.Flags().GetBool("verbose")

	requests, err := loadRequests(input, defaultRole)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		fmt.Println("No documents to verify.")
		return nil
	}

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	p, err := newPipeline(ctx, true, log)
	if err != nil {
		return err
	}
	defer p.Close()

	if workers <= 0 {
		workers = p.cfg.BatchWorkers
	}

	log.Info().
		Str("input", input).
		Int("documents", len(requests)).
		Int("workers", workers).
		Bool("dry_run", dryRun).
		Msg("Starting batch verification")

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("                         BATCH VERIFICATION")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Input: %s\n", input)
	if dryRun {
		fmt.Println("Mode: Dry run (no review sheet update)")
	}
	fmt.Printf("Verifying %d documents with %d parallel workers...\n\n", len(requests), workers)

	results := verifyInParallel(ctx, p.verifier, requests, workers, log, verbose)

	counts := map[string]int{}
	for _, res := range results {
		counts[resultStatus(res)]++
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 SUMMARY")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Valid: %d\n", counts["success"]+counts["warning"])
	if counts["warning"] > 0 {
		fmt.Printf("  with name mismatch: %d\n", counts["warning"])
	}
	fmt.Printf("Invalid: %d\n", counts["rejected"])
	if counts["error"] > 0 {
		fmt.Printf("Errors: %d\n", counts["error"])
	}
	fmt.Println()

	if !dryRun {
		if p.cfg.ReviewSheetURL == "" {
			return fmt.Errorf("REVIEW_SHEET_URL environment variable is required (or use --dry-run)")
		}

		fmt.Println("Writing results to the review sheet...")
		writer, err := review.NewSheetsWriter(ctx, p.cfg.ReviewSheetURL)
		if err != nil {
			return fmt.Errorf("failed to create Google Sheets writer: %w", err)
		}
		if err := writer.WriteResults(ctx, results, p.cfg.ReviewWorksheet); err != nil {
			return fmt.Errorf("failed to write to Google Sheet: %w", err)
		}
		fmt.Printf("Sheet: %s\n", p.cfg.ReviewWorksheet)
		fmt.Printf("Rows added: %d\n", len(results))
	}
	fmt.Println(strings.Repeat("=", 80))

	log.Info().
		Int("total", len(results)).
		Int("valid", counts["success"]+counts["warning"]).
		Int("invalid", counts["rejected"]).
		Int("errors", counts["error"]).
		Msg("Batch verification completed")
	return nil
}

// loadRequests reads a manifest or lists a folder. defaultRole fills
// requests without a role.
func loadRequests(input, defaultRole string) ([]services.VerificationRequest, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("input not found: %s", input)
	}

	var requests []services.VerificationRequest
	if info.IsDir() {
		if defaultRole == "" {
			return nil, fmt.Errorf("--role is required when verifying a folder")
		}
		images, err := findImageFiles(input)
		if err != nil {
			return nil, fmt.Errorf("failed to list images: %w", err)
		}
		for _, img := range images {
			requests = append(requests, services.VerificationRequest{ImagePath: img, Role: defaultRole})
		}
		return requests, nil
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	// JSON manifests parse as YAML too.
	if err := yaml.Unmarshal(data, &requests); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", input, err)
	}

	base := filepath.Dir(input)
	for i := range requests {
		if requests[i].ImagePath == "" {
			return nil, fmt.Errorf("manifest entry %d has no image_path", i+1)
		}
		if !filepath.IsAbs(requests[i].ImagePath) {
			requests[i].ImagePath = filepath.Join(base, requests[i].ImagePath)
		}
		if requests[i].Role == "" {
			if defaultRole == "" {
				return nil, fmt.Errorf("manifest entry %d has no role and --role is not set", i+1)
			}
			requests[i].Role = defaultRole
		}
	}
	return requests, nil
}

func findImageFiles(folder string) ([]string, error) {
	var images []string
	err := filepath.Walk(folder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(info.Name()))] {
			images = append(images, path)
		}
		return nil
	})
	return images, err
}

// verifyInParallel runs requests through a worker pool. Results keep the
// request order.
func verifyInParallel(ctx context.Context, verifier services.DocumentVerifier, requests []services.VerificationRequest,
	numWorkers int, log zerolog.Logger, verbose bool) []services.VerificationResult {
	jobs := make(chan batchJob, len(requests))
	results := make([]services.VerificationResult, len(requests))

	var processed int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				log.Debug().
					Int("worker", workerID).
					Str("file", job.Request.ImagePath).
					Int("index", job.Index+1).
					Msg("Worker verifying document")

				report, err := verifier.VerifyDocument(ctx, job.Request.ImagePath, job.Request.Role,
					job.Request.DeclaredName, job.Request.DeclaredNumber)
				res := services.VerificationResult{Request: job.Request, Report: report, Err: err}
				results[job.Index] = res

				mu.Lock()
				processed++
				fmt.Printf("[%d/%d] %s - %s", processed, len(requests), filepath.Base(job.Request.ImagePath),
					getStatusEmoji(resultStatus(res)))
				switch {
				case err != nil:
					fmt.Printf(" (%s)", err.Error())
				case report != nil:
					fmt.Printf(" (%s, %.0f%%)", report.DocumentType, report.PassPercentage)
				}
				fmt.Println()
				mu.Unlock()

				if verbose && report != nil {
					log.Info().
						Str("file", job.Request.ImagePath).
						Str("verification_id", report.VerificationID).
						Str("document_type", report.DocumentType).
						Bool("is_valid", report.IsValid).
						Strs("failed", report.FailedParameters()).
						Msg("Document verified")
				}
			}
		}(w)
	}

	for i, req := range requests {
		jobs <- batchJob{Request: req, Index: i}
	}
	close(jobs)

	wg.Wait()
	return results
}

func resultStatus(res services.VerificationResult) string {
	if res.Err != nil {
		return "error"
	}
	return verdictStatus(res.Report)
}

// getStatusEmoji returns an emoji for the verification status
func getStatusEmoji(status string) string {
	switch status {
	case "success":
		return "✅"
	case "warning":
		return "⚠️"
	case "rejected":
		return "❌"
	case "error":
		return "❗"
	default:
		return "❓"
	}
}
