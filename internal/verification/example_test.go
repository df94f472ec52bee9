package verification_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"idverify/internal/ocr"
	"idverify/internal/policy"
	"idverify/internal/verification"
)

// Example verifies text that was already transcribed.
func Example() {
	svc := verification.NewService(nil, verification.Config{Policy: policy.Default()})

	text := "Government of India\nUnique Identification Authority of India\nAadhaar\nArnav Mehta\nDate of Birth: 01/01/1995\nAadhaar No: 1234 5678 9012"
	report, err := svc.VerifyText(context.Background(), text, "tenant", "Arnav Mehta", "1234 5678 9012")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s valid=%t (%.0f%%)\n", report.DocumentType, report.IsValid, report.PassPercentage)
	for _, p := range report.Parameters {
		fmt.Printf("  %-20s %t\n", p.Name, p.Passed)
	}
	fmt.Printf("name: %s (%s)\n", report.ExtractedName, report.NameMatch.Method)
	// Output:
	// AADHAAR valid=true (100%)
	//   Keyword Presence     true
	//   Document Number      true
	//   Format Validity      true
	//   Name Extraction      true
	//   Pattern Recognition  true
	// name: Arnav Mehta (exact)
}

// ExampleService_VerifyDocument wires a hybrid OCR provider into the pipeline.
func ExampleService_VerifyDocument() {
	ctx := context.Background()

	vision, err := ocr.NewGoogleVisionService(ctx)
	if err != nil {
		log.Fatalf("Failed to create OCR service: %v", err)
	}
	fallback, err := ocr.NewOpenAIVisionService(ocr.OpenAIConfig{APIKey: os.Getenv("OPENAI_API_KEY")})
	if err != nil {
		log.Fatalf("Failed to create fallback OCR service: %v", err)
	}
	hybrid := ocr.NewHybridExtractor(vision, fallback, ocr.DefaultFallbackThreshold)
	defer hybrid.Close()

	svc := verification.NewService(hybrid, verification.Config{})
	report, err := svc.VerifyDocument(ctx, "pan_card.jpg", "owner", "Rahul Sharma", "ABCDE1234F")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s: %s\n", report.DocumentType, report.Message)
	for _, rec := range report.Recommendations {
		fmt.Printf("  - %s\n", rec)
	}
}
