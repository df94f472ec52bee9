package ocr_test

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"idverify/internal/ocr"
)

// Example demonstrates basic usage of the Vision OCR provider.
func Example() {
	// Load .env file (using godotenv in main)
	// This should be done in your main() function:
	//
	// if err := godotenv.Load(); err != nil {
	//     log.Printf("Warning: Could not load .env file: %v", err)
	// }

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Credentials are read from GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS
	vision, err := ocr.NewGoogleVisionService(ctx)
	if err != nil {
		log.Fatalf("Failed to create OCR service: %v", err)
	}
	defer vision.Close()

	result, err := vision.ExtractText(ctx, "aadhaar_front.jpg")
	if err != nil {
		log.Fatalf("Failed to extract text: %v", err)
	}

	fmt.Printf("OCR Results:\n")
	fmt.Printf("  Provider: %s\n", result.Provider)
	fmt.Printf("  Confidence: %.2f%%\n", result.Confidence*100)
	fmt.Printf("  Words: %d\n", len(result.Words))
	fmt.Printf("  Languages: %s\n", strings.Join(result.LanguageCodes, ", "))
	fmt.Printf("  Processing time: %v\n", result.ProcessingDuration)
	fmt.Printf("\nExtracted text:\n%s\n", result.Text)
}

// ExampleHybridExtractor shows Vision backed by a vision model for blurry photos.
func ExampleHybridExtractor() {
	ctx := context.Background()

	vision, err := ocr.NewGoogleVisionService(ctx)
	if err != nil {
		log.Fatalf("Failed to create Vision service: %v", err)
	}

	model, err := ocr.NewOpenAIVisionService(ocr.OpenAIConfig{APIKey: "sk-...", Model: "gpt-4o-mini"})
	if err != nil {
		log.Fatalf("Failed to create OpenAI service: %v", err)
	}

	hybrid := ocr.NewHybridExtractor(vision, model, ocr.DefaultFallbackThreshold)
	defer hybrid.Close()

	result, err := hybrid.ExtractText(ctx, "blurry_pan_card.jpg")
	if err != nil {
		log.Fatalf("OCR failed: %v", err)
	}
	fmt.Printf("%s (%.2f)\n", result.Provider, result.Confidence)
}

// ExampleCachedExtractor caches Vision results in Redis for a day.
func ExampleCachedExtractor() {
	ctx := context.Background()

	client, err := ocr.NewRedisClient(ctx, "redis://localhost:6379/0")
	if err != nil {
		log.Fatalf("Redis unavailable: %v", err)
	}
	defer client.Close()

	vision, err := ocr.NewGoogleVisionService(ctx)
	if err != nil {
		log.Fatalf("Failed to create Vision service: %v", err)
	}

	cached := ocr.NewCachedExtractor(vision, vision.Name(), client, 24*time.Hour)
	defer cached.Close()

	result, err := cached.ExtractText(ctx, "passport.png")
	if err != nil {
		log.Fatalf("OCR failed: %v", err)
	}
	fmt.Println(len(result.Text))
}
