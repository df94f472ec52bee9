package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"idverify/internal/document"
	"idverify/internal/fuzzy"
	"idverify/internal/logger"
	"idverify/internal/names"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [text-file | -]",
	Short: "Classify transcribed document text and show what would be extracted",
	Long: `Score transcribed text against every document signature and show the
document number and name candidates the verifier would extract. No OCR
provider is contacted; use "-" to read from stdin.`,
	Example: `  idverify ocr pan.jpg | idverify classify -
  idverify classify scan.txt --name "Rahul Sharma"`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

var matchCmd = &cobra.Command{
	Use:   "match [extracted-name] [declared-name]",
	Short: "Compare two names the way the verifier does",
	Example: `  idverify match "Amav Mehta" "Arnav Mehta"`,
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		res := fuzzy.CompareNames(args[0], args[1])
		fmt.Printf("match=%t similarity=%.3f method=%s\n", res.Match, res.Similarity, res.Method)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(matchCmd)

	classifyCmd.Flags().String("name", "", "Declared name used as extraction hint and for matching")
}

func runClassify(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("classify")
	hint, _ := cmd.Flags().GetString("name")

	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read text: %w", err)
	}
	text := string(data)

	cls := document.Classify(text)
	log.Debug().Str("type", string(cls.Type)).Float64("confidence", cls.Confidence).Msg("Text classified")

	fmt.Printf("Type: %s (%s)\n", cls.Type, cls.Type.DisplayName())
	fmt.Printf("Confidence: %.2f (threshold %.2f)\n\n", cls.Confidence, document.ClassificationThreshold)

	types := make([]document.DocumentType, 0, len(cls.Scores))
	for t := range cls.Scores {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return cls.Scores[types[i]] > cls.Scores[types[j]] })
	fmt.Println("Scores:")
	for _, t := range types {
		sig, _ := document.Lookup(t)
		fmt.Printf("  %-16s %.2f  keywords: %s\n", t, cls.Scores[t], strings.Join(document.KeywordsFound(sig, text), ", "))
	}

	if num := document.ExtractNumber(text, cls.Type); num != nil {
		fmt.Printf("\nNumber: %s (%s pattern, format valid: %t)\n", num.Value, num.Source, num.FormatValid)
	}

	candidates := names.NewExtractor(names.DefaultConfig()).Candidates(text, hint)
	if len(candidates) > 0 {
		fmt.Println("\nName candidates:")
		for _, c := range candidates {
			line := fmt.Sprintf("  %-18s %s", c.Source, c.Text)
			if hint != "" {
				res := fuzzy.CompareNames(c.Text, hint)
				line += fmt.Sprintf("  (match=%t %.2f %s)", res.Match, res.Similarity, res.Method)
			}
			fmt.Println(line)
		}
	}
	return nil
}
