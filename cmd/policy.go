package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"idverify/internal/config"
	"idverify/internal/logger"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show which documents each registration role may use",
	Long: `Print the active role policy: the built-in rules, or the YAML file named
by ROLE_POLICY_FILE merged over them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.WithComponent("policy")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		p, err := loadPolicy(cfg, log)
		if err != nil {
			return err
		}

		fmt.Printf("Role policy (%s)\n\n", p.Version)
		for _, role := range p.Roles() {
			rules, _ := p.Rules(role)
			allowed := make([]string, len(rules.AllowedTypes))
			for i, t := range rules.AllowedTypes {
				allowed[i] = t.DisplayName()
			}
			fmt.Printf("%s\n", role)
			fmt.Printf("  accepted:       %s\n", strings.Join(allowed, ", "))
			fmt.Printf("  min confidence: %.2f (advisory)\n", rules.MinConfidence)
			if rules.Guidance != "" {
				fmt.Printf("  guidance:       %s\n", rules.Guidance)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
}
