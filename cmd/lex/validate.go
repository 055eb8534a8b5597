package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-lex/pkg/lex"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a template for unbalanced conditionals and bad expressions",
	Example: `  lex validate --template page.tpl
  lex validate -t page.tpl --refs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		templatePath, _ := cmd.Flags().GetString("template")
		glue, _ := cmd.Flags().GetString("glue")
		maxIssues, _ := cmd.Flags().GetInt("max-issues")
		showRefs, _ := cmd.Flags().GetBool("refs")

		config := lex.ConfigFromEnvironment()
		if glue != "" {
			config.ScopeGlue = glue
		}
		if err := config.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		tpl, err := os.ReadFile(templatePath)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}

		parser := lex.NewWithConfig(config)
		result, err := parser.ValidateTemplate(string(tpl), maxIssues)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, issue := range result.Issues {
			fmt.Fprintf(out, "%s:%d:%d: %s %s: %s\n", templatePath,
				issue.Location.Line, issue.Location.Column, issue.Severity, issue.Code, issue.Message)
		}
		if result.IssuesTruncated {
			fmt.Fprintf(out, "... %d more\n", result.Summary.ErrorCount+result.Summary.WarningCount-result.Summary.ReturnedIssueCount)
		}

		if showRefs {
			for _, ref := range parser.ExtractReferences(string(tpl)) {
				fmt.Fprintf(out, "%s:%d:%d: %s %s\n", templatePath, ref.Location.Line, ref.Location.Column, ref.Kind, ref.Name)
			}
		}

		if !result.Valid {
			return fmt.Errorf("%s: %d error(s), %d warning(s)", templatePath, result.Summary.ErrorCount, result.Summary.WarningCount)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringP("template", "t", "", "Template file to check")
	validateCmd.Flags().String("glue", "", "Scope glue separating path segments (default \".\")")
	validateCmd.Flags().Int("max-issues", 0, "Report at most this many issues (0 = all)")
	validateCmd.Flags().Bool("refs", false, "Also list the names the template refers to")
	_ = validateCmd.MarkFlagRequired("template")
	rootCmd.AddCommand(validateCmd)
}
