package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-lex/pkg/lex"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a template with YAML or JSON data",
	Example: `  lex render --template page.tpl --data page.yaml
  lex render -t page.tpl -d page.json --glue : -o page.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		templatePath, _ := cmd.Flags().GetString("template")
		dataPath, _ := cmd.Flags().GetString("data")
		glue, _ := cmd.Flags().GetString("glue")
		allowRaw, _ := cmd.Flags().GetBool("allow-raw")
		outPath, _ := cmd.Flags().GetString("out")
		logLevel, _ := cmd.Flags().GetString("log-level")

		config := lex.ConfigFromEnvironment()
		if logLevel != "" {
			config.LogLevel = logLevel
		}
		if glue != "" {
			config.ScopeGlue = glue
		}
		if err := config.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		lex.SetGlobalConfig(config)

		tpl, err := os.ReadFile(templatePath)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}

		data := lex.MapValue(nil)
		if dataPath != "" {
			raw, err := os.ReadFile(dataPath)
			if err != nil {
				return fmt.Errorf("failed to read data: %w", err)
			}
			data, err = lex.DecodeYAML(raw)
			if err != nil {
				return lex.WithContext(err, "loading data", map[string]interface{}{"file": dataPath})
			}
		}

		parser := lex.NewWithConfig(config)
		out, err := parser.Parse(string(tpl), data, nil, allowRaw)
		if err != nil {
			return lex.WithContext(err, "rendering template", map[string]interface{}{
				"template": templatePath,
				"data":     dataPath,
			})
		}

		var w io.Writer = cmd.OutOrStdout()
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		_, err = io.WriteString(w, out)
		return err
	},
}

func init() {
	renderCmd.Flags().StringP("template", "t", "", "Template file to render")
	renderCmd.Flags().StringP("data", "d", "", "YAML or JSON data file")
	renderCmd.Flags().String("glue", "", "Scope glue separating path segments (default \".\")")
	renderCmd.Flags().Bool("allow-raw", false, "Do not escape <? and ?> in the template")
	renderCmd.Flags().StringP("out", "o", "", "Write output to this file instead of stdout")
	_ = renderCmd.MarkFlagRequired("template")
	rootCmd.AddCommand(renderCmd)
}
