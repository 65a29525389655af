package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-cli/internal/config"
	"github.com/sells-group/catalog-cli/internal/registry"
	"github.com/sells-group/catalog-cli/internal/tabular"
)

var (
	validateInput  string
	validateConfig string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a normalization config against an input file's header",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runValidate(cmd.Context(), cmd.OutOrStdout(), cfg, validateInput, validateConfig)
	},
}

func runValidate(ctx context.Context, w io.Writer, c *config.Config, inputPath, configPath string) error {
	ncfg, err := registry.LoadNormalizationConfig(configPath)
	if err != nil {
		return err
	}
	table, err := tabular.Read(ctx, inputPath, tabular.CSVOptions{
		Delimiter: c.CSVDelimiterRune(),
		Encodings: c.Pipeline.Encodings,
	}, c.XLSXSheet())
	if err != nil {
		return eris.Wrap(err, "validate: read input")
	}
	res, err := registry.Validate(ncfg, table.Header)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d rows, encoding %s\n", inputPath, len(table.Rows), table.Encoding)
	critical := make([]string, 0, len(ncfg.Critical()))
	for _, f := range ncfg.Critical() {
		critical = append(critical, f.Name)
	}
	fmt.Fprintf(w, "critical fields: %s\n", strings.Join(critical, ", "))
	for _, r := range res.Resolutions {
		cols := make([]string, 0, len(r.Columns))
		for _, i := range r.Columns {
			cols = append(cols, table.Header[i])
		}
		if len(cols) == 0 {
			cols = append(cols, "-")
		}
		fmt.Fprintf(w, "  %-20s <- %s\n", r.Field, strings.Join(cols, ", "))
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	return nil
}

func init() {
	validateCmd.Flags().StringVar(&validateInput, "input", "", "path to the vendor CSV or XLSX file (required)")
	validateCmd.Flags().StringVar(&validateConfig, "config", "", "path to the normalization config JSON (required)")
	_ = validateCmd.MarkFlagRequired("input")
	_ = validateCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(validateCmd)
}
