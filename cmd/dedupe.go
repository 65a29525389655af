package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-cli/internal/config"
	"github.com/sells-group/catalog-cli/internal/dedupe"
	"github.com/sells-group/catalog-cli/internal/normalize"
	"github.com/sells-group/catalog-cli/internal/registry"
	"github.com/sells-group/catalog-cli/internal/tabular"
)

var (
	dedupeInput  string
	dedupeConfig string
	dedupeOut    string
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Group a normalized file's variants into unique products",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDedupe(cmd.Context(), cmd.OutOrStdout(), cfg, dedupeInput, dedupeConfig, dedupeOut)
	},
}

// runDedupe reads a file written by the normalize stage. Its header holds the
// canonical field names, so the config is applied with identity aliases.
func runDedupe(ctx context.Context, w io.Writer, c *config.Config, inputPath, configPath, outPath string) error {
	ncfg, err := registry.LoadNormalizationConfig(configPath)
	if err != nil {
		return err
	}
	identity := ncfg.Identity()

	table, err := tabular.Read(ctx, inputPath, tabular.CSVOptions{Delimiter: c.CSVDelimiterRune()}, c.XLSXSheet())
	if err != nil {
		return eris.Wrap(err, "dedupe: read input")
	}
	validation, err := registry.Validate(identity, table.Header)
	if err != nil {
		return err
	}
	norm, err := normalize.New(
		normalize.WithWorkers(c.Pipeline.Workers),
		normalize.WithDateFormats(c.Pipeline.DateFormats),
	).Normalize(ctx, table.Rows, identity, validation)
	if err != nil {
		return err
	}

	vocab, err := dedupe.LoadVocabulary(c.Vocabulary.Path)
	if err != nil {
		return err
	}
	if c.Vocabulary.StripColors {
		vocab.StripColors = true
	}
	res, err := dedupe.New(
		dedupe.WithVocabulary(vocab),
		dedupe.WithWorkers(c.Pipeline.Workers),
	).Deduplicate(ctx, norm.Records)
	if err != nil {
		return err
	}

	header, rows := dedupe.Table(res.Products, identity, c.Pipeline.ArrayDelimiter)
	if err := tabular.WriteCSVAtomic(outPath, header, rows); err != nil {
		return eris.Wrap(err, "dedupe: write output")
	}

	fmt.Fprintf(w, "%d variants -> %d products (%d rejected) written to %s\n",
		len(norm.Records), len(res.Products), len(norm.Rejected)+len(res.Rejected), outPath)
	return nil
}

func init() {
	dedupeCmd.Flags().StringVar(&dedupeInput, "input", "", "path to a normalized CSV (required)")
	dedupeCmd.Flags().StringVar(&dedupeConfig, "config", "", "path to the normalization config JSON (required)")
	dedupeCmd.Flags().StringVar(&dedupeOut, "out", "unique_products.csv", "output CSV path")
	_ = dedupeCmd.MarkFlagRequired("input")
	_ = dedupeCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(dedupeCmd)
}
