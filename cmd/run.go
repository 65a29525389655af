package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/config"
	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/pipeline"
)

var (
	runInput       string
	runConfig      string
	runDeduplicate bool
	runSkipDB      bool
	runSkipChroma  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full catalog pipeline for one input file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		opts := pipeline.Options{
			Deduplicate: runDeduplicate,
			SkipDB:      runSkipDB,
			SkipChroma:  runSkipChroma,
		}
		if err := cfg.Validate(config.RunMode{SkipDB: opts.SkipDB, SkipChroma: opts.SkipChroma}); err != nil {
			return err
		}

		p := pipeline.New(cfg, pipeline.NewDeps(cfg))
		result, err := p.Run(ctx, runInput, runConfig, opts)
		if result != nil {
			zap.L().Info("catalog run complete",
				zap.String("run_id", result.RunID),
				zap.Int("normalized_rows", result.NormalizedRows),
				zap.Int("unique_products", result.UniqueProducts),
				zap.Int("rejected", len(result.Rejected)),
			)
			if werr := writeRunResult(cmd.OutOrStdout(), result); werr != nil {
				return werr
			}
		}
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}
		return nil
	},
}

// writeRunResult prints the run summary as indented JSON.
func writeRunResult(w io.Writer, result *model.PipelineResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "path to the vendor CSV or XLSX file (required)")
	runCmd.Flags().StringVar(&runConfig, "config", "", "path to the normalization config JSON (required)")
	runCmd.Flags().BoolVar(&runDeduplicate, "deduplicate", false, "group variants into unique products")
	runCmd.Flags().BoolVar(&runSkipDB, "skip-db", false, "skip the relational import")
	runCmd.Flags().BoolVar(&runSkipChroma, "skip-chroma", false, "skip schema inference and vector indexing")
	_ = runCmd.MarkFlagRequired("input")
	_ = runCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(runCmd)
}
