package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/config"
	"github.com/sells-group/catalog-cli/internal/schema"
	"github.com/sells-group/catalog-cli/internal/tabular"
)

var (
	schemaCSV string
	schemaOut string
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Infer the attribute schema of a tabular file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSchema(cmd.Context(), cmd.OutOrStdout(), cfg, schemaCSV, schemaOut)
	},
}

// runSchema writes the schema to outPath, or to w when outPath is empty.
func runSchema(ctx context.Context, w io.Writer, c *config.Config, csvPath, outPath string) error {
	table, err := tabular.Read(ctx, csvPath, tabular.CSVOptions{
		Delimiter: c.CSVDelimiterRune(),
		Encodings: c.Pipeline.Encodings,
	}, c.XLSXSheet())
	if err != nil {
		return eris.Wrap(err, "schema: read input")
	}

	rows := make([][]string, len(table.Rows))
	for i, r := range table.Rows {
		rows[i] = r.Values
	}
	attrs := schema.NewInferencer(
		schema.WithEnumMaxValues(c.Schema.EnumMaxValues),
		schema.WithEnumMaxFraction(c.Schema.EnumMaxFraction),
		schema.WithDocumentColumns(c.Schema.DocumentColumns),
		schema.WithDateFormats(c.Pipeline.DateFormats),
	).Infer(table.Header, rows)

	if outPath == "" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(attrs)
	}
	if err := tabular.WriteJSONAtomic(outPath, attrs); err != nil {
		return eris.Wrap(err, "schema: write")
	}
	zap.L().Info("schema written",
		zap.String("path", outPath),
		zap.Int("columns", len(attrs)),
		zap.Strings("filterable", attrs.Filterable()),
	)
	return nil
}

func init() {
	schemaCmd.Flags().StringVar(&schemaCSV, "csv", "", "path to the CSV or XLSX file (required)")
	schemaCmd.Flags().StringVar(&schemaOut, "out", "", "output JSON path (default stdout)")
	_ = schemaCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(schemaCmd)
}
