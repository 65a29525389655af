package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/config"
)

var (
	cfg   *config.Config
	sheet string
)

var rootCmd = &cobra.Command{
	Use:   "catalog-cli",
	Short: "Product catalog normalization pipeline",
	Long:  "Maps vendor catalog exports onto a canonical schema, groups variants into products, imports them into a relational store and builds a vector index with an attribute schema.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		if cmd.Flags().Changed("sheet") {
			cfg.Pipeline.Sheet = sheet
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sheet, "sheet", "", "worksheet name to read from XLSX inputs (default: first sheet)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
