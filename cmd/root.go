package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MellowMango/apartment-search-sub005/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "faculty-pipeline",
	Short: "Faculty directory discovery and entity resolution pipeline",
	Long:  "Scrapes institutional personnel directories, extracts candidate records, enriches them from profile pages, and resolves them into a deduplicated entity graph.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
