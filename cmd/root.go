package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lanceworks/autobid-cli/internal/config"
)

var (
	cfg *config.Config

	flagQuiet   bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "autobid",
	Short: "Freelance marketplace bid automation",
	Long:  "Scrapes project listings from freelance marketplaces, deduplicates them, notifies recipients, and places LLM-generated proposals through a headless browser.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if flagQuiet {
			cfg.Log.Level = "error"
		}
		if flagVerbose {
			cfg.Log.Level = "debug"
		}
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
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only log errors")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
