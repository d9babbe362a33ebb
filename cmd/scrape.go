package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	scrapePlatforms []string
	scrapeNoNotify  bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one discovery cycle across the enabled platforms",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(scrapePlatforms) > 0 {
			cfg.Platforms.Enabled = scrapePlatforms
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		_, strategies, err := initRegistry()
		if err != nil {
			return err
		}

		b := initBrowser()
		defer b.Close()

		discovery := initDiscovery(ctx, b, st, strategies, !scrapeNoNotify)

		stats, err := discovery.RunCycle(ctx)
		if err != nil {
			return eris.Wrap(err, "discovery cycle")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	scrapeCmd.Flags().StringSliceVar(&scrapePlatforms, "platforms", nil, "platforms to scrape (default: configured set)")
	scrapeCmd.Flags().BoolVar(&scrapeNoNotify, "no-notify", false, "skip the notification digest")
	rootCmd.AddCommand(scrapeCmd)
}
