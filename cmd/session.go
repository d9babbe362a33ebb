package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	sessionUserID   string
	sessionPlatform string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Validate or refresh the stored session for a platform",
	Long:  "Injects the persisted cookie session and probes an authenticated page. Falls back to a credential login and persists the fresh session when validation fails.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		reg, _, err := initRegistry()
		if err != nil {
			return err
		}
		strat, err := reg.Get(sessionPlatform)
		if err != nil {
			return err
		}

		b := initBrowser()
		defer b.Close()

		page, err := b.NewPage(ctx)
		if err != nil {
			return err
		}
		defer page.Close()

		mgr := initSessionManager(st)
		if err := mgr.EnsureValid(ctx, page, sessionUserID, strat); err != nil {
			return err
		}

		zap.L().Info("session is valid",
			zap.String("platform", sessionPlatform),
			zap.String("user_id", sessionUserID),
		)
		cmd.Println("session OK")
		return nil
	},
}

func init() {
	sessionCmd.Flags().StringVar(&sessionUserID, "user", "", "user ID owning the platform credential (required)")
	sessionCmd.Flags().StringVar(&sessionPlatform, "platform", "", "platform name (required)")
	_ = sessionCmd.MarkFlagRequired("user")
	_ = sessionCmd.MarkFlagRequired("platform")
	rootCmd.AddCommand(sessionCmd)
}
