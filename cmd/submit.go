package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lanceworks/autobid-cli/internal/faults"
)

var (
	submitPostingID string
	submitUserID    string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Generate and place a proposal on a stored posting",
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

		b := initBrowser()
		defer b.Close()

		submission, err := initSubmission(b, st, reg)
		if err != nil {
			return err
		}

		attempt, err := submission.Submit(ctx, submitUserID, submitPostingID)
		if err != nil {
			if eris.Is(err, faults.ErrDuplicateAttempt) {
				cmd.Println("a proposal was already submitted for this posting")
				return nil
			}
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(attempt)
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitPostingID, "posting", "", "stored posting ID (required)")
	submitCmd.Flags().StringVar(&submitUserID, "user", "", "user ID owning the platform credential (required)")
	_ = submitCmd.MarkFlagRequired("posting")
	_ = submitCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(submitCmd)
}
