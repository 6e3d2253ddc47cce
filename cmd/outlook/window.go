package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var windowStrict bool

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Print the 27-day window the API would serve",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck // exit path

		if windowStrict {
			tier, days, err := a.engine.StrictWindow(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "tier: %s\n", tier)
			return printJSON(cmd.OutOrStdout(), days)
		}

		win, err := a.engine.Window(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "tier: %s\n", win.Tier)
		return printJSON(cmd.OutOrStdout(), win.Rows)
	},
}

var combinedCmd = &cobra.Command{
	Use:   "combined",
	Short: "Print every stored observed and predicted row in date order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck // exit path

		rows, err := a.engine.Combined(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rows)
	},
}

func init() {
	windowCmd.Flags().BoolVar(&windowStrict, "strict", false, "pad to exactly 27 days, flagging missing dates")
}
