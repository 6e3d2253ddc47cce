package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "outlook",
	Short: "NOAA 27-day solar outlook reconciliation service",
	Long: `Outlook keeps a 27-day forecast of F10.7 radio flux, planetary A index and
maximum Kp built from the official NOAA SWPC bulletin and an optional
forecasting model.

COMMANDS:

  serve      run the HTTP API and the daily schedules
  refresh    fetch the bulletin once and reconcile the store
  predict    merge model predictions (run the model or read a file)
  window     print the served 27-day window
  combined   print every stored observed and predicted row

Configuration comes from environment variables; a .env file is loaded
first when present.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil {
			if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file") {
				return nil
			}
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.AddCommand(serveCmd, refreshCmd, predictCmd, windowCmd, combinedCmd)
}
