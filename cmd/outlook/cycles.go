package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/solar-outlook-service/internal/adapter/noaa"
	"github.com/couchcryptid/solar-outlook-service/internal/domain"
	"github.com/couchcryptid/solar-outlook-service/internal/reconcile"
	"github.com/spf13/cobra"
)

var refreshFile string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the NOAA bulletin once and reconcile the observed rows",
	Long: `Refresh fetches the bulletin from BULLETIN_URL and reconciles the observed rows.

With --file the bulletin text is read from a local file ("-" for stdin)
instead, for example one written by genbulletin or saved from SWPC.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var bulletin reconcile.BulletinSource
		if refreshFile != "" {
			bulletin = noaa.NewFileSource(refreshFile, cmd.InOrStdin(), slog.Default())
		}
		a, err := newApp(cmd.Context(), bulletin)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck // exit path

		res, err := a.engine.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"parsed":     res.Parsed,
			"upserted":   res.Upserted,
			"deleted":    res.Deleted,
			"first_date": domain.FormatDate(res.FirstDate),
			"last_date":  domain.FormatDate(res.LastDate),
		})
	},
}

var predictFile string

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Merge model predictions into the store",
	Long: `Predict merges predicted rows dated after the latest observed date.

Without --file the configured MODEL_COMMAND is run. With --file the
predictions are read from a JSON file ("-" for stdin) holding an array,
a {"predictions": [...]} object, or a single row.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck // exit path

		var res reconcile.MergeResult
		if predictFile == "" {
			res, err = a.engine.RunModel(cmd.Context())
		} else {
			res, err = ingestFile(cmd, a.engine, predictFile)
		}
		if err != nil {
			return err
		}

		out := map[string]any{
			"received": res.Received,
			"rejected": res.Rejected,
			"accepted": res.Accepted,
			"upserted": res.Upserted,
			"deleted":  res.Deleted,
			"skipped":  res.Skipped,
		}
		if !res.Boundary.IsZero() {
			out["boundary"] = domain.FormatDate(res.Boundary)
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	refreshCmd.Flags().StringVarP(&refreshFile, "file", "f", "", "read the bulletin from a text file instead of BULLETIN_URL")
	predictCmd.Flags().StringVarP(&predictFile, "file", "f", "", "read predictions from a JSON file instead of running the model")
}

func ingestFile(cmd *cobra.Command, engine *reconcile.Engine, path string) (reconcile.MergeResult, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // operator-supplied path
	}
	if err != nil {
		return reconcile.MergeResult{}, fmt.Errorf("read predictions: %w", err)
	}

	rows, rejected, err := domain.DecodeRows(data)
	if err != nil {
		return reconcile.MergeResult{}, err
	}
	res, err := engine.IngestPredictions(cmd.Context(), rows)
	res.Received += rejected
	res.Rejected += rejected
	return res, err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
