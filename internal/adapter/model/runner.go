// Package model runs the external forecasting model and decodes its output
// into predicted rows.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
)

// stderrTail bounds how much model stderr is attached to an error.
const stderrTail = 2048

// waitDelay bounds how long Predict waits for output pipes to close after
// the model is killed.
const waitDelay = time.Second

// Runner executes the model command and reads predictions from its stdout.
// It implements reconcile.ModelRunner.
type Runner struct {
	command []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a Runner for command (program followed by arguments).
func NewRunner(command []string, timeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{command: command, timeout: timeout, logger: logger}
}

// Predict runs the model to completion and returns every row that decodes
// with a valid date. The model may print log lines around its JSON; the
// first JSON array or object on stdout is used. An object is read either as
// {"predictions": [...]} or as a single row.
//
// domain.ErrInvalidPrediction is returned when stdout holds no decodable JSON.
func (r *Runner) Predict(ctx context.Context) ([]domain.ForecastRow, error) {
	if len(r.command) == 0 {
		return nil, errors.New("model command is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.command[0], r.command[1:]...) //nolint:gosec // command comes from operator config
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	killProcessGroupOnCancel(cmd)

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("model timed out after %s: %w", r.timeout, ctx.Err())
		}
		return nil, fmt.Errorf("model exited: %w: %s", err, tail(stderr.Bytes()))
	}
	r.logger.Info("model finished", "duration", time.Since(start), "stdout_bytes", stdout.Len())

	rows, rejected, err := DecodePredictions(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	if rejected > 0 {
		r.logger.Warn("model rows dropped", "rejected", rejected, "kept", len(rows))
	}
	return rows, nil
}

// DecodePredictions extracts the first JSON array or object from out and
// decodes it with domain.DecodeRows. Every row is tagged predicted.
func DecodePredictions(out []byte) (rows []domain.ForecastRow, rejected int, err error) {
	raw, err := extractJSON(out)
	if err != nil {
		return nil, 0, err
	}
	rows, rejected, err = domain.DecodeRows(raw)
	if err != nil {
		return nil, 0, err
	}
	for i := range rows {
		rows[i].Source = domain.SourcePredicted
	}
	return rows, rejected, nil
}

// extractJSON returns the first complete JSON array or object in out.
func extractJSON(out []byte) (json.RawMessage, error) {
	for i := 0; i < len(out); i++ {
		if out[i] != '[' && out[i] != '{' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(bytes.NewReader(out[i:])).Decode(&raw); err == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: no JSON array or object in model output", domain.ErrInvalidPrediction)
}

func tail(b []byte) []byte {
	b = bytes.TrimSpace(b)
	if len(b) > stderrTail {
		return b[len(b)-stderrTail:]
	}
	return b
}
