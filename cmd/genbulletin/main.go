// Command genbulletin writes synthetic fixtures for local runs and tests: a
// NOAA-format 27-day outlook bulletin and, optionally, a matching model
// predictions payload covering the days after the bulletin ends. Both are
// produced and re-read through the domain package so they match what the
// service parses.
//
// Usage:
//
//	go run ./cmd/genbulletin \
//	  -start 2026-10-16 \
//	  -bulletin-out data/mock/27-day-outlook.txt \
//	  -predictions-out data/mock/predictions.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// predictionDays matches the model's output horizon.
const predictionDays = 30

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	startFlag := flag.String("start", "", "first bulletin date, YYYY-MM-DD (default: tomorrow UTC)")
	days := flag.Int("days", domain.WindowDays, "number of bulletin days")
	bulletinOut := flag.String("bulletin-out", "", "output path for the bulletin text (default: stdout)")
	predictionsOut := flag.String("predictions-out", "", "output path for a predictions JSON fixture")
	flag.Parse()

	if *days < 1 {
		return fmt.Errorf("-days must be positive")
	}

	start := domain.TomorrowUTC()
	if *startFlag != "" {
		t, ok := domain.ParseDate(*startFlag)
		if !ok {
			return fmt.Errorf("invalid -start %q", *startFlag)
		}
		start = t
	}

	// Fixed clock for reproducible issue and fetch timestamps.
	issued := start.Add(-2 * time.Hour)
	domain.SetClock(clockwork.NewFakeClockAt(issued))
	defer domain.SetClock(nil)

	rows := synthesize(start, *days, domain.SourceObserved)
	text := domain.FormatBulletin(rows, issued)

	parsed, err := domain.ParseBulletin(text)
	if err != nil {
		return fmt.Errorf("re-parse generated bulletin: %w", err)
	}
	if len(parsed) != len(rows) {
		return fmt.Errorf("re-parse generated bulletin: got %d rows, want %d", len(parsed), len(rows))
	}

	if *bulletinOut == "" {
		fmt.Print(text)
	} else {
		if err := os.WriteFile(*bulletinOut, []byte(text), 0o600); err != nil {
			return fmt.Errorf("writing bulletin: %w", err)
		}
		log.Printf("wrote bulletin: %s (%d days from %s)", *bulletinOut, len(rows), domain.FormatDate(start))
	}

	if *predictionsOut != "" {
		predicted := synthesize(domain.AddDays(rows[len(rows)-1].Date, 1), predictionDays, domain.SourcePredicted)
		if err := writeJSON(*predictionsOut, map[string]any{"predictions": predicted}); err != nil {
			return fmt.Errorf("writing predictions: %w", err)
		}
		log.Printf("wrote predictions: %s (%d days)", *predictionsOut, len(predicted))
	}
	return nil
}

// synthesize produces a smooth solar-rotation-like series: flux oscillates
// over a 27-day period and geomagnetic activity peaks once per rotation.
func synthesize(start time.Time, n int, source domain.Source) []domain.ForecastRow {
	rows := make([]domain.ForecastRow, n)
	for i := range rows {
		phase := 2 * math.Pi * float64(i) / float64(domain.WindowDays)
		a := math.Round(8 + 6*math.Max(0, math.Sin(phase)))
		rows[i] = domain.ForecastRow{
			Date:      domain.AddDays(start, i),
			RadioFlux: math.Round(150 + 25*math.Cos(phase)),
			AIndex:    a,
			KpIndex:   kpFor(a),
			Source:    source,
			FetchedAt: domain.Now().UTC(),
		}
	}
	return rows
}

// kpFor returns a Kp roughly consistent with a daily A index, rounded to thirds.
func kpFor(a float64) float64 {
	kp := 1 + math.Log2(a/4+1)
	return math.Round(kp*3) / 3
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
