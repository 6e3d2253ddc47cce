package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	dataLinePattern = regexp.MustCompile(`^\d{4}\s+[A-Za-z]{3}\s+\d{1,2}\s+`)
	numericPattern  = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// ParseBulletin extracts daily rows from the text of a 27-day outlook.
//
// Lines are trimmed after replacing non-breaking spaces. A line is data only
// if it starts with "<yyyy> <Mon> <d>" and has more tokens after the day; the
// first three numeric tokens after the date become RadioFlux, AIndex and
// KpIndex. Lines with an unparseable date or fewer than three numeric tokens
// are skipped. When a date appears twice the later line wins. Rows come back
// in ascending date order with Source set to SourceObserved.
//
// ErrEmptyBulletin is returned when no line qualifies.
func ParseBulletin(text string) ([]ForecastRow, error) {
	byDate := make(map[int64]ForecastRow)
	for _, line := range strings.Split(text, "\n") {
		row, ok := parseBulletinLine(line)
		if !ok {
			continue
		}
		byDate[row.Date.Unix()] = row
	}
	if len(byDate) == 0 {
		return nil, ErrEmptyBulletin
	}

	rows := make([]ForecastRow, 0, len(byDate))
	for _, row := range byDate {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}

func parseBulletinLine(line string) (ForecastRow, bool) {
	line = strings.TrimSpace(strings.ReplaceAll(line, "\u00a0", " "))
	if !dataLinePattern.MatchString(line) {
		return ForecastRow{}, false
	}
	fields := strings.Fields(line)
	date, ok := ParseDate(strings.Join(fields[:3], " "))
	if !ok {
		return ForecastRow{}, false
	}

	values := make([]float64, 0, 3)
	for _, tok := range fields[3:] {
		if !numericPattern.MatchString(tok) {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			continue
		}
		values = append(values, v)
		if len(values) == 3 {
			break
		}
	}
	if len(values) < 3 {
		return ForecastRow{}, false
	}

	return ForecastRow{
		Date:      date,
		RadioFlux: values[0],
		AIndex:    values[1],
		KpIndex:   values[2],
		Source:    SourceObserved,
	}, true
}

// FormatBulletin renders rows in the SWPC table layout. ParseBulletin reads
// the output back to the same rows for finite values.
func FormatBulletin(rows []ForecastRow, issued time.Time) string {
	issued = issued.UTC()
	var b strings.Builder
	b.WriteString(":Product: 27-day Space Weather Outlook Table 27DO.txt\n")
	fmt.Fprintf(&b, ":Issued: %s UTC\n", issued.Format("2006 Jan 02 1504"))
	b.WriteString("# Prepared by the US Dept. of Commerce, NOAA, Space Weather Prediction Center\n")
	b.WriteString("# Product description and SWPC contact on the Web\n")
	b.WriteString("# https://www.swpc.noaa.gov/content/subscription-services\n")
	b.WriteString("#\n")
	b.WriteString("#      27-day Space Weather Outlook Table\n")
	fmt.Fprintf(&b, "#                Issued %s\n", issued.Format(DateLayout))
	b.WriteString("#\n")
	b.WriteString("#   UTC      Radio Flux   Planetary   Largest\n")
	b.WriteString("#  Date       10.7 cm      A Index    Kp Index\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s  %10s  %10s  %9s\n",
			NormalizeDate(r.Date).Format("2006 Jan 02"),
			formatValue(r.RadioFlux), formatValue(r.AIndex), formatValue(r.KpIndex))
	}
	return b.String()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
