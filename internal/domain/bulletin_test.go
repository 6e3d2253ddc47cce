package domain

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBulletin = `:Product: 27-day Space Weather Outlook Table 27DO.txt
:Issued: 2025 Jun 02 0125 UTC
# Prepared by the US Dept. of Commerce, NOAA, Space Weather Prediction Center
# Product description and SWPC contact on the Web
# https://www.swpc.noaa.gov/content/subscription-services
#
#      27-day Space Weather Outlook Table
#                Issued 2025-06-02
#
#   UTC      Radio Flux   Planetary   Largest
#  Date       10.7 cm      A Index    Kp Index
2025 Jun 02     150           5          2
2025 Jun 03     145          12          4
2025 Jun 04     140           8          3
`

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseBulletin(t *testing.T) {
	t.Run("sample issue", func(t *testing.T) {
		rows, err := ParseBulletin(sampleBulletin)
		require.NoError(t, err)
		want := []ForecastRow{
			{Date: date(2025, 6, 2), RadioFlux: 150, AIndex: 5, KpIndex: 2, Source: SourceObserved},
			{Date: date(2025, 6, 3), RadioFlux: 145, AIndex: 12, KpIndex: 4, Source: SourceObserved},
			{Date: date(2025, 6, 4), RadioFlux: 140, AIndex: 8, KpIndex: 3, Source: SourceObserved},
		}
		if diff := cmp.Diff(want, rows); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("header only", func(t *testing.T) {
		_, err := ParseBulletin("RADIO FLUX   A    KP\n:Issued: 2025 Jun 02 0125 UTC\n")
		assert.ErrorIs(t, err, ErrEmptyBulletin)
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := ParseBulletin("")
		assert.ErrorIs(t, err, ErrEmptyBulletin)
	})

	t.Run("later duplicate wins", func(t *testing.T) {
		rows, err := ParseBulletin("2025 Jun 01 150 5 2\n2025 Jun 01 160 7 3\n")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 160.0, rows[0].RadioFlux)
		assert.Equal(t, 7.0, rows[0].AIndex)
		assert.Equal(t, 3.0, rows[0].KpIndex)
	})

	t.Run("out of order input is sorted", func(t *testing.T) {
		rows, err := ParseBulletin("2025 Jun 05 150 5 2\n2025 Jun 03 151 5 2\n2025 Jun 04 152 5 2\n")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, date(2025, 6, 3), rows[0].Date)
		assert.Equal(t, date(2025, 6, 4), rows[1].Date)
		assert.Equal(t, date(2025, 6, 5), rows[2].Date)
	})

	t.Run("non-numeric tokens are skipped", func(t *testing.T) {
		rows, err := ParseBulletin("2025 Jun 01 150 * 5 est 2 99\n")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 150.0, rows[0].RadioFlux)
		assert.Equal(t, 5.0, rows[0].AIndex)
		assert.Equal(t, 2.0, rows[0].KpIndex)
	})

	t.Run("decimals and negatives", func(t *testing.T) {
		rows, err := ParseBulletin("2025 Jun 01 150.5 -3 2.67\n")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 150.5, rows[0].RadioFlux)
		assert.Equal(t, -3.0, rows[0].AIndex)
		assert.Equal(t, 2.67, rows[0].KpIndex)
	})

	t.Run("fewer than three numbers", func(t *testing.T) {
		_, err := ParseBulletin("2025 Jun 01 150 5\n")
		assert.ErrorIs(t, err, ErrEmptyBulletin)
	})

	t.Run("date without values", func(t *testing.T) {
		_, err := ParseBulletin("2025 Jun 01\n")
		assert.ErrorIs(t, err, ErrEmptyBulletin)
	})

	t.Run("invalid calendar date", func(t *testing.T) {
		rows, err := ParseBulletin("2025 Feb 30 150 5 2\n2025 Mar 01 151 6 3\n")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, date(2025, 3, 1), rows[0].Date)
	})

	t.Run("non-breaking spaces and CRLF", func(t *testing.T) {
		rows, err := ParseBulletin("\u00a0 2025 Jun 01\u00a0150\u00a05 2\r\n2025 jun 2 151 6 3\r\n")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, date(2025, 6, 1), rows[0].Date)
		assert.Equal(t, date(2025, 6, 2), rows[1].Date)
	})

	t.Run("dates are UTC midnight", func(t *testing.T) {
		rows, err := ParseBulletin(sampleBulletin)
		require.NoError(t, err)
		for _, r := range rows {
			assert.Equal(t, time.UTC, r.Date.Location())
			assert.Equal(t, r.Date, NormalizeDate(r.Date))
		}
	})
}

func TestParseBulletin_FullIssue(t *testing.T) {
	start := date(2025, 6, 2)
	var b strings.Builder
	b.WriteString(":Product: 27-day Space Weather Outlook Table 27DO.txt\n#   UTC      Radio Flux   Planetary   Largest\n")
	for i := range 27 {
		fmt.Fprintf(&b, "%s     %d     %d     %d\n", AddDays(start, i).Format("2006 Jan 02"), 130+i, 5+i%4, 2+i%3)
	}

	rows, err := ParseBulletin(b.String())
	require.NoError(t, err)
	require.Len(t, rows, 27)
	assert.Equal(t, start, rows[0].Date)
	assert.Equal(t, AddDays(start, 26), rows[26].Date)
	for i := 1; i < len(rows); i++ {
		assert.True(t, rows[i-1].Date.Before(rows[i].Date), "rows must be strictly ascending")
	}
}

func TestFormatBulletin_RoundTrip(t *testing.T) {
	issued := time.Date(2025, 6, 2, 1, 25, 0, 0, time.UTC)
	want := []ForecastRow{
		{Date: date(2025, 6, 2), RadioFlux: 150, AIndex: 5, KpIndex: 2, Source: SourceObserved},
		{Date: date(2025, 6, 3), RadioFlux: 148.5, AIndex: 12, KpIndex: 4.33, Source: SourceObserved},
		{Date: date(2025, 6, 4), RadioFlux: 141, AIndex: -1, KpIndex: 0, Source: SourceObserved},
	}

	text := FormatBulletin(want, issued)
	assert.Contains(t, text, ":Issued: 2025 Jun 02 0125 UTC")

	got, err := ParseBulletin(text)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatBulletin_NonFiniteRowIsUnreadable(t *testing.T) {
	rows := []ForecastRow{
		{Date: date(2025, 6, 2), RadioFlux: math.NaN(), AIndex: 5, KpIndex: 2},
		{Date: date(2025, 6, 3), RadioFlux: 150, AIndex: 5, KpIndex: 2},
	}
	got, err := ParseBulletin(FormatBulletin(rows, date(2025, 6, 2)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, date(2025, 6, 3), got[0].Date)
}
