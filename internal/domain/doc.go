// Package domain models the NOAA SWPC 27-day space weather outlook and the
// per-day forecast rows derived from it.
//
// # Data Source
//
// The outlook is published as plain text at
// https://services.swpc.noaa.gov/text/27-day-outlook.txt and reissued weekly.
// Each issue covers the 27 days starting at the issue date, so the window
// slides forward and the oldest days drop off.
//
// # Bulletin Format
//
// Header and comment lines start with ":" or "#" and are ignored. Data lines
// look like:
//
//	2025 Jun 02     150           5          2
//
// i.e. "<year> <Mon> <day>" followed by three numbers: the 10.7 cm radio flux,
// the planetary A index and the largest expected Kp index. Any line that does
// not begin with a 4-digit year, a 3-letter month and a 1-2 digit day is
// skipped. Only the first three numeric tokens after the date are read, so
// trailing annotations do not matter. See [ParseBulletin].
//
// # Dates
//
// Every row date is midnight UTC of its calendar day. Dates from any source
// (bulletin text, model output, database rows) go through [NormalizeDate]
// before they are stored or compared, which keeps a value written with a
// local-midnight timestamp from drifting onto the neighbouring UTC day.
//
// # Sources
//
// Rows carry a [Source] tag. "observed" rows come from the official bulletin
// and always win where they overlap model output. "predicted" rows come from
// the external forecasting model and are only kept for days strictly after the
// last observed day.
//
// # Field Names
//
// Upstream consumers use two naming families for the same values:
// f107/radio_flux, a_index/ap_index and kp_max/kp_index. [ForecastRow]
// writes both and accepts either.
package domain
