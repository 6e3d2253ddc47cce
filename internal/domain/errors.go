package domain

import "errors"

var (
	// ErrUpstreamUnavailable means the bulletin could not be fetched (network
	// error, timeout or non-200 response).
	ErrUpstreamUnavailable = errors.New("upstream bulletin unavailable")

	// ErrEmptyBulletin means the bulletin was fetched but yielded no data rows.
	ErrEmptyBulletin = errors.New("bulletin contains no data rows")

	// ErrStoreWrite means the store rejected one or more writes in a batch.
	// Writes that succeeded are not rolled back.
	ErrStoreWrite = errors.New("store write failure")

	// ErrInsufficientData means no source could supply a window.
	ErrInsufficientData = errors.New("no forecast data")

	// ErrCycleInProgress means another refresh or model cycle holds the engine.
	ErrCycleInProgress = errors.New("reconciliation cycle already in progress")

	// ErrInvalidPrediction means model output could not be decoded at all.
	ErrInvalidPrediction = errors.New("invalid prediction payload")
)
