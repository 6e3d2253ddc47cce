package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeRows reads prediction rows from a JSON array, an object of the form
// {"predictions": [...]}, or a single row object. Elements that fail to
// decode (bad or missing date, wrong shape) are skipped and counted in
// rejected. Values that are absent stay NaN; callers check Complete.
//
// ErrInvalidPrediction is returned when data is not one of those shapes.
func DecodeRows(data []byte) (rows []ForecastRow, rejected int, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: empty payload", ErrInvalidPrediction)
	}

	var elems []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrInvalidPrediction, err)
		}
	case '{':
		var wrapper struct {
			Predictions []json.RawMessage `json:"predictions"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrInvalidPrediction, err)
		}
		if wrapper.Predictions != nil {
			elems = wrapper.Predictions
		} else {
			elems = []json.RawMessage{data}
		}
	default:
		return nil, 0, fmt.Errorf("%w: expected a JSON array or object", ErrInvalidPrediction)
	}

	rows = make([]ForecastRow, 0, len(elems))
	for _, elem := range elems {
		var row ForecastRow
		if err := json.Unmarshal(elem, &row); err != nil {
			rejected++
			continue
		}
		rows = append(rows, row)
	}
	return rows, rejected, nil
}
