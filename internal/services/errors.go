package services

import "errors"

var (
	// ErrInputUnavailable is returned when the record source is missing, empty
	// or contains no eligible answers.
	ErrInputUnavailable = errors.New("input unavailable")
	// ErrInsufficientData flags too few complete samples or item columns.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrMetricUnavailable means a single metric could not be computed from a
	// degenerate matrix. Sibling metrics are unaffected.
	ErrMetricUnavailable = errors.New("metric unavailable")
)

const (
	// MinSamples is the minimum number of complete-case rows for any metric.
	MinSamples = 3
	// MinItems is the minimum number of item columns for any metric.
	MinItems = 2
)
