package services

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// CronbachAlpha computes Cronbach's alpha for a matrix of item responses
// shaped as [nSamples][nItems]. Rows containing a missing cell are dropped
// first (listwise deletion). Variances use Bessel's correction. The result is
// not clamped: a negative alpha signals negatively correlated items.
//
// It returns ErrMetricUnavailable when fewer than MinItems items or MinSamples
// complete rows remain, or when any item or the summed score has zero variance.
func CronbachAlpha(matrix [][]float64) (float64, error) {
	rows := completeRows(matrix)
	n := len(rows)
	if n == 0 {
		return 0, fmt.Errorf("no complete samples: %w", ErrMetricUnavailable)
	}
	k := len(rows[0])
	if k < MinItems {
		return 0, fmt.Errorf("alpha needs %d items, have %d: %w", MinItems, k, ErrMetricUnavailable)
	}
	if n < MinSamples {
		return 0, fmt.Errorf("alpha needs %d samples, have %d: %w", MinSamples, n, ErrMetricUnavailable)
	}

	totals := make([]float64, n)
	col := make([]float64, n)
	var sumItemVars float64
	for j := 0; j < k; j++ {
		for i, row := range rows {
			col[i] = row[j]
			totals[i] += row[j]
		}
		v := stat.Variance(col, nil)
		if v == 0 {
			return 0, fmt.Errorf("item %d has zero variance: %w", j, ErrMetricUnavailable)
		}
		sumItemVars += v
	}

	totalVar := stat.Variance(totals, nil)
	if totalVar == 0 {
		return 0, fmt.Errorf("total score has zero variance: %w", ErrMetricUnavailable)
	}

	kf := float64(k)
	return (kf / (kf - 1.0)) * (1.0 - sumItemVars/totalVar), nil
}

// completeRows returns the rows without missing cells. Ragged rows are
// treated as incomplete.
func completeRows(matrix [][]float64) [][]float64 {
	if len(matrix) == 0 {
		return nil
	}
	width := len(matrix[0])
	out := make([][]float64, 0, len(matrix))
	for _, row := range matrix {
		if len(row) != width {
			continue
		}
		complete := true
		for _, v := range row {
			if IsMissing(v) {
				complete = false
				break
			}
		}
		if complete {
			out = append(out, row)
		}
	}
	return out
}
