package services

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// chi2Tolerance absorbs rounding when det(R) is numerically just above 1.
const chi2Tolerance = 1e-9

// KMOResult holds the overall Kaiser-Meyer-Olkin measure and the per-item
// values it was aggregated from.
type KMOResult struct {
	Overall float64
	PerItem []float64
}

// BartlettResult is the outcome of Bartlett's test of sphericity.
type BartlettResult struct {
	ChiSquare float64
	DF        int
	PValue    float64
}

// PrepareValidityInput applies listwise deletion and drops zero-variance
// columns. It returns ErrMetricUnavailable when fewer than MinItems columns or
// MinSamples rows survive.
func PrepareValidityInput(m *ScoreMatrix) (*ScoreMatrix, []string, error) {
	cc := m.CompleteCases()
	if cc.Samples() < MinSamples {
		return nil, nil, fmt.Errorf("need %d complete samples, have %d: %w", MinSamples, cc.Samples(), ErrMetricUnavailable)
	}
	filtered, dropped := cc.DropZeroVariance()
	if filtered.Items() < MinItems {
		return nil, dropped, fmt.Errorf("need %d non-constant items, have %d: %w", MinItems, filtered.Items(), ErrMetricUnavailable)
	}
	return filtered, dropped, nil
}

// KMO computes the Kaiser-Meyer-Olkin sampling adequacy from the correlation
// matrix and the partial correlations derived from its inverse. m must be a
// complete-case matrix without zero-variance columns.
func KMO(m *ScoreMatrix) (*KMOResult, error) {
	corr, err := correlationMatrix(m)
	if err != nil {
		return nil, err
	}
	p := corr.SymmetricDim()

	var inv mat.Dense
	if err := inv.Inverse(corr); err != nil {
		return nil, fmt.Errorf("invert correlation matrix: %v: %w", err, ErrMetricUnavailable)
	}

	perItem := make([]float64, p)
	var r2Total, p2Total float64
	for i := 0; i < p; i++ {
		var r2, p2 float64
		for j := 0; j < p; j++ {
			if i == j {
				continue
			}
			d := inv.At(i, i) * inv.At(j, j)
			if d <= 0 || math.IsNaN(d) {
				return nil, fmt.Errorf("anti-image diagonal not positive: %w", ErrMetricUnavailable)
			}
			partial := -inv.At(i, j) / math.Sqrt(d)
			r := corr.At(i, j)
			r2 += r * r
			p2 += partial * partial
		}
		if r2+p2 > 0 {
			perItem[i] = r2 / (r2 + p2)
		}
		r2Total += r2
		p2Total += p2
	}
	denom := r2Total + p2Total
	if denom == 0 || math.IsNaN(denom) || math.IsInf(denom, 0) {
		return nil, fmt.Errorf("kmo denominator is %v: %w", denom, ErrMetricUnavailable)
	}
	return &KMOResult{Overall: r2Total / denom, PerItem: perItem}, nil
}

// Bartlett runs Bartlett's test of sphericity:
// chi2 = -(n - 1 - (2p+5)/6) * ln det(R) with p(p-1)/2 degrees of freedom.
func Bartlett(m *ScoreMatrix) (*BartlettResult, error) {
	corr, err := correlationMatrix(m)
	if err != nil {
		return nil, err
	}
	n := float64(m.Samples())
	p := corr.SymmetricDim()

	logDet, sign := mat.LogDet(corr)
	if sign <= 0 || math.IsInf(logDet, 0) || math.IsNaN(logDet) {
		return nil, fmt.Errorf("correlation matrix determinant not positive: %w", ErrMetricUnavailable)
	}
	chi2 := -(n - 1 - float64(2*p+5)/6) * logDet
	if chi2 < 0 && chi2 > -chi2Tolerance {
		chi2 = 0
	}
	if chi2 < 0 || math.IsNaN(chi2) || math.IsInf(chi2, 0) {
		return nil, fmt.Errorf("chi-square statistic is %v: %w", chi2, ErrMetricUnavailable)
	}
	df := p * (p - 1) / 2
	pValue := distuv.ChiSquared{K: float64(df)}.Survival(chi2)
	pValue = math.Min(1, math.Max(0, pValue))
	return &BartlettResult{ChiSquare: chi2, DF: df, PValue: pValue}, nil
}

func correlationMatrix(m *ScoreMatrix) (*mat.SymDense, error) {
	if m == nil || m.Items() < MinItems || m.Samples() < MinSamples {
		return nil, fmt.Errorf("correlation needs %d items and %d samples: %w", MinItems, MinSamples, ErrMetricUnavailable)
	}
	x := denseFromRows(m.Rows)
	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, x, nil)
	p := corr.SymmetricDim()
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			if v := corr.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("correlation matrix has non-finite entries: %w", ErrMetricUnavailable)
			}
		}
	}
	return &corr, nil
}

func denseFromRows(rows [][]float64) *mat.Dense {
	n, p := len(rows), len(rows[0])
	flat := make([]float64, 0, n*p)
	for _, row := range rows {
		flat = append(flat, row...)
	}
	return mat.NewDense(n, p, flat)
}
