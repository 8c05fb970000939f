package services

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// KaiserThreshold is the eigenvalue a component must exceed to be retained.
	KaiserThreshold = 1.0
	// VarimaxTolerance is the element-wise convergence bound on the rotation matrix.
	VarimaxTolerance = 1e-6
	// VarimaxMaxIter caps the number of rotation updates.
	VarimaxMaxIter = 100
)

// Extraction is the outcome of principal component extraction over the
// analysed item columns.
type Extraction struct {
	Columns     []string
	Eigenvalues []float64
	NFactors    int
	// Loadings is items x factors before rotation; nil when fewer than two
	// factors were retained.
	Loadings *mat.Dense
	Rotation *VarimaxResult
}

// Performed reports whether a multi-factor solution was extracted and rotated.
func (e *Extraction) Performed() bool {
	return e != nil && e.NFactors >= 2 && e.Rotation != nil
}

// VarimaxResult carries rotated loadings and the orthonormal rotation T.
type VarimaxResult struct {
	Rotated    *mat.Dense
	T          *mat.Dense
	Iterations int
	Converged  bool
}

// ExtractFactors standardizes each column, runs PCA over all
// min(samples, items) components and applies the Kaiser criterion. When at
// least two components are retained their loadings are Varimax-rotated.
// m must be complete-case with no zero-variance columns.
func ExtractFactors(m *ScoreMatrix) (*Extraction, error) {
	if m == nil || m.Items() < MinItems || m.Samples() < MinSamples {
		return nil, fmt.Errorf("factor extraction needs %d items and %d samples: %w", MinItems, MinSamples, ErrMetricUnavailable)
	}
	n, p := m.Samples(), m.Items()

	z, err := standardize(m)
	if err != nil {
		return nil, err
	}

	cov := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			var s float64
			for r := 0; r < n; r++ {
				s += z[r][i] * z[r][j]
			}
			cov.SetSym(i, j, s/float64(n-1))
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(cov, true); !ok {
		return nil, fmt.Errorf("eigen-decomposition did not converge: %w", ErrMetricUnavailable)
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)

	order := make([]int, p)
	for i := range order {
		order[i] = p - 1 - i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	components := min(n, p)
	eigen := make([]float64, components)
	for c := 0; c < components; c++ {
		v := values[order[c]]
		if v < 0 || math.IsNaN(v) {
			v = 0
		}
		eigen[c] = v
	}

	ext := &Extraction{Columns: append([]string(nil), m.Columns...), Eigenvalues: eigen}
	for _, v := range eigen {
		if v > KaiserThreshold {
			ext.NFactors++
		}
	}
	if ext.NFactors <= 1 {
		return ext, nil
	}

	k := ext.NFactors
	loadings := mat.NewDense(p, k, nil)
	for f := 0; f < k; f++ {
		vec := mat.Col(nil, order[f], &vectors)
		sign := vectorSign(vec)
		scale := math.Sqrt(eigen[f])
		for i := 0; i < p; i++ {
			loadings.Set(i, f, sign*vec[i]*scale)
		}
	}
	ext.Loadings = loadings

	rot, err := Varimax(loadings)
	if err != nil {
		return ext, err
	}
	ext.Rotation = rot
	return ext, nil
}

// Varimax orthogonally rotates a p x k loading matrix L:
//
//	T = I
//	repeat: R = L*T; N = R / colnorm(R)
//	        M = L' * (N^3 - N*diag(colsum(N^2))/p)
//	        M = U*S*V'; T_new = U*V'
//	until max|T_new - T| <= VarimaxTolerance or VarimaxMaxIter updates
//
// and returns L*T. A single factor is returned unchanged.
func Varimax(L *mat.Dense) (*VarimaxResult, error) {
	p, k := L.Dims()
	T := identity(k)
	if k < 2 {
		return &VarimaxResult{Rotated: mat.DenseCopyOf(L), T: T, Converged: true}, nil
	}

	res := &VarimaxResult{}
	for iter := 1; iter <= VarimaxMaxIter; iter++ {
		res.Iterations = iter

		var rotated mat.Dense
		rotated.Mul(L, T)

		normalized := mat.NewDense(p, k, nil)
		for f := 0; f < k; f++ {
			norm := mat.Norm(rotated.ColView(f), 2)
			if norm == 0 || math.IsNaN(norm) {
				return nil, fmt.Errorf("varimax: factor %d has zero loadings: %w", f+1, ErrMetricUnavailable)
			}
			for i := 0; i < p; i++ {
				normalized.Set(i, f, rotated.At(i, f)/norm)
			}
		}

		colSumSq := make([]float64, k)
		for f := 0; f < k; f++ {
			for i := 0; i < p; i++ {
				v := normalized.At(i, f)
				colSumSq[f] += v * v
			}
		}
		target := mat.NewDense(p, k, nil)
		for i := 0; i < p; i++ {
			for f := 0; f < k; f++ {
				v := normalized.At(i, f)
				target.Set(i, f, v*v*v-v*colSumSq[f]/float64(p))
			}
		}

		var M mat.Dense
		M.Mul(L.T(), target)

		var svd mat.SVD
		if ok := svd.Factorize(&M, mat.SVDFull); !ok {
			return nil, fmt.Errorf("varimax: svd failed at iteration %d: %w", iter, ErrMetricUnavailable)
		}
		var u, v mat.Dense
		svd.UTo(&u)
		svd.VTo(&v)
		next := mat.NewDense(k, k, nil)
		next.Mul(&u, v.T())

		if maxAbsDiff(next, T) <= VarimaxTolerance {
			res.Converged = true
			break
		}
		T = next
	}

	var out mat.Dense
	out.Mul(L, T)
	res.Rotated = &out
	res.T = T
	return res, nil
}

func standardize(m *ScoreMatrix) ([][]float64, error) {
	n, p := m.Samples(), m.Items()
	z := make([][]float64, n)
	for i := range z {
		z[i] = make([]float64, p)
	}
	for j := 0; j < p; j++ {
		mean, variance := stat.PopMeanVariance(m.Column(j), nil)
		sd := math.Sqrt(variance)
		if sd == 0 || math.IsNaN(sd) {
			return nil, fmt.Errorf("column %s has zero variance: %w", m.Columns[j], ErrMetricUnavailable)
		}
		for i := 0; i < n; i++ {
			z[i][j] = (m.Rows[i][j] - mean) / sd
		}
	}
	return z, nil
}

// vectorSign returns -1 when the largest-magnitude entry of v is negative so
// that eigenvector orientation is reproducible.
func vectorSign(v []float64) float64 {
	best := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[best]) {
			best = i
		}
	}
	if len(v) > 0 && v[best] < 0 {
		return -1
	}
	return 1
}

func identity(k int) *mat.Dense {
	d := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		d.Set(i, i, 1)
	}
	return d
}

func maxAbsDiff(a, b *mat.Dense) float64 {
	r, c := a.Dims()
	var d float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d = math.Max(d, math.Abs(a.At(i, j)-b.At(i, j)))
		}
	}
	return d
}
