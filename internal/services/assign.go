package services

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

// FactorInfo describes one extracted factor at question granularity.
type FactorInfo struct {
	FactorID          int      `json:"factor_id"`
	FactorName        string   `json:"factor_name"`
	QuestionNums      []int    `json:"question_nums"`
	Items             []string `json:"items"`
	CronbachAlpha     *float64 `json:"cronbach_alpha"`
	Eigenvalue        float64  `json:"eigenvalue"`
	VarianceExplained float64  `json:"variance_explained"`
}

// Assignment maps every analysed item column onto exactly one factor.
type Assignment struct {
	Factors []FactorInfo
	// ItemFactor holds the 1-based factor id for each column of the input matrix.
	ItemFactor             []int
	TotalVarianceExplained float64
}

// AssignFactors places each item on the factor with the largest absolute
// rotated loading (lowest index on ties), computes per-factor alpha over the
// member columns and the variance shares. Variance per factor uses the
// pre-rotation eigenvalue at the factor's extraction position.
//
// m supplies one column per loading row and may contain missing cells: each
// factor's alpha applies listwise deletion to that factor's columns alone.
func AssignFactors(m *ScoreMatrix, ext *Extraction, logger *zap.Logger) (*Assignment, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !ext.Performed() {
		return nil, fmt.Errorf("no multi-factor solution to assign: %w", ErrMetricUnavailable)
	}
	rotated := ext.Rotation.Rotated
	p, k := rotated.Dims()
	if p != m.Items() {
		return nil, fmt.Errorf("loadings have %d rows for %d columns: %w", p, m.Items(), ErrMetricUnavailable)
	}

	var total float64
	for _, v := range ext.Eigenvalues {
		total += v
	}
	if total <= 0 {
		return nil, fmt.Errorf("eigenvalues sum to %v: %w", total, ErrMetricUnavailable)
	}

	out := &Assignment{ItemFactor: make([]int, p)}
	members := make([][]string, k)
	for i := 0; i < p; i++ {
		best := 0
		for f := 1; f < k; f++ {
			if math.Abs(rotated.At(i, f)) > math.Abs(rotated.At(i, best)) {
				best = f
			}
		}
		out.ItemFactor[i] = best + 1
		members[best] = append(members[best], m.Columns[i])
	}

	var retained float64
	for f := 0; f < k; f++ {
		retained += ext.Eigenvalues[f]
	}
	out.TotalVarianceExplained = 100 * retained / total

	for f := 0; f < k; f++ {
		items := members[f]
		if len(items) == 0 {
			logger.Debug("factor received no items", zap.Int("factor", f+1))
			continue
		}
		nums := questionNumbers(items)
		info := FactorInfo{
			FactorID:          f + 1,
			FactorName:        factorName(nums),
			QuestionNums:      nums,
			Items:             items,
			Eigenvalue:        ext.Eigenvalues[f],
			VarianceExplained: 100 * ext.Eigenvalues[f] / total,
		}
		if len(items) >= MinItems {
			alpha, err := CronbachAlpha(m.Subset(items).Rows)
			switch {
			case err == nil:
				info.CronbachAlpha = &alpha
			case errors.Is(err, ErrMetricUnavailable):
				logger.Warn("factor alpha unavailable", zap.Int("factor", f+1), zap.Error(err))
			default:
				return nil, err
			}
		}
		out.Factors = append(out.Factors, info)
	}
	return out, nil
}

func factorName(nums []int) string {
	if len(nums) == 0 {
		return ""
	}
	sorted := append([]int(nil), nums...)
	sort.Ints(sorted)
	if len(sorted) == 1 {
		return fmt.Sprintf("Q%d", sorted[0])
	}
	return fmt.Sprintf("Q%d-Q%d", sorted[0], sorted[len(sorted)-1])
}
