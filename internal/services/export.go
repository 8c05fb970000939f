package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strconv"
	"strings"
)

// ErrNoFactorSolution is returned by exports that need a rotated solution.
var ErrNoFactorSolution = errors.New("no factor solution to export")

// ExportFactorsCSV renders one row per factor.
func ExportFactorsCSV(r *AnalysisResult) ([]byte, error) {
	if r == nil || !r.EFAPerformed {
		return nil, ErrNoFactorSolution
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"factor_id", "factor_name", "question_nums", "items", "cronbach_alpha", "eigenvalue", "variance_explained"})
	for _, f := range r.Factors {
		nums := make([]string, len(f.QuestionNums))
		for i, n := range f.QuestionNums {
			nums[i] = strconv.Itoa(n)
		}
		rec := []string{
			strconv.Itoa(f.FactorID),
			f.FactorName,
			strings.Join(nums, "|"),
			strings.Join(f.Items, "|"),
			formatOptional(f.CronbachAlpha),
			formatFloat(f.Eigenvalue),
			formatFloat(f.VarianceExplained),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportLoadingsCSV renders the rotated loadings, one row per item column,
// with the factor each item was assigned to.
func ExportLoadingsCSV(r *AnalysisResult) ([]byte, error) {
	if r == nil || !r.EFAPerformed || len(r.LoadingsMatrix) == 0 {
		return nil, ErrNoFactorSolution
	}
	k := len(r.LoadingsMatrix[0])
	assigned := map[string]int{}
	for _, f := range r.Factors {
		for _, it := range f.Items {
			assigned[it] = f.FactorID
		}
	}

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"item"}
	for f := 1; f <= k; f++ {
		header = append(header, "factor_"+strconv.Itoa(f))
	}
	header = append(header, "assigned_factor")
	_ = w.Write(header)
	for i, row := range r.LoadingsMatrix {
		item := ""
		if i < len(r.LoadingItems) {
			item = r.LoadingItems[i]
		}
		rec := make([]string, 0, k+2)
		rec = append(rec, item)
		for _, v := range row {
			rec = append(rec, formatFloat(v))
		}
		rec = append(rec, strconv.Itoa(assigned[item]))
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportEigenvaluesCSV renders the scree table: each component's eigenvalue,
// its share of total variance, the cumulative share and whether the Kaiser
// criterion retains it.
func ExportEigenvaluesCSV(r *AnalysisResult) ([]byte, error) {
	if r == nil || len(r.Eigenvalues) == 0 {
		return nil, ErrNoFactorSolution
	}
	var total float64
	for _, v := range r.Eigenvalues {
		total += v
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"component", "eigenvalue", "variance_explained", "cumulative", "retained"})
	var cum float64
	for i, v := range r.Eigenvalues {
		share := 0.0
		if total > 0 {
			share = 100 * v / total
		}
		cum += share
		rec := []string{
			strconv.Itoa(i + 1),
			formatFloat(v),
			formatFloat(share),
			formatFloat(cum),
			strconv.FormatBool(v > KaiserThreshold),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportWideCSV renders the score matrix with one sample per row and one
// column per item key. Missing cells are left empty.
func ExportWideCSV(m *ScoreMatrix) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := append([]string{"sample"}, m.Columns...)
	_ = w.Write(header)
	for i, row := range m.Rows {
		rec := make([]string, 0, 1+len(row))
		rec = append(rec, strconv.Itoa(i+1))
		for _, v := range row {
			if IsMissing(v) {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, formatFloat(v))
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
