package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ScaleRange is the answer range of a reverse-keyed question, e.g. 1..5.
type ScaleRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ReverseScore mirrors v within r (Min+Max-v). Out-of-range values are
// clamped first; a degenerate range returns v unchanged.
func ReverseScore(v float64, r ScaleRange) float64 {
	if r.Max <= r.Min || IsMissing(v) {
		return v
	}
	v = min(max(v, r.Min), r.Max)
	return r.Min + r.Max - v
}

// ReverseKeyed returns a copy of m in which every column belonging to a
// listed question is reverse-scored. Missing cells stay missing.
func (m *ScoreMatrix) ReverseKeyed(keys map[int]ScaleRange) *ScoreMatrix {
	ranges := make([]*ScaleRange, len(m.Columns))
	for j, col := range m.Columns {
		if q, ok := QuestionNumber(col); ok {
			if r, ok := keys[q]; ok {
				ranges[j] = &r
			}
		}
	}
	out := &ScoreMatrix{
		Columns:     append([]string(nil), m.Columns...),
		ItemColumns: append([]int(nil), m.ItemColumns...),
		Rows:        make([][]float64, len(m.Rows)),
	}
	for i, row := range m.Rows {
		r := make([]float64, len(row))
		for j, v := range row {
			if ranges[j] != nil {
				v = ReverseScore(v, *ranges[j])
			}
			r[j] = v
		}
		out.Rows[i] = r
	}
	return out
}

// ParseReverseKeys parses a comma-separated question list ("3,5") and a
// scale range ("1-5") into reverse-keying rules. Empty questions yield nil.
func ParseReverseKeys(questions, scale string) (map[int]ScaleRange, error) {
	questions = strings.TrimSpace(questions)
	if questions == "" {
		return nil, nil
	}
	lo, hi, ok := strings.Cut(strings.TrimSpace(scale), "-")
	if !ok {
		return nil, fmt.Errorf("scale range %q must look like 1-5", scale)
	}
	minV, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return nil, fmt.Errorf("scale minimum %q: %w", lo, err)
	}
	maxV, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return nil, fmt.Errorf("scale maximum %q: %w", hi, err)
	}
	if maxV <= minV {
		return nil, fmt.Errorf("scale range %q is empty", scale)
	}

	keys := map[int]ScaleRange{}
	for _, part := range strings.Split(questions, ",") {
		part = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(part)), "q")
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("question %q is not a number", part)
		}
		keys[n] = ScaleRange{Min: minV, Max: maxV}
	}
	return keys, nil
}

// ReverseKeySignature renders keys in a canonical form ("q3:1-5,q5:1-5"),
// independent of the order or spelling they were parsed from.
func ReverseKeySignature(keys map[int]ScaleRange) string {
	nums := make([]int, 0, len(keys))
	for n := range keys {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	parts := make([]string, len(nums))
	for i, n := range nums {
		r := keys[n]
		parts[i] = fmt.Sprintf("q%d:%s-%s", n,
			strconv.FormatFloat(r.Min, 'g', -1, 64), strconv.FormatFloat(r.Max, 'g', -1, 64))
	}
	return strings.Join(parts, ",")
}
