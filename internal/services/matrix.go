package services

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/soaringjerry/psymetrics/internal/models"
)

// ScoreMatrix holds numeric answers as samples x item columns.
// Missing cells are NaN.
type ScoreMatrix struct {
	Columns     []string    `json:"columns"`
	Rows        [][]float64 `json:"-"`
	ItemColumns []int       `json:"item_columns"`
}

// Missing is the marker written for unanswered or non-numeric cells.
var Missing = math.NaN()

// IsMissing reports whether v is the missing marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Samples returns the number of rows.
func (m *ScoreMatrix) Samples() int { return len(m.Rows) }

// Items returns the number of columns.
func (m *ScoreMatrix) Items() int { return len(m.Columns) }

// Column copies column j into a new slice.
func (m *ScoreMatrix) Column(j int) []float64 {
	out := make([]float64, len(m.Rows))
	for i, row := range m.Rows {
		out[i] = row[j]
	}
	return out
}

// CompleteCases applies listwise deletion: rows with any missing cell are dropped.
func (m *ScoreMatrix) CompleteCases() *ScoreMatrix {
	out := &ScoreMatrix{Columns: append([]string(nil), m.Columns...)}
	for _, row := range m.Rows {
		complete := true
		for _, v := range row {
			if IsMissing(v) {
				complete = false
				break
			}
		}
		if complete {
			out.Rows = append(out.Rows, append([]float64(nil), row...))
		}
	}
	out.ItemColumns = questionNumbers(out.Columns)
	return out
}

// Subset keeps only the named columns, in the order given. Unknown keys are ignored.
func (m *ScoreMatrix) Subset(keys []string) *ScoreMatrix {
	index := make(map[string]int, len(m.Columns))
	for j, c := range m.Columns {
		index[c] = j
	}
	idx := make([]int, 0, len(keys))
	cols := make([]string, 0, len(keys))
	for _, k := range keys {
		if j, ok := index[k]; ok {
			idx = append(idx, j)
			cols = append(cols, k)
		}
	}
	out := &ScoreMatrix{Columns: cols, Rows: make([][]float64, len(m.Rows))}
	for i, row := range m.Rows {
		r := make([]float64, len(idx))
		for c, j := range idx {
			r[c] = row[j]
		}
		out.Rows[i] = r
	}
	out.ItemColumns = questionNumbers(cols)
	return out
}

// DropZeroVariance removes columns whose sample variance is exactly zero and
// returns the dropped keys. The receiver must not contain missing cells.
func (m *ScoreMatrix) DropZeroVariance() (*ScoreMatrix, []string) {
	keep := make([]string, 0, len(m.Columns))
	var dropped []string
	for j, c := range m.Columns {
		if len(m.Rows) < 2 || stat.Variance(m.Column(j), nil) == 0 {
			dropped = append(dropped, c)
			continue
		}
		keep = append(keep, c)
	}
	if len(dropped) == 0 {
		return m, nil
	}
	return m.Subset(keep), dropped
}

// ColumnKey returns the item key for a plain question (row == "") or a matrix sub-item.
func ColumnKey(question int, row string) string {
	if row == "" {
		return "q" + strconv.Itoa(question)
	}
	return "q" + strconv.Itoa(question) + "_" + row
}

// QuestionNumber extracts the originating question number from an item key.
func QuestionNumber(key string) (int, bool) {
	s := strings.TrimPrefix(key, "q")
	if i := strings.IndexByte(s, '_'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func questionNumbers(keys []string) []int {
	seen := map[int]struct{}{}
	out := make([]int, 0, len(keys))
	for _, k := range keys {
		n, ok := QuestionNumber(k)
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

type matrixColumn struct {
	question int
	row      string
}

// BuildScoreMatrix turns raw records into a score matrix in two passes. The
// first pass discovers eligible questions and the union of matrix rows; the
// second fills values, writing Missing for anything absent or non-numeric.
// Columns that are missing for every record are dropped.
func BuildScoreMatrix(records []models.RawResponseRecord, logger *zap.Logger) *ScoreMatrix {
	if logger == nil {
		logger = zap.NewNop()
	}
	eligible := map[int]struct{}{}
	matrixRows := map[int]map[string]struct{}{}

	parsed := make([]map[int]models.AnswerValue, len(records))
	for i, rec := range records {
		answers := make(map[int]models.AnswerValue, len(rec.Answers))
		for key, ans := range rec.Answers {
			if !ans.Type.Eligible() {
				continue
			}
			n, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil {
				logger.Debug("ignoring non-numeric question key", zap.String("key", key))
				continue
			}
			answers[n] = ans
			eligible[n] = struct{}{}
			if ans.Type != models.AnswerMatrix {
				continue
			}
			if matrixRows[n] == nil {
				matrixRows[n] = map[string]struct{}{}
			}
			if rows, ok := ans.Rows(); ok {
				for row := range rows {
					matrixRows[n][row] = struct{}{}
				}
			}
		}
		parsed[i] = answers
	}

	questions := make([]int, 0, len(eligible))
	for n := range eligible {
		questions = append(questions, n)
	}
	sort.Ints(questions)

	var cols []matrixColumn
	for _, n := range questions {
		rows, isMatrix := matrixRows[n]
		if !isMatrix {
			cols = append(cols, matrixColumn{question: n})
			continue
		}
		for _, row := range sortRowKeys(rows) {
			cols = append(cols, matrixColumn{question: n, row: row})
		}
	}

	data := make([][]float64, len(parsed))
	observed := make([]bool, len(cols))
	for i, answers := range parsed {
		row := make([]float64, len(cols))
		for j, col := range cols {
			row[j] = cellValue(answers, col)
			if !IsMissing(row[j]) {
				observed[j] = true
			}
		}
		data[i] = row
	}

	keep := make([]int, 0, len(cols))
	keys := make([]string, 0, len(cols))
	for j, col := range cols {
		key := ColumnKey(col.question, col.row)
		if !observed[j] {
			logger.Debug("dropping empty column", zap.String("column", key))
			continue
		}
		keep = append(keep, j)
		keys = append(keys, key)
	}

	out := &ScoreMatrix{Columns: keys, Rows: make([][]float64, len(data))}
	for i, row := range data {
		r := make([]float64, len(keep))
		for c, j := range keep {
			r[c] = row[j]
		}
		out.Rows[i] = r
	}
	out.ItemColumns = questionNumbers(keys)
	return out
}

func cellValue(answers map[int]models.AnswerValue, col matrixColumn) float64 {
	ans, ok := answers[col.question]
	if !ok {
		return Missing
	}
	if col.row == "" {
		if v, ok := ans.Number(); ok {
			return v
		}
		return Missing
	}
	rows, ok := ans.Rows()
	if !ok {
		return Missing
	}
	if v, ok := models.RawNumber(rows[col.row]); ok {
		return v
	}
	return Missing
}

// sortRowKeys orders matrix row keys numerically; non-numeric keys follow in
// lexical order.
func sortRowKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			if a != b {
				return a < b
			}
			return keys[i] < keys[j]
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}
