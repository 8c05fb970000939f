package services

import (
	"encoding/json"
	"strconv"

	"github.com/soaringjerry/psymetrics/internal/models"
)

func answer(typ models.AnswerType, raw string) models.AnswerValue {
	return models.AnswerValue{Type: typ, Value: json.RawMessage(raw)}
}

// scaleRecords turns a [samples][items] grid into records answering
// questions 1..k with scale answers.
func scaleRecords(rows [][]float64) []models.RawResponseRecord {
	out := make([]models.RawResponseRecord, 0, len(rows))
	for i, row := range rows {
		answers := map[string]models.AnswerValue{}
		for j, v := range row {
			answers[strconv.Itoa(j+1)] = answer(models.AnswerScale, strconv.FormatFloat(v, 'f', -1, 64))
		}
		out = append(out, models.RawResponseRecord{
			SubmissionIndex: i,
			Timestamp:       "2025-09-18T10:00:00Z",
			Answers:         answers,
		})
	}
	return out
}

// twoClusterRows has items 1,2 perfectly correlated, items 3,4 perfectly
// correlated and the two pairs uncorrelated.
func twoClusterRows() [][]float64 {
	x := []float64{1, 1, 2, 2, 3, 3, 4, 4, 5, 5}
	y := []float64{1, 5, 2, 4, 3, 3, 4, 2, 5, 1}
	rows := make([][]float64, len(x))
	for i := range x {
		rows[i] = []float64{x[i], x[i] + 1, y[i], y[i]}
	}
	return rows
}

func matrixFromRows(rows [][]float64) *ScoreMatrix {
	cols := make([]string, len(rows[0]))
	for j := range cols {
		cols[j] = ColumnKey(j+1, "")
	}
	return &ScoreMatrix{Columns: cols, Rows: rows, ItemColumns: questionNumbers(cols)}
}
