package models

import (
	"bytes"
	"encoding/json"
)

// AnswerType is the question type reported by the submission pipeline.
type AnswerType string

const (
	AnswerSingle   AnswerType = "single"
	AnswerScale    AnswerType = "scale"
	AnswerScore    AnswerType = "score"
	AnswerDropdown AnswerType = "dropdown"
	AnswerSlider   AnswerType = "slider"
	AnswerMatrix   AnswerType = "matrix"
	AnswerText     AnswerType = "text"
	AnswerMultiple AnswerType = "multiple"
)

// Eligible reports whether answers of this type produce numeric score columns.
func (t AnswerType) Eligible() bool {
	switch t {
	case AnswerSingle, AnswerScale, AnswerScore, AnswerDropdown, AnswerSlider, AnswerMatrix:
		return true
	}
	return false
}

// AnswerValue is a single typed answer. Value keeps the raw JSON because its
// shape depends on Type: a number, a list of numbers, a row->column object,
// a string or null.
type AnswerValue struct {
	Type  AnswerType      `json:"type"`
	Value json.RawMessage `json:"value"`
}

// RawResponseRecord is one submission as written to the raw-data log.
type RawResponseRecord struct {
	SubmissionIndex int                    `json:"submission_index"`
	Timestamp       string                 `json:"timestamp"`
	Answers         map[string]AnswerValue `json:"answers"`
}

// Number returns the value as a float when it is a JSON number.
func (a AnswerValue) Number() (float64, bool) {
	return rawNumber(a.Value)
}

// Rows returns the row->column object of a matrix answer.
func (a AnswerValue) Rows() (map[string]json.RawMessage, bool) {
	v := bytes.TrimSpace(a.Value)
	if len(v) == 0 || v[0] != '{' {
		return nil, false
	}
	var rows map[string]json.RawMessage
	if err := json.Unmarshal(v, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

// RawNumber decodes raw as a float when it holds a JSON number.
// Strings, booleans, lists, objects and null are not numbers.
func RawNumber(raw json.RawMessage) (float64, bool) {
	return rawNumber(raw)
}

func rawNumber(raw json.RawMessage) (float64, bool) {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return 0, false
	}
	c := v[0]
	if c != '-' && (c < '0' || c > '9') {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, false
	}
	return f, true
}
