package services

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/soaringjerry/psymetrics/internal/models"
)

// maxLineBytes bounds a single JSON line; submissions with many matrix rows
// easily exceed bufio's 64KiB default.
const maxLineBytes = 4 << 20

// RecordSource supplies the finished, closed collection of raw records.
type RecordSource interface {
	LoadRecords() ([]models.RawResponseRecord, error)
}

// StaticSource serves records already held in memory.
type StaticSource []models.RawResponseRecord

func (s StaticSource) LoadRecords() ([]models.RawResponseRecord, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("no records: %w", ErrInputUnavailable)
	}
	out := make([]models.RawResponseRecord, len(s))
	copy(out, s)
	return out, nil
}

// FileSource reads a JSON Lines raw-data file.
type FileSource struct {
	Path   string
	Logger *zap.Logger
}

func (s FileSource) LoadRecords() ([]models.RawResponseRecord, error) {
	if s.Path == "" {
		return nil, fmt.Errorf("no raw data path: %w", ErrInputUnavailable)
	}
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("raw data file %s not found: %w", s.Path, ErrInputUnavailable)
		}
		return nil, fmt.Errorf("open raw data %s: %w: %v", s.Path, ErrInputUnavailable, err)
	}
	defer f.Close()
	return ParseRecords(f, s.Logger)
}

// ReaderSource reads JSON Lines from an in-memory payload such as an upload.
type ReaderSource struct {
	Data   []byte
	Logger *zap.Logger
}

func (s ReaderSource) LoadRecords() ([]models.RawResponseRecord, error) {
	return ParseRecords(bytes.NewReader(s.Data), s.Logger)
}

// ParseRecords decodes one record per line. Blank and malformed lines are
// skipped; an input without a single valid record is ErrInputUnavailable.
func ParseRecords(r io.Reader, logger *zap.Logger) ([]models.RawResponseRecord, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		out     []models.RawResponseRecord
		skipped int
		lineNo  int
	)
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec models.RawResponseRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			logger.Debug("skipping malformed record line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read raw data: %w: %v", ErrInputUnavailable, err)
	}
	if skipped > 0 {
		logger.Warn("skipped malformed record lines", zap.Int("skipped", skipped), zap.Int("kept", len(out)))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no valid records: %w", ErrInputUnavailable)
	}
	return out, nil
}
