package api

import (
	"context"
	"errors"
	"time"

	"github.com/soaringjerry/psymetrics/internal/services"
)

// ErrReportNotFound is returned by stores for unknown report IDs or digests.
var ErrReportNotFound = errors.New("report not found")

// Report is one persisted analysis of an uploaded raw-data file.
type Report struct {
	ID           string                   `json:"id"`
	Name         string                   `json:"name,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
	SourceDigest string                   `json:"source_digest"`
	RecordCount  int                      `json:"record_count"`
	Result       *services.AnalysisResult `json:"result"`
}

// ReportSummary is the listing view of a report.
type ReportSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	SourceDigest string    `json:"source_digest"`
	RecordCount  int       `json:"record_count"`
	SampleCount  int       `json:"sample_count"`
	ItemCount    int       `json:"item_count"`
	EFAPerformed bool      `json:"efa_performed"`
}

func (r *Report) Summary() ReportSummary {
	s := ReportSummary{
		ID:           r.ID,
		Name:         r.Name,
		CreatedAt:    r.CreatedAt,
		SourceDigest: r.SourceDigest,
		RecordCount:  r.RecordCount,
	}
	if r.Result != nil {
		s.SampleCount = r.Result.SampleCount
		s.ItemCount = r.Result.ItemCount
		s.EFAPerformed = r.Result.EFAPerformed
	}
	return s
}

// Store persists analysis reports. Implementations must be safe for
// concurrent use.
type Store interface {
	SaveReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	FindReportByDigest(ctx context.Context, digest string) (*Report, error)
	// ListReports returns summaries newest first; limit <= 0 means no limit.
	ListReports(ctx context.Context, limit int) ([]ReportSummary, error)
	DeleteReport(ctx context.Context, id string) error
}

var _ Store = (*memoryStore)(nil)
