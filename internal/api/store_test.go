package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/psymetrics/internal/services"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 9, 18, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveReport(ctx, &Report{
			ID:           id,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			SourceDigest: "digest-" + id,
			RecordCount:  10 + i,
			Result:       &services.AnalysisResult{SampleCount: 10 + i, ItemCount: 4},
		}))
	}

	got, err := s.GetReport(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 11, got.RecordCount)

	byDigest, err := s.FindReportByDigest(ctx, "digest-c")
	require.NoError(t, err)
	assert.Equal(t, "c", byDigest.ID)

	list, err := s.ListReports(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID, "newest first")
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, 4, list[0].ItemCount)

	require.NoError(t, s.DeleteReport(ctx, "c"))
	_, err = s.GetReport(ctx, "c")
	assert.ErrorIs(t, err, ErrReportNotFound)
	_, err = s.FindReportByDigest(ctx, "digest-c")
	assert.ErrorIs(t, err, ErrReportNotFound)
	assert.ErrorIs(t, s.DeleteReport(ctx, "c"), ErrReportNotFound)

	assert.Error(t, s.SaveReport(ctx, &Report{}))
}
