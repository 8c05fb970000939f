package api

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	reports  map[string]*Report
	byDigest map[string]string
}

// NewMemoryStore returns a Store that keeps reports for the process lifetime.
func NewMemoryStore() Store {
	return newMemoryStore()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		reports:  map[string]*Report{},
		byDigest: map[string]string{},
	}
}

func (s *memoryStore) SaveReport(_ context.Context, r *Report) error {
	if r == nil || r.ID == "" {
		return errors.New("report id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.reports[r.ID]; ok && prev.SourceDigest != "" {
		delete(s.byDigest, prev.SourceDigest)
	}
	cp := *r
	s.reports[r.ID] = &cp
	if r.SourceDigest != "" {
		s.byDigest[r.SourceDigest] = r.ID
	}
	return nil
}

func (s *memoryStore) GetReport(_ context.Context, id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memoryStore) FindReportByDigest(ctx context.Context, digest string) (*Report, error) {
	s.mu.RLock()
	id, ok := s.byDigest[digest]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrReportNotFound
	}
	return s.GetReport(ctx, id)
}

func (s *memoryStore) ListReports(_ context.Context, limit int) ([]ReportSummary, error) {
	s.mu.RLock()
	out := make([]ReportSummary, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r.Summary())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) DeleteReport(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return ErrReportNotFound
	}
	delete(s.reports, id)
	if s.byDigest[r.SourceDigest] == id {
		delete(s.byDigest, r.SourceDigest)
	}
	return nil
}
