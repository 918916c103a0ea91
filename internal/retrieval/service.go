// Package retrieval is the thin coordination layer over the corpus and
// summary stores: query-time search with citations, image-driven search,
// and monthly report generation.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"recall/internal/corpus"
)

type Corpus interface {
	Search(ctx context.Context, query string, k int) ([]corpus.Match, error)
}

type Summaries interface {
	MonthlyReport(ctx context.Context, month time.Month, year int) (string, error)
}

type Vision interface {
	DescribeImage(ctx context.Context, path string) (string, error)
}

type Service struct {
	corpus    Corpus
	summaries Summaries
	vision    Vision
	logger    *QueryLogger
}

func NewService(c Corpus, s Summaries, v Vision, l *QueryLogger) *Service {
	return &Service{corpus: c, summaries: s, vision: v, logger: l}
}

// Search returns the k nearest corpus chunks with source and page
// provenance. Zero matches is a valid outcome; an unpopulated index
// surfaces as index.ErrNotReady so callers can tell the two apart.
func (s *Service) Search(ctx context.Context, query string, k int) ([]corpus.Match, error) {
	start := time.Now()

	matches, err := s.corpus.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Log(ctx, QueryLogEntry{
			Query:      query,
			NumResults: len(matches),
			Duration:   time.Since(start),
		})
	}
	return matches, nil
}

// SearchImage describes the image with the vision capability and feeds the
// description verbatim into Search. The description is returned alongside
// the matches so the caller can show what was actually searched for.
func (s *Service) SearchImage(ctx context.Context, path string, k int) (string, []corpus.Match, error) {
	if s.vision == nil {
		return "", nil, fmt.Errorf("image search not configured")
	}

	desc, err := s.vision.DescribeImage(ctx, path)
	if err != nil {
		return "", nil, fmt.Errorf("describing image: %w", err)
	}

	matches, err := s.Search(ctx, desc, k)
	if err != nil {
		return desc, nil, err
	}
	return desc, matches, nil
}

// Report delegates monthly aggregation to the summary store.
func (s *Service) Report(ctx context.Context, month time.Month, year int) (string, error) {
	return s.summaries.MonthlyReport(ctx, month, year)
}
