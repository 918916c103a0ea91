// Package summary persists dated meeting summaries as JSON records and
// mirrors them into a dedicated vector index for semantic search and
// monthly aggregation.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"recall/internal/index"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "20060102_150405"

	previewLen = 200
	snippetLen = 300

	// DefaultSearchK is the neighbor count for summary search.
	DefaultSearchK = 5

	defaultTruncateLimit = 3000
)

// ErrInvalidDate rejects dates not in YYYY-MM-DD form. Nothing is written
// when it is returned.
var ErrInvalidDate = errors.New("invalid date, want YYYY-MM-DD")

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Record is the durable form of one stored summary.
type Record struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// Preview is one row of a date-range listing.
type Preview struct {
	Date    string
	Preview string
}

// Hit is one semantic search result over stored summaries.
type Hit struct {
	Date    string
	Snippet string
	Score   float64
}

type Store struct {
	dir           string
	embedder      Embedder
	idx           *index.Index
	summarizer    Summarizer
	truncateLimit int
	now           func() time.Time
}

type Option func(*Store)

// WithClock fixes the store's notion of now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTruncateLimit caps how much of each summary body is fed into the
// monthly report prompt.
func WithTruncateLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.truncateLimit = n
		}
	}
}

func NewStore(dir string, embedder Embedder, idx *index.Index, summarizer Summarizer, opts ...Option) *Store {
	s := &Store{
		dir:           dir,
		embedder:      embedder,
		idx:           idx,
		summarizer:    summarizer,
		truncateLimit: defaultTruncateLimit,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load rehydrates the summary index from durable storage.
func (s *Store) Load(ctx context.Context) (int, error) {
	return s.idx.Load(ctx)
}

// Save validates the date, writes the durable record, then adds it to the
// index. The file is written first: a crash in between loses only the
// vector entry, which Reindex rebuilds from the files.
func (s *Store) Save(ctx context.Context, content, date string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", errors.New("empty summary content")
	}

	now := s.now()
	if date == "" {
		date = now.Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("creating summary dir: %w", err)
	}

	ts := now.Format(timestampLayout)
	rec := Record{
		ID:        uuid.NewString(),
		Date:      date,
		Timestamp: ts,
		Content:   content,
		CreatedAt: now.Format(time.RFC3339),
	}

	name := fmt.Sprintf("meeting_%s_%s.json", date, ts)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling summary record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o600); err != nil {
		return "", fmt.Errorf("writing summary record: %w", err)
	}

	if err := s.indexRecord(ctx, rec, name); err != nil {
		return "", fmt.Errorf("summary %s saved but not indexed: %w", name, err)
	}

	slog.InfoContext(ctx, "meeting summary stored", "date", date, "file", name)
	return rec.ID, nil
}

func (s *Store) indexRecord(ctx context.Context, rec Record, source string) error {
	vec, err := s.embedder.Embed(ctx, rec.Content)
	if err != nil {
		return fmt.Errorf("embedding summary: %w", err)
	}
	return s.idx.Add(ctx, []index.Entry{{
		Vector:  vec,
		Payload: rec.Content,
		Meta: map[string]string{
			"source": source,
			"date":   rec.Date,
			"type":   "meeting_summary",
		},
	}})
}

// ListRange returns previews of records whose date falls in [start, end],
// both inclusive, ascending by date. Empty bounds default to the last 30
// days ending today.
func (s *Store) ListRange(start, end string) ([]Preview, error) {
	now := s.now()
	if start == "" {
		start = now.AddDate(0, 0, -30).Format(dateLayout)
	}
	if end == "" {
		end = now.Format(dateLayout)
	}
	for _, d := range []string{start, end} {
		if _, err := time.Parse(dateLayout, d); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, d)
		}
	}

	recs, err := s.readRecords()
	if err != nil {
		return nil, err
	}

	var out []Preview
	for _, r := range recs {
		if start <= r.Date && r.Date <= end {
			out = append(out, Preview{Date: r.Date, Preview: truncate(r.Content, previewLen)})
		}
	}
	return out, nil
}

// Search runs a semantic query over the summary index. k <= 0 uses
// DefaultSearchK.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = DefaultSearchK
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	results, err := s.idx.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{Date: r.Meta["date"], Snippet: truncate(r.Payload, snippetLen), Score: r.Score})
	}
	return hits, nil
}

// MonthlyReport aggregates the month's records into a synthesized report
// and persists it, overwriting any prior artifact for that month. With no
// records it returns an explicit no-data message and writes nothing.
func (s *Store) MonthlyReport(ctx context.Context, month time.Month, year int) (string, error) {
	if month < time.January || month > time.December {
		return "", fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	start := first.Format(dateLayout)
	end := first.AddDate(0, 1, -1).Format(dateLayout)

	recs, err := s.readRecords()
	if err != nil {
		return "", err
	}
	var inMonth []Record
	for _, r := range recs {
		if start <= r.Date && r.Date <= end {
			inMonth = append(inMonth, r.Record)
		}
	}
	if len(inMonth) == 0 {
		return fmt.Sprintf("No meeting summaries found for %d/%d", month, year), nil
	}

	parts := make([]string, 0, len(inMonth))
	for _, r := range inMonth {
		parts = append(parts, fmt.Sprintf("Date: %s\n%s", r.Date, truncate(r.Content, s.truncateLimit)))
	}
	combined := strings.Join(parts, "\n\n---\n\n")

	prompt := fmt.Sprintf(monthlyReportPrompt, int(month), year, combined, int(month), year)
	report, err := s.summarizer.Summarize(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("synthesizing monthly report: %w", err)
	}

	name := fmt.Sprintf("monthly_report_%d_%02d.txt", year, int(month))
	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(report), 0o600); err != nil {
		return "", fmt.Errorf("writing monthly report: %w", err)
	}

	slog.InfoContext(ctx, "monthly report generated", "month", int(month), "year", year, "summaries", len(inMonth))
	return report, nil
}

// Reindex drops the summary index and rebuilds it from the record files.
// A record that cannot be embedded is skipped with a warning.
func (s *Store) Reindex(ctx context.Context) (int, error) {
	if err := s.idx.Drop(ctx); err != nil {
		return 0, fmt.Errorf("dropping summary index: %w", err)
	}

	recs, err := s.readRecords()
	if err != nil {
		return 0, err
	}

	indexed := 0
	for _, r := range recs {
		if err := s.indexRecord(ctx, r.Record, r.File); err != nil {
			slog.WarnContext(ctx, "skipping summary during reindex", "file", r.File, "error", err)
			continue
		}
		indexed++
	}
	return indexed, nil
}

type storedRecord struct {
	Record
	File string
}

// readRecords loads every record file, sorted by filename. The filename
// pattern embeds date then timestamp, so lexical order is chronological.
// A malformed file is skipped with a warning, not fatal.
func (s *Store) readRecords() ([]storedRecord, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "meeting_*.json"))
	if err != nil {
		return nil, fmt.Errorf("globbing summary records: %w", err)
	}
	sort.Strings(paths)

	recs := make([]storedRecord, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			slog.Warn("skipping unreadable summary record", "file", p, "error", err)
			continue
		}
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			slog.Warn("skipping malformed summary record", "file", p, "error", err)
			continue
		}
		recs = append(recs, storedRecord{Record: r, File: filepath.Base(p)})
	}
	return recs, nil
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
