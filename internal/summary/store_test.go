package summary_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recall/internal/index"
	"recall/internal/summary"
)

type fakeEmbedder struct {
	vocab []string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, input string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, len(f.vocab))
	lower := strings.ToLower(input)
	for i, w := range f.vocab {
		vec[i] = float32(strings.Count(lower, w))
	}
	return vec, nil
}

type fakeSummarizer struct {
	prompt string
	out    string
	err    error
}

func (f *fakeSummarizer) Summarize(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

var testClock = func() time.Time {
	return time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
}

func newTestStore(t *testing.T, opts ...summary.Option) (*summary.Store, *index.Index, *fakeSummarizer, string) {
	t.Helper()
	dir := t.TempDir()
	idx, err := index.Open("summaries", index.ModeEphemeral, "")
	require.NoError(t, err)
	sum := &fakeSummarizer{out: "synthesized report"}
	opts = append([]summary.Option{summary.WithClock(testClock)}, opts...)
	store := summary.NewStore(dir, &fakeEmbedder{vocab: []string{"budget", "roadmap"}}, idx, sum, opts...)
	return store, idx, sum, dir
}

func TestStore_SaveAndListRange(t *testing.T) {
	store, idx, _, dir := newTestStore(t)

	id, err := store.Save(context.Background(), "budget approved for Q2", "2025-03-14")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, idx.Len())

	path := filepath.Join(dir, "meeting_2025-03-14_20250314_103000.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"date": "2025-03-14"`)
	assert.Contains(t, string(data), `"content": "budget approved for Q2"`)

	previews, err := store.ListRange("2025-03-01", "2025-03-31")
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, "2025-03-14", previews[0].Date)
	assert.Equal(t, "budget approved for Q2", previews[0].Preview)
}

func TestStore_SaveDefaultsToToday(t *testing.T) {
	store, _, _, dir := newTestStore(t)

	_, err := store.Save(context.Background(), "standup notes", "")
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "meeting_2025-03-14_*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestStore_SaveInvalidDate(t *testing.T) {
	store, idx, _, dir := newTestStore(t)

	_, err := store.Save(context.Background(), "notes", "14-03-2025")
	assert.ErrorIs(t, err, summary.ErrInvalidDate)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "invalid date must not write a file")
	assert.Equal(t, 0, idx.Len(), "invalid date must not touch the index")
}

func TestStore_SaveEmptyContent(t *testing.T) {
	store, _, _, _ := newTestStore(t)

	_, err := store.Save(context.Background(), "   ", "2025-03-14")
	assert.Error(t, err)
}

func TestStore_ListRangeDefaultsToLast30Days(t *testing.T) {
	store, _, _, _ := newTestStore(t)

	_, err := store.Save(context.Background(), "old roadmap discussion", "2025-01-02")
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "recent budget review", "2025-03-10")
	require.NoError(t, err)

	previews, err := store.ListRange("", "")
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, "2025-03-10", previews[0].Date)
}

func TestStore_ListRangePreviewTruncated(t *testing.T) {
	store, _, _, _ := newTestStore(t)

	long := strings.Repeat("a", 250)
	_, err := store.Save(context.Background(), long, "2025-03-14")
	require.NoError(t, err)

	previews, err := store.ListRange("2025-03-14", "2025-03-14")
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, strings.Repeat("a", 200)+"...", previews[0].Preview)
}

func TestStore_Search(t *testing.T) {
	store, _, _, _ := newTestStore(t)

	_, err := store.Save(context.Background(), "budget budget budget", "2025-03-10")
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "roadmap roadmap roadmap", "2025-03-11")
	require.NoError(t, err)

	hits, err := store.Search(context.Background(), "roadmap", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2025-03-11", hits[0].Date)
	assert.Contains(t, hits[0].Snippet, "roadmap")
}

func TestStore_SearchNotReady(t *testing.T) {
	store, _, _, _ := newTestStore(t)

	_, err := store.Search(context.Background(), "roadmap", 0)
	assert.ErrorIs(t, err, index.ErrNotReady)
}

func TestStore_MonthlyReport(t *testing.T) {
	store, _, sum, dir := newTestStore(t)

	_, err := store.Save(context.Background(), "budget approved", "2025-03-05")
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "roadmap drafted", "2025-03-20")
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "april kickoff", "2025-04-01")
	require.NoError(t, err)

	report, err := store.MonthlyReport(context.Background(), time.March, 2025)
	require.NoError(t, err)
	assert.Equal(t, "synthesized report", report)

	assert.Contains(t, sum.prompt, "budget approved")
	assert.Contains(t, sum.prompt, "roadmap drafted")
	assert.NotContains(t, sum.prompt, "april kickoff")
	assert.Contains(t, sum.prompt, "Key Decisions Made")

	data, err := os.ReadFile(filepath.Join(dir, "monthly_report_2025_03.txt"))
	require.NoError(t, err)
	assert.Equal(t, "synthesized report", string(data))
}

func TestStore_MonthlyReportNoData(t *testing.T) {
	store, _, sum, dir := newTestStore(t)

	report, err := store.MonthlyReport(context.Background(), time.July, 2025)
	require.NoError(t, err)
	assert.Contains(t, report, "No meeting summaries found")
	assert.Empty(t, sum.prompt, "summarizer must not be called without data")

	_, err = os.Stat(filepath.Join(dir, "monthly_report_2025_07.txt"))
	assert.True(t, os.IsNotExist(err), "no artifact may be written without data")
}

func TestStore_MonthlyReportTruncatesBodies(t *testing.T) {
	store, _, sum, _ := newTestStore(t, summary.WithTruncateLimit(10))

	_, err := store.Save(context.Background(), "budget "+strings.Repeat("x", 50), "2025-03-05")
	require.NoError(t, err)

	_, err = store.MonthlyReport(context.Background(), time.March, 2025)
	require.NoError(t, err)
	assert.Contains(t, sum.prompt, "budget xxx...")
	assert.NotContains(t, sum.prompt, strings.Repeat("x", 50))
}

func TestStore_MonthlyReportSummarizerFailure(t *testing.T) {
	store, _, sum, dir := newTestStore(t)
	sum.err = errors.New("model unavailable")

	_, err := store.Save(context.Background(), "budget approved", "2025-03-05")
	require.NoError(t, err)

	_, err = store.MonthlyReport(context.Background(), time.March, 2025)
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "monthly_report_2025_03.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStore_Reindex(t *testing.T) {
	store, idx, _, _ := newTestStore(t)

	_, err := store.Save(context.Background(), "budget approved", "2025-03-05")
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "roadmap drafted", "2025-03-20")
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())

	n, err := store.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, idx.Len())

	hits, err := store.Search(context.Background(), "budget", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2025-03-05", hits[0].Date)
}
