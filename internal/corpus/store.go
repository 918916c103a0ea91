// Package corpus owns the document ingestion pipeline: it discovers source
// files, extracts their text, chunks and embeds it, and populates the
// corpus vector index.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"recall/internal/index"
	"recall/internal/text"
)

// Page is one unit of extracted document text.
type Page struct {
	Text   string
	Number int
}

// Extractor produces the raw text of one PDF source, page by page.
type Extractor interface {
	Extract(path string) ([]Page, error)
}

// Embedder maps text to fixed-dimension vectors. Batch form must return
// vectors in input order, one per input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Match is one retrieval hit with provenance for citation.
type Match struct {
	Text   string
	Source string
	Page   int
	Score  float64
}

var supportedExts = map[string]bool{".pdf": true, ".txt": true, ".md": true}

// embedBatchSize bounds one batch-embedding request; the API caps how many
// inputs a single call may carry.
const embedBatchSize = 100

type Store struct {
	dir       string
	splitter  *text.Splitter
	extractor Extractor
	embedder  Embedder
	idx       *index.Index
}

func NewStore(dir string, splitter *text.Splitter, extractor Extractor, embedder Embedder, idx *index.Index) *Store {
	return &Store{dir: dir, splitter: splitter, extractor: extractor, embedder: embedder, idx: idx}
}

func (s *Store) Ready() bool { return s.idx.Ready() }

// IngestAll runs the full pipeline. It returns false, without an error,
// when no documents were discovered: an empty corpus is a configuration
// state, not a crash. A document that cannot be extracted is skipped with a
// warning; a dimension mismatch aborts the whole run.
func (s *Store) IngestAll(ctx context.Context) (bool, error) {
	paths, err := s.discover()
	if err != nil {
		return false, fmt.Errorf("discovering documents: %w", err)
	}
	if len(paths) == 0 {
		slog.WarnContext(ctx, "no documents found in corpus directory", "dir", s.dir)
		return false, nil
	}

	var docs []text.Document
	for _, path := range paths {
		sourceID := filepath.Base(path)
		pages, err := s.extract(path)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable document", "source", sourceID, "error", err)
			continue
		}
		for _, p := range pages {
			docs = append(docs, text.Document{Text: p.Text, SourceID: sourceID, Page: p.Number})
		}
	}
	if len(docs) == 0 {
		slog.WarnContext(ctx, "no document yielded any text", "dir", s.dir)
		return false, nil
	}

	chunks := s.splitter.Split(docs)
	if len(chunks) == 0 {
		slog.WarnContext(ctx, "no document yielded any text", "dir", s.dir)
		return false, nil
	}
	slog.InfoContext(ctx, "chunked corpus", "documents", len(paths), "chunks", len(chunks))

	entries, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return false, err
	}

	if err := s.idx.Add(ctx, entries); err != nil {
		return false, fmt.Errorf("indexing corpus: %w", err)
	}

	slog.InfoContext(ctx, "corpus ingested", "entries", len(entries), "mode", s.idx.Mode().String())
	return true, nil
}

// LoadExisting reloads a previously built durable collection. It returns
// index.ErrNotReady when nothing was persisted, so the caller can fall back
// to a fresh ingestion.
func (s *Store) LoadExisting(ctx context.Context) error {
	n, err := s.idx.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading corpus index: %w", err)
	}
	if n == 0 {
		return index.ErrNotReady
	}
	slog.InfoContext(ctx, "corpus index loaded", "entries", n)
	return nil
}

// Rebuild discards the whole collection and ingests from scratch. There is
// no delta-ingestion of only-changed documents.
func (s *Store) Rebuild(ctx context.Context) (bool, error) {
	if err := s.idx.Drop(ctx); err != nil {
		return false, fmt.Errorf("dropping corpus index: %w", err)
	}
	return s.IngestAll(ctx)
}

// Search embeds the query and returns the k nearest chunks.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Match, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.idx.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		page := text.PageUnknown
		if p, err := strconv.Atoi(r.Meta["page"]); err == nil {
			page = p
		}
		matches = append(matches, Match{Text: r.Payload, Source: r.Meta["source"], Page: page, Score: r.Score})
	}
	return matches, nil
}

// ListDocuments returns the source file names currently present in the
// corpus directory, sorted.
func (s *Store) ListDocuments() ([]string, error) {
	paths, err := s.discover()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	return names, nil
}

func (s *Store) discover() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if supportedExts[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Store) extract(path string) ([]Page, error) {
	if strings.ToLower(filepath.Ext(path)) == ".pdf" {
		return s.extractor.Extract(path)
	}

	// Plain-text sources carry no page structure.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []Page{{Text: string(data), Number: text.PageUnknown}}, nil
}

func (s *Store) embedChunks(ctx context.Context, chunks []text.Chunk) ([]index.Entry, error) {
	entries := make([]index.Entry, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		batch := chunks[start:min(start+embedBatchSize, len(chunks))]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			slog.WarnContext(ctx, "batch embedding failed, falling back to per-chunk embedding",
				"batch_start", start, "batch_size", len(batch), "error", err)
			entries = append(entries, s.embedOneByOne(ctx, batch)...)
			continue
		}
		for i, c := range batch {
			entries = append(entries, entryFor(c, vectors[i]))
		}
	}
	if len(entries) == 0 {
		return nil, errors.New("no chunk could be embedded")
	}
	return entries, nil
}

func (s *Store) embedOneByOne(ctx context.Context, chunks []text.Chunk) []index.Entry {
	var entries []index.Entry
	for _, c := range chunks {
		vec, err := s.embedder.Embed(ctx, c.Text)
		if err != nil {
			slog.WarnContext(ctx, "skipping chunk that could not be embedded",
				"source", c.SourceID, "seq", c.Seq, "error", err)
			continue
		}
		entries = append(entries, entryFor(c, vec))
	}
	return entries
}

func entryFor(c text.Chunk, vec []float32) index.Entry {
	return index.Entry{
		Vector:  vec,
		Payload: c.Text,
		Meta: map[string]string{
			"source": c.SourceID,
			"page":   strconv.Itoa(c.Page),
			"seq":    strconv.Itoa(c.Seq),
			"type":   "document",
		},
	}
}
