// Package text provides recursive character splitting of documents into
// overlapping chunks suitable for embedding and retrieval.
package text

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// PageUnknown marks a document without a meaningful page number.
const PageUnknown = -1

// Document is one unit of raw source text with provenance.
type Document struct {
	Text     string
	SourceID string
	Page     int
}

// Chunk is a bounded segment of a document. Seq is the chunk's position
// within its source, used for overlap reconstruction.
type Chunk struct {
	Text     string
	SourceID string
	Page     int
	Seq      int
}

// Splitter splits documents on a priority-ordered list of separators,
// falling back to a hard cut when no separator produces a small enough
// piece. Adjacent chunks from the same document share overlap characters.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the maximum chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithChunkOverlap sets the overlap between adjacent chunks in characters.
func WithChunkOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

func NewSplitter(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: []string{"\n\n", "\n", ". ", " ", ""},
	}

	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave room for new content in every chunk.
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

// Split converts documents into chunks. Whitespace-only pieces are dropped.
// The output is deterministic for identical input and configuration.
func (s *Splitter) Split(docs []Document) []Chunk {
	var chunks []Chunk

	for _, doc := range docs {
		pieces := splitRecursive(doc.Text, s.chunkSize-s.overlap, s.separators)

		seq := 0
		prev := ""
		for _, piece := range pieces {
			if strings.TrimSpace(piece) == "" {
				continue
			}

			content := piece
			if seq > 0 && s.overlap > 0 {
				content = tail(prev, s.overlap) + piece
			}
			prev = content

			chunks = append(chunks, Chunk{
				Text:     content,
				SourceID: doc.SourceID,
				Page:     doc.Page,
				Seq:      seq,
			})
			seq++
		}
	}

	return chunks
}

// splitRecursive breaks text into pieces of at most limit characters, trying
// each separator in priority order. Sizes are counted in runes, never bytes,
// so multibyte text is never cut mid-character. The empty separator is a
// hard cut at the rune boundary.
func splitRecursive(text string, limit int, separators []string) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	sep := separators[0]
	if sep == "" {
		var out []string
		runes := []rune(text)
		for len(runes) > limit {
			out = append(out, string(runes[:limit]))
			runes = runes[limit:]
		}
		if len(runes) > 0 {
			out = append(out, string(runes))
		}
		return out
	}

	parts := strings.SplitAfter(text, sep)

	var out []string
	var cur strings.Builder
	curLen := 0
	for _, part := range parts {
		n := utf8.RuneCountInString(part)
		if n > limit {
			if curLen > 0 {
				out = append(out, cur.String())
				cur.Reset()
				curLen = 0
			}
			out = append(out, splitRecursive(part, limit, separators[1:])...)
			continue
		}
		if curLen+n > limit {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
		cur.WriteString(part)
		curLen += n
	}
	if curLen > 0 {
		out = append(out, cur.String())
	}

	return out
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
