package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
)

const defaultMaxEmbedChars = 8000

type Embedder struct {
	client   *genai.Client
	model    string
	maxChars int
}

func NewEmbedder(client *genai.Client, model string, maxChars int) *Embedder {
	if maxChars <= 0 {
		maxChars = defaultMaxEmbedChars
	}
	return &Embedder{client: client, model: model, maxChars: maxChars}
}

// Embed returns the embedding vector for text. When the input exceeds the
// length budget and the model rejects it, the input is truncated and
// retried once.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embed(ctx, text)
	if err == nil {
		return vec, nil
	}

	length := utf8.RuneCountInString(text)
	if length <= e.maxChars {
		return nil, err
	}

	slog.WarnContext(ctx, "embedding failed, retrying with truncated input",
		"model", e.model, "length", length, "limit", e.maxChars, "error", err)
	return e.embed(ctx, truncateRunes(text, e.maxChars))
}

// truncateRunes caps s at n characters, never cutting mid-rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func (e *Embedder) embed(ctx context.Context, text string) ([]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embedding content: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, errors.New("empty embedding received")
	}
	return res.Embedding.Values, nil
}

// EmbedBatch embeds texts in one call, returning vectors in input order,
// one per input. Inputs over the length budget are truncated up front.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(truncateRunes(t, e.maxChars)))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("embedding batch: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(res.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
