// Package gemini adapts the Gemini API to the capabilities the retrieval
// core depends on: embedding, summarization and image description. One
// client is constructed at startup and shared by all three adapters; it is
// stateless per call and safe for concurrent use.
package gemini

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*genai.Client, error) {
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	return genai.NewClient(ctx, all...)
}
