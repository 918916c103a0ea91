package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

type Summarizer struct {
	client *genai.Client
	model  string
}

func NewSummarizer(client *genai.Client, model string) *Summarizer {
	return &Summarizer{client: client, model: model}
}

func (s *Summarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	gm := s.client.GenerativeModel(s.model)
	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}

	text := flattenResponse(resp)
	if text == "" {
		return "", errors.New("empty summarization response")
	}
	return text, nil
}
