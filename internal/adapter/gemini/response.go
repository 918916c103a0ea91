package gemini

import (
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// flattenResponse normalizes a model response into one plain string at the
// adapter boundary, so internal code never inspects candidate or part
// structures.
func flattenResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
