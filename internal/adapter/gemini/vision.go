package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

const describeImagePrompt = `Describe the shapes, objects and any visible text in this image.
Be specific about geometry, dimensions and labels so the description can be
used as a search query against technical documents.`

var imageFormats = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".gif":  "gif",
	".bmp":  "bmp",
	".webp": "webp",
}

type Vision struct {
	client *genai.Client
	model  string
}

func NewVision(client *genai.Client, model string) *Vision {
	return &Vision{client: client, model: model}
}

// DescribeImage returns a textual description of the image at path. The
// description is suitable for use verbatim as a search query.
func (v *Vision) DescribeImage(ctx context.Context, path string) (string, error) {
	format, ok := imageFormats[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("unsupported image format %q", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	gm := v.client.GenerativeModel(v.model)
	resp, err := gm.GenerateContent(ctx, genai.ImageData(format, data), genai.Text(describeImagePrompt))
	if err != nil {
		return "", fmt.Errorf("describing image: %w", err)
	}

	text := flattenResponse(resp)
	if text == "" {
		return "", errors.New("empty image description")
	}
	return text, nil
}
