package parser

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/kestrel0/ragdex/internal/config"
)

// parseImage produces a single unit whose content comes from the
// transcription collaborator. A transcription failure fails the whole
// file's indexing; there is no partial result for images.
func (p *Parser) parseImage(ctx context.Context, path string) ([]Unit, error) {
	if p.transcriber == nil {
		return nil, fmt.Errorf("%w: no transcriber configured for %s", ErrUnsupported, path)
	}

	content, err := p.transcriber.Transcribe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("transcribing image %s: %w", path, err)
	}

	return []Unit{{
		Content:  content,
		Metadata: baseMetadata(path, KindImage),
	}}, nil
}

// transcribePrompt asks for a faithful transcription rather than a
// description, so indexed text matches what a reader of the image sees.
const transcribePrompt = "Transcribe all text visible in this image. " +
	"Return only the transcribed text, without commentary. " +
	"If the image contains no text, describe its content in one short paragraph."

// imageMIMETypes maps supported image extensions to their MIME types.
var imageMIMETypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
}

// VisionTranscriber transcribes images through a Genkit vision model.
type VisionTranscriber struct {
	g     *genkit.Genkit
	model string
}

// NewVisionTranscriber creates a Transcriber backed by the given model.
// The name is qualified with the provider prefix here so a bare config
// value resolves the same way it does for the answer loop.
func NewVisionTranscriber(g *genkit.Genkit, model string) *VisionTranscriber {
	return &VisionTranscriber{g: g, model: config.GoogleAIModel(model)}
}

// Transcribe reads the image and sends it inline to the vision model.
// No timeout is applied here; callers needing bounded latency wrap ctx.
func (t *VisionTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	mimeType, ok := imageMIMETypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image %s: %w", path, err)
	}

	dataURI := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	resp, err := genkit.Generate(ctx, t.g,
		ai.WithModelName(t.model),
		ai.WithMessages(ai.NewUserMessage(
			ai.NewMediaPart(mimeType, dataURI),
			ai.NewTextPart(transcribePrompt),
		)),
	)
	if err != nil {
		return "", fmt.Errorf("vision model call for %s: %w", path, err)
	}

	return resp.Text(), nil
}
