package media

import (
	"context"
	"fmt"

	"gopherai-knowledge/internal/ai"
)

// Transcriber produces a transcript for audio or video bytes.
type Transcriber interface {
	Transcribe(ctx context.Context, model, fileName string, data []byte) (*ai.Transcription, error)
}

// TranscriptExtractor handles both audio and video through the provider's
// transcription endpoint; the provider demuxes video audio tracks itself.
type TranscriptExtractor struct {
	transcriber Transcriber
	model       string
}

func NewTranscriptExtractor(transcriber Transcriber, model string) *TranscriptExtractor {
	return &TranscriptExtractor{transcriber: transcriber, model: model}
}

func (e *TranscriptExtractor) Extract(ctx context.Context, f File) (string, Metadata, error) {
	result, err := e.transcriber.Transcribe(ctx, e.model, f.Name, f.Data)
	if err != nil {
		return "", Metadata{}, fmt.Errorf("transcription failed: %w", err)
	}
	meta := Metadata{
		Language:    result.Language,
		DurationSec: result.Duration,
	}
	return result.Text, meta, nil
}
