package media

import (
	"context"
	"strings"

	"gopherai-knowledge/internal/platform/logger"
)

// Extractor converts raw bytes of one category into plain text plus metadata.
type Extractor interface {
	Extract(ctx context.Context, f File) (string, Metadata, error)
}

// Normalizer validates an upload and dispatches it to the extractor for its
// category. It is a pure transform: no side effects, nothing persisted.
type Normalizer struct {
	extractors map[Category]Extractor
	log        *logger.Logger
}

func NewNormalizer(documents, images, audio, video Extractor, log *logger.Logger) *Normalizer {
	return &Normalizer{
		extractors: map[Category]Extractor{
			CategoryDocument: documents,
			CategoryImage:    images,
			CategoryAudio:    audio,
			CategoryVideo:    video,
		},
		log: log.With("component", "normalizer"),
	}
}

// Normalize turns one file into searchable text. A *ValidationError means the
// file was rejected before extraction; an *ExtractionError means this file is
// corrupt or unreadable and siblings in the same batch should still proceed.
func (n *Normalizer) Normalize(ctx context.Context, f File) (*Normalized, error) {
	if err := Validate(f.Name, f.MimeType, int64(len(f.Data))); err != nil {
		return nil, err
	}
	category, _ := CategoryOf(f.MimeType)

	extractor := n.extractors[category]
	if extractor == nil {
		return nil, &ExtractionError{FileName: f.Name, Err: errNoExtractor(category)}
	}

	text, meta, err := extractor.Extract(ctx, f)
	if err != nil {
		return nil, &ExtractionError{FileName: f.Name, Err: err}
	}
	text = strings.TrimSpace(text)
	n.log.Debug("normalized file", "file", f.Name, "category", category, "chars", len(text))

	return &Normalized{Text: text, Category: category, Metadata: meta}, nil
}

type errNoExtractor Category

func (e errNoExtractor) Error() string {
	return "no extractor configured for category " + string(e)
}
