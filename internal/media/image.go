package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// VisionReader turns an image into text (OCR plus a short description).
type VisionReader interface {
	DescribeImage(ctx context.Context, model, mimeType string, data []byte) (string, error)
}

// LabelDetector optionally tags an image with content labels.
type LabelDetector interface {
	DetectLabels(data []byte) ([]string, error)
}

// ImageExtractor reads an image through a vision model and, when a label
// detector is configured, enriches the metadata with detected labels.
type ImageExtractor struct {
	vision VisionReader
	model  string
	labels LabelDetector // nil when label detection is disabled
}

func NewImageExtractor(vision VisionReader, model string, labels LabelDetector) *ImageExtractor {
	return &ImageExtractor{vision: vision, model: model, labels: labels}
}

func (e *ImageExtractor) Extract(ctx context.Context, f File) (string, Metadata, error) {
	meta := Metadata{}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data)); err == nil {
		meta.Width = cfg.Width
		meta.Height = cfg.Height
	}

	text, err := e.vision.DescribeImage(ctx, e.model, f.MimeType, f.Data)
	if err != nil {
		return "", meta, fmt.Errorf("vision extraction failed: %w", err)
	}

	if e.labels != nil {
		// Label detection is best-effort enrichment only.
		if labels, err := e.labels.DetectLabels(f.Data); err == nil {
			meta.Labels = labels
		}
	}
	return text, meta, nil
}
