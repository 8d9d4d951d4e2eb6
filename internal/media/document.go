package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// DocumentExtractor pulls plain text out of PDF, DOCX and plain-text files.
type DocumentExtractor struct{}

func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

func (e *DocumentExtractor) Extract(_ context.Context, f File) (string, Metadata, error) {
	switch f.MimeType {
	case "application/pdf":
		text, err := extractPDF(f.Data)
		return text, Metadata{}, err
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/msword":
		text, err := extractDocx(f.Data)
		return text, Metadata{}, err
	case "text/plain", "text/markdown":
		return string(f.Data), Metadata{}, nil
	default:
		return "", Metadata{}, fmt.Errorf("unsupported document type %q", f.MimeType)
	}
}

func extractPDF(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("pdf is empty")
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf stream failed: %w", err)
	}
	return string(out), nil
}

func extractDocx(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("docx is empty")
	}
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx failed: %w", err)
	}
	defer doc.Close()

	text := doc.Editable().GetContent()
	return stripDocxTags(text), nil
}

// stripDocxTags removes the raw WordprocessingML markup the docx library
// leaves in the editable content, keeping only the readable runs.
func stripDocxTags(raw string) string {
	var b strings.Builder
	inTag := false
	for _, r := range raw {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteByte(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
