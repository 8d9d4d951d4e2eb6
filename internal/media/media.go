package media

import (
	"fmt"
)

// Category tags a supported upload by the kind of extraction it needs.
type Category string

const (
	CategoryDocument Category = "document"
	CategoryImage    Category = "image"
	CategoryAudio    Category = "audio"
	CategoryVideo    Category = "video"
)

const (
	// MaxDocumentBytes caps plain document uploads.
	MaxDocumentBytes = 10 << 20 // 10 MB
	// MaxMediaBytes caps image, audio and video uploads.
	MaxMediaBytes = 50 << 20 // 50 MB
)

// File is one uploaded file: raw bytes plus what the client declared about
// them. It lives only for the duration of a single ingestion request.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Metadata carries optional structured facts recovered during extraction.
type Metadata struct {
	Width       int      `json:"width,omitempty"`
	Height      int      `json:"height,omitempty"`
	DurationSec float64  `json:"duration_sec,omitempty"`
	Language    string   `json:"language,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

// Normalized is the outcome of extraction: searchable plain text plus the
// category tag and any recovered metadata.
type Normalized struct {
	Text     string
	Category Category
	Metadata Metadata
}

// ExtractionError marks a failure scoped to a single file. Callers handling a
// batch must record it and keep going with the remaining files.
type ExtractionError struct {
	FileName string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %q: %v", e.FileName, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ValidationError marks a boundary rejection: disallowed type or oversize
// file. It is always recoverable by correcting the upload. Oversize
// distinguishes a size rejection from a type rejection so boundaries can
// report a precise code.
type ValidationError struct {
	FileName string
	Reason   string
	Oversize bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid upload %q: %s", e.FileName, e.Reason)
}

var mimeCategories = map[string]Category{
	"application/pdf": CategoryDocument,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": CategoryDocument,
	"application/msword": CategoryDocument,
	"text/plain":         CategoryDocument,
	"text/markdown":      CategoryDocument,

	"image/png":  CategoryImage,
	"image/jpeg": CategoryImage,
	"image/webp": CategoryImage,
	"image/gif":  CategoryImage,

	"audio/mpeg": CategoryAudio,
	"audio/wav":  CategoryAudio,
	"audio/mp4":  CategoryAudio,
	"audio/webm": CategoryAudio,
	"audio/ogg":  CategoryAudio,

	"video/mp4":       CategoryVideo,
	"video/webm":      CategoryVideo,
	"video/quicktime": CategoryVideo,
}

// CategoryOf maps a declared mime type to its category; ok is false for types
// outside the allow-list.
func CategoryOf(mimeType string) (Category, bool) {
	c, ok := mimeCategories[mimeType]
	return c, ok
}

// SizeLimit returns the byte ceiling for a category.
func SizeLimit(c Category) int64 {
	if c == CategoryDocument {
		return MaxDocumentBytes
	}
	return MaxMediaBytes
}

// Validate checks the declared mime type against the allow-list and the size
// against the category ceiling. It runs before any extraction work.
func Validate(name, mimeType string, size int64) error {
	category, ok := CategoryOf(mimeType)
	if !ok {
		return &ValidationError{
			FileName: name,
			Reason:   fmt.Sprintf("unsupported file type %q", mimeType),
		}
	}
	if limit := SizeLimit(category); size > limit {
		kind := "media"
		if category == CategoryDocument {
			kind = "document"
		}
		return &ValidationError{
			FileName: name,
			Reason:   fmt.Sprintf("file size %d bytes exceeds the %dMB %s limit", size, limit>>20, kind),
			Oversize: true,
		}
	}
	return nil
}
