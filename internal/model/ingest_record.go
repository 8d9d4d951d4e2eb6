package model

import "time"

// IngestRecord is the audit trail of one ingested file: what came in and how
// many of its chunks made it into the index. Raw file content is never
// stored.
type IngestRecord struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	RequestID        string    `gorm:"size:64;index" json:"request_id"`
	FileName         string    `gorm:"size:256;not null" json:"file_name"`
	FileType         string    `gorm:"size:128;not null" json:"file_type"`
	Category         string    `gorm:"size:16;not null;index" json:"category"`
	TotalChunks      int       `gorm:"not null" json:"total_chunks"`
	SuccessfulChunks int       `gorm:"not null" json:"successful_chunks"`
	Error            string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
