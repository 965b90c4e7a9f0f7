package models

import (
	"time"

	"github.com/google/uuid"
)

// Media tracks one scraped photo through download and upload. Rows are
// keyed by original URL so repeated scrapes of the same photo are cheap.
type Media struct {
	ID            uuid.UUID `json:"id" db:"id"`
	S3Key         *string   `json:"s3_key" db:"s3_key"` // nil until uploaded
	ContentHash   string    `json:"content_hash" db:"content_hash"`
	MimeType      string    `json:"mime_type" db:"mime_type"`
	FileSizeBytes *int64    `json:"file_size_bytes" db:"file_size_bytes"`
	OriginalURL   string    `json:"original_url" db:"original_url"`
	Status        string    `json:"status" db:"status"`
	Attempts      int       `json:"attempts" db:"attempts"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

const (
	MediaStatusPending  = "pending"
	MediaStatusUploaded = "uploaded"
	MediaStatusFailed   = "failed"
)
