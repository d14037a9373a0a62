package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind identifies what a PDF was generated from.
type SourceKind string

const (
	SourceHTML     SourceKind = "html"
	SourceMarkdown SourceKind = "markdown"
	SourceText     SourceKind = "text"
	SourceURL      SourceKind = "url"
	SourceUpload   SourceKind = "upload"
)

// Document is the metadata row recorded for each generated PDF.
// The bytes themselves live in object storage outside this service.
type Document struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	OwnerID    uuid.UUID  `json:"owner_id" db:"owner_id"`
	IdentityID uuid.UUID  `json:"identity_id" db:"identity_id"`
	Filename   string     `json:"filename" db:"filename"`
	FileSize   int        `json:"file_size" db:"file_size"`
	Format     string     `json:"format" db:"format"`
	SourceKind SourceKind `json:"source_kind" db:"source_kind"`
	PageCount  *int       `json:"page_count,omitempty" db:"page_count"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
