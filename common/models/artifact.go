package models

import (
	"time"

	"github.com/google/uuid"
)

// Artifact is an uploaded SPA bundle (one zip) backed by a shared blob.
// Two apps uploading identical bytes get two Artifact rows and one Blob.
// Maps to: artifact table
type Artifact struct {
	ID     uuid.UUID `db:"id" json:"id"`
	AppID  uuid.UUID `db:"app_id" json:"app_id"`
	BlobID uuid.UUID `db:"blob_id" json:"blob_id"`

	// Original upload name, informational only
	FileName string `db:"file_name" json:"file_name"`

	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
