package models

import (
	"time"

	"github.com/google/uuid"
)

// Blob is an immutable, content-addressed payload.
// Maps to: blob table
type Blob struct {
	ID uuid.UUID `db:"id" json:"id"`

	// Lower-case hex SHA-256 of the content. Unique.
	Hash string `db:"hash" json:"hash"`

	SizeBytes   int64  `db:"size_bytes" json:"size_bytes"`
	ContentType string `db:"content_type" json:"content_type"`

	// Opaque key inside the storage backend (see storage.KeyForHash)
	StorageKey string `db:"storage_key" json:"storage_key"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Content types used for snapshot files
const (
	ContentTypeJSON       = "application/json"
	ContentTypeJavaScript = "application/javascript"
	ContentTypeText       = "text/plain"
	ContentTypeZip        = "application/zip"
)
