// Package storage holds the physical byte stores behind the blob table.
// Keys are opaque slash-separated strings; KeyForHash derives the
// content-addressed key for a blob.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the backend
var ErrNotFound = errors.New("storage object not found")

// ErrInvalidKey is returned for keys that are empty or escape the backend root
var ErrInvalidKey = errors.New("invalid storage key")

// Backend stores immutable objects by key
type Backend interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// KeyForHash returns the sharded key for a lower-case hex digest:
// blobs/ab/cd/abcd...
func KeyForHash(hash string) string {
	if len(hash) < 4 {
		return "blobs/" + hash
	}
	return fmt.Sprintf("blobs/%s/%s/%s", hash[:2], hash[2:4], hash)
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
