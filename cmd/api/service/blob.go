package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
	"github.com/lyzr/launchpad/common/storage"
)

type blobStore interface {
	GetByHash(ctx context.Context, hash string) (*models.Blob, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Blob, error)
	Insert(ctx context.Context, blob *models.Blob) error
}

// BlobService handles content-addressed blob storage
type BlobService struct {
	repo    blobStore
	backend storage.Backend
	log     *logger.Logger

	// collapses concurrent creations of the same hash inside this process
	inflight singleflight.Group
}

// NewBlobService creates a new blob service
func NewBlobService(repo blobStore, backend storage.Backend, log *logger.Logger) *BlobService {
	return &BlobService{
		repo:    repo,
		backend: backend,
		log:     log,
	}
}

// HashContent returns the lower-case hex SHA-256 of content
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// GetOrCreate returns the blob for content, storing it on first sight.
// Bytes are written before the metadata row is inserted, so a failed write
// never leaves a row without backing bytes. A concurrent insert of the same
// hash loses on the unique constraint and re-reads the winning row.
func (s *BlobService) GetOrCreate(ctx context.Context, content []byte, contentType string) (*models.Blob, error) {
	hash := HashContent(content)

	// The shared call outlives any single caller: one caller giving up must
	// not fail the others waiting on the same hash.
	shared := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(hash, func() (interface{}, error) {
		return s.getOrCreate(shared, hash, content, contentType)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Blob), nil
	}
}

func (s *BlobService) getOrCreate(ctx context.Context, hash string, content []byte, contentType string) (*models.Blob, error) {
	existing, err := s.repo.GetByHash(ctx, hash)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: lookup blob: %w", models.ErrPersistence, err)
	}

	key := storage.KeyForHash(hash)

	present, err := s.backend.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: stat blob: %w", models.ErrPersistence, err)
	}
	if !present {
		if err := s.backend.Save(ctx, key, bytes.NewReader(content), int64(len(content)), contentType); err != nil {
			s.log.Error("failed to write blob", "hash", hash, "error", err)
			return nil, fmt.Errorf("%w: write blob: %w", models.ErrPersistence, err)
		}
	}

	blob := &models.Blob{
		ID:          uuid.New(),
		Hash:        hash,
		SizeBytes:   int64(len(content)),
		ContentType: contentType,
		StorageKey:  key,
		CreatedAt:   time.Now().UTC(),
	}

	err = s.repo.Insert(ctx, blob)
	if errors.Is(err, models.ErrConflict) {
		s.log.Debug("blob created concurrently, re-reading", "hash", hash)
		winner, err := s.repo.GetByHash(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("%w: reread blob: %w", models.ErrPersistence, err)
		}
		return winner, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: insert blob: %w", models.ErrPersistence, err)
	}

	s.log.Debug("stored blob", "hash", hash, "size_bytes", blob.SizeBytes, "content_type", contentType)
	return blob, nil
}

// Open returns the blob row and a reader over its bytes
func (s *BlobService) Open(ctx context.Context, id uuid.UUID) (*models.Blob, io.ReadCloser, error) {
	blob, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.backend.Open(ctx, blob.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: blob %s has no backing object", models.ErrPersistence, blob.Hash)
		}
		return nil, nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return blob, rc, nil
}

// Read returns the full content of a blob
func (s *BlobService) Read(ctx context.Context, id uuid.UUID) ([]byte, error) {
	_, rc, err := s.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", id, err)
	}
	return data, nil
}
