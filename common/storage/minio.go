package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig configures an S3-compatible backend
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// MinioBackend stores objects in an S3-compatible bucket
type MinioBackend struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioBackend connects to the endpoint and ensures the bucket exists
func NewMinioBackend(ctx context.Context, cfg MinioConfig) (*MinioBackend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioBackend{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (m *MinioBackend) objectName(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	if m.prefix == "" {
		return key, nil
	}
	return path.Join(m.prefix, key), nil
}

// Save uploads the object. S3 PUT is atomic per object.
func (m *MinioBackend) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	name, err := m.objectName(key)
	if err != nil {
		return err
	}
	_, err = m.client.PutObject(ctx, m.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Open returns a streaming reader for the object
func (m *MinioBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	name, err := m.objectName(key)
	if err != nil {
		return nil, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateError(key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, translateError(key, err)
	}
	return obj, nil
}

// Exists reports whether the object is present
func (m *MinioBackend) Exists(ctx context.Context, key string) (bool, error) {
	name, err := m.objectName(key)
	if err != nil {
		return false, err
	}
	_, err = m.client.StatObject(ctx, m.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", key, err)
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func translateError(key string, err error) error {
	if isNoSuchKey(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("failed to read %s: %w", key, err)
}
