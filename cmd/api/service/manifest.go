package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lyzr/launchpad/common/models"
)

// Manifest collects the path to blob entries of one deployment before they
// are committed. Safe for concurrent AddFile calls.
type Manifest struct {
	deploymentID uuid.UUID
	createdAt    time.Time

	mu    sync.Mutex
	files map[string]models.DeploymentFile
}

// NewManifest creates an empty manifest for a deployment
func NewManifest(deploymentID uuid.UUID) *Manifest {
	return &Manifest{
		deploymentID: deploymentID,
		createdAt:    time.Now().UTC(),
		files:        make(map[string]models.DeploymentFile),
	}
}

// DeploymentID returns the owning deployment
func (m *Manifest) DeploymentID() uuid.UUID {
	return m.deploymentID
}

// AddFile adds path. The etag is always the blob hash. Paths are computed,
// so a duplicate indicates a bug and is rejected with models.ErrDuplicatePath.
func (m *Manifest) AddFile(path string, blob *models.Blob, sizeBytes int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[path]; exists {
		return fmt.Errorf("%s: %w", path, models.ErrDuplicatePath)
	}

	m.files[path] = models.DeploymentFile{
		DeploymentID: m.deploymentID,
		Path:         path,
		BlobID:       blob.ID,
		SizeBytes:    sizeBytes,
		ETag:         blob.Hash,
		CreatedAt:    m.createdAt,
	}
	return nil
}

// Len returns the number of files
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// Files returns the entries sorted by path
func (m *Manifest) Files() []models.DeploymentFile {
	m.mu.Lock()
	defer m.mu.Unlock()

	files := make([]models.DeploymentFile, 0, len(m.files))
	for _, f := range m.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}
