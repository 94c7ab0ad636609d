package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"github.com/lyzr/launchpad/common/models"
)

// DeploymentDiff compares two deployments of the same app
type DeploymentDiff struct {
	From    uuid.UUID `json:"from"`
	To      uuid.UUID `json:"to"`
	Added   []string  `json:"added"`
	Removed []string  `json:"removed"`
	Changed []string  `json:"changed"`

	// RFC 7386 merge patch turning the old openapi.json into the new one.
	// Null when either deployment has no openapi.json.
	OpenAPIPatch json.RawMessage `json:"openapiPatch"`
}

// DiffService compares deployment manifests
type DiffService struct {
	snapshots *SnapshotService
}

// NewDiffService creates a new diff service
func NewDiffService(snapshots *SnapshotService) *DiffService {
	return &DiffService{snapshots: snapshots}
}

// Diff lists the paths added, removed and changed between two deployments.
// Files compare by etag.
func (s *DiffService) Diff(ctx context.Context, appID, fromID, toID uuid.UUID) (*DeploymentDiff, error) {
	fromFiles, err := s.snapshots.ListFiles(ctx, appID, fromID)
	if err != nil {
		return nil, err
	}
	toFiles, err := s.snapshots.ListFiles(ctx, appID, toID)
	if err != nil {
		return nil, err
	}

	diff := &DeploymentDiff{
		From:    fromID,
		To:      toID,
		Added:   []string{},
		Removed: []string{},
		Changed: []string{},
	}

	before := make(map[string]string, len(fromFiles))
	for _, f := range fromFiles {
		before[f.Path] = f.ETag
	}
	after := make(map[string]string, len(toFiles))
	for _, f := range toFiles {
		after[f.Path] = f.ETag
		etag, ok := before[f.Path]
		switch {
		case !ok:
			diff.Added = append(diff.Added, f.Path)
		case etag != f.ETag:
			diff.Changed = append(diff.Changed, f.Path)
		}
	}
	for _, f := range fromFiles {
		if _, ok := after[f.Path]; !ok {
			diff.Removed = append(diff.Removed, f.Path)
		}
	}

	if before[models.PathOpenAPI] == "" || after[models.PathOpenAPI] == "" {
		return diff, nil
	}
	if before[models.PathOpenAPI] == after[models.PathOpenAPI] {
		diff.OpenAPIPatch = json.RawMessage(`{}`)
		return diff, nil
	}

	original, err := s.readFile(ctx, appID, fromID, models.PathOpenAPI)
	if err != nil {
		return nil, err
	}
	modified, err := s.readFile(ctx, appID, toID, models.PathOpenAPI)
	if err != nil {
		return nil, err
	}

	patch, err := jsonpatch.CreateMergePatch(original, modified)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s: %w", models.PathOpenAPI, err)
	}
	diff.OpenAPIPatch = patch
	return diff, nil
}

func (s *DiffService) readFile(ctx context.Context, appID, deploymentID uuid.UUID, path string) ([]byte, error) {
	content, err := s.snapshots.OpenFile(ctx, appID, deploymentID, path)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("open %s of %s: %w", path, deploymentID, err)
	}
	defer content.Body.Close()
	return io.ReadAll(content.Body)
}
