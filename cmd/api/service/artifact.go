package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
)

type artifactStore interface {
	Create(ctx context.Context, a *models.Artifact) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error)
}

// ArtifactService stores SPA bundles uploaded by the build worker
type ArtifactService struct {
	artifacts   artifactStore
	deployments deploymentStore
	blobs       blobCreator
	sitesDir    string
	limits      extractLimits
	log         *logger.Logger
}

// Bounds on what one bundle may unpack to. Zip headers can lie about sizes,
// so the byte limit is enforced on the bytes actually written.
const (
	defaultMaxSiteBytes   = 2 << 30
	defaultMaxSiteEntries = 20000
)

type extractLimits struct {
	maxBytes   int64
	maxEntries int
}

// NewArtifactService creates a new artifact service
func NewArtifactService(artifacts artifactStore, deployments deploymentStore, blobs blobCreator, sitesDir string, log *logger.Logger) *ArtifactService {
	return &ArtifactService{
		artifacts:   artifacts,
		deployments: deployments,
		blobs:       blobs,
		sitesDir:    sitesDir,
		limits:      extractLimits{maxBytes: defaultMaxSiteBytes, maxEntries: defaultMaxSiteEntries},
		log:         log,
	}
}

// UploadArtifact stores a zip bundle for a running build. The bytes are
// deduplicated through the blob store, extracted under
// {sitesDir}/{appID}/{deploymentID} and attached to the build's placeholder
// deployment. The deployment is promoted when the worker reports done.
func (s *ArtifactService) UploadArtifact(ctx context.Context, appID, buildID uuid.UUID, fileName string, content []byte) (*models.Artifact, error) {
	if mtype := mimetype.Detect(content); !mtype.Is(models.ContentTypeZip) {
		return nil, fmt.Errorf("%w: expected zip archive, got %s", models.ErrInvalidArtifact, mtype.String())
	}

	deployment, err := s.deployments.GetByBuildJob(ctx, buildID)
	if err != nil {
		return nil, err
	}
	if deployment.AppID != appID {
		return nil, fmt.Errorf("build %s: %w", buildID, models.ErrNotFound)
	}
	if deployment.Status != models.DeploymentBuilding {
		return nil, fmt.Errorf("deployment %s is %s: %w", deployment.ID, deployment.Status, models.ErrInvalidTransition)
	}

	blob, err := s.blobs.GetOrCreate(ctx, content, models.ContentTypeZip)
	if err != nil {
		return nil, err
	}

	dest := s.SiteDir(appID, deployment.ID)
	files, err := extractZip(content, dest, s.limits)
	if err != nil {
		os.RemoveAll(dest)
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidArtifact, err)
	}

	artifact := &models.Artifact{
		ID:        uuid.New(),
		AppID:     appID,
		BlobID:    blob.ID,
		FileName:  filepath.Base(fileName),
		SizeBytes: int64(len(content)),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.artifacts.Create(ctx, artifact); err != nil {
		return nil, err
	}

	if err := s.deployments.AttachArtifact(ctx, deployment.ID, artifact.ID); err != nil {
		return nil, err
	}

	s.log.Info("artifact uploaded",
		"app_id", appID,
		"build_id", buildID,
		"deployment_id", deployment.ID,
		"artifact_id", artifact.ID,
		"blob_hash", blob.Hash,
		"files", files,
	)

	return artifact, nil
}

// SiteDir returns the extraction directory of a deployment
func (s *ArtifactService) SiteDir(appID, deploymentID uuid.UUID) string {
	return filepath.Join(s.sitesDir, appID.String(), deploymentID.String())
}

// extractZip unpacks an archive into destDir and returns the number of files
// written. Entries resolving outside destDir are rejected, as are archives
// over the entry or uncompressed byte limits.
func extractZip(content []byte, destDir string, limits extractLimits) (int, error) {
	r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("failed to open zip: %w", err)
	}
	if len(r.File) > limits.maxEntries {
		return 0, fmt.Errorf("archive has %d entries, limit is %d", len(r.File), limits.maxEntries)
	}

	root := filepath.Clean(destDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create site dir: %w", err)
	}

	files := 0
	budget := limits.maxBytes
	for _, f := range r.File {
		fpath := filepath.Join(root, f.Name)
		if !strings.HasPrefix(fpath, root+string(os.PathSeparator)) {
			return files, fmt.Errorf("illegal file path in archive: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0o755); err != nil {
				return files, err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
			return files, err
		}
		written, err := extractFile(f, fpath, budget)
		if err != nil {
			return files, err
		}
		budget -= written
		files++
	}
	return files, nil
}

// extractFile writes one entry, failing once more than budget bytes come out
func extractFile(f *zip.File, fpath string, budget int64) (int64, error) {
	if f.UncompressedSize64 > uint64(budget) {
		return 0, fmt.Errorf("%s: uncompressed size exceeds the site limit", f.Name)
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", f.Name, err)
	}

	n, err := io.CopyN(out, rc, budget+1)
	if err != nil && !errors.Is(err, io.EOF) {
		out.Close()
		return n, fmt.Errorf("failed to write %s: %w", f.Name, err)
	}
	if n > budget {
		out.Close()
		return n, fmt.Errorf("%s: uncompressed size exceeds the site limit", f.Name)
	}
	return n, out.Close()
}
