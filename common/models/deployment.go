package models

import (
	"time"

	"github.com/google/uuid"
)

// DeploymentType distinguishes the two deployable surfaces of an app
type DeploymentType string

const (
	DeploymentTypeSPA DeploymentType = "spa"
	DeploymentTypeAPI DeploymentType = "api"
)

// DeploymentStatus represents the lifecycle of a snapshot
type DeploymentStatus string

const (
	DeploymentPending  DeploymentStatus = "pending"
	DeploymentBuilding DeploymentStatus = "building"
	DeploymentReady    DeploymentStatus = "ready"
	DeploymentFailed   DeploymentStatus = "failed"
)

// IsTerminal reports whether the status can no longer change
func (s DeploymentStatus) IsTerminal() bool {
	return s == DeploymentReady || s == DeploymentFailed
}

// Deployment is one immutable snapshot of an app's deployable surface.
// API deployments own a DeploymentFile set, SPA deployments reference one Artifact.
// Maps to: deployment table
type Deployment struct {
	ID    uuid.UUID `db:"id" json:"id"`
	AppID uuid.UUID `db:"app_id" json:"app_id"`

	// Build that produced this deployment (SPA flow only)
	BuildJobID *uuid.UUID `db:"build_job_id" json:"build_job_id,omitempty"`

	// Uploaded bundle (SPA flow only), NULL while the build is running
	ArtifactID *uuid.UUID `db:"artifact_id" json:"artifact_id,omitempty"`

	Type   DeploymentType   `db:"type" json:"type"`
	Status DeploymentStatus `db:"status" json:"status"`

	Name        *string `db:"name" json:"name,omitempty"`
	Description *string `db:"description" json:"description,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Optimistic concurrency token, bumped on every update
	Version int64 `db:"version" json:"version"`
}

// DeploymentFile is one path entry of a deployment manifest.
// The file references its blob, it does not own it.
// Maps to: deployment_file table (primary key: deployment_id, path)
type DeploymentFile struct {
	DeploymentID uuid.UUID `db:"deployment_id" json:"deployment_id"`
	Path         string    `db:"path" json:"path"`
	BlobID       uuid.UUID `db:"blob_id" json:"blob_id"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`

	// Always the blob content hash
	ETag string `db:"etag" json:"etag"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Well-known manifest paths
const (
	PathOpenAPI       = "openapi.json"
	PathRoutesSummary = "routes.json"
)
