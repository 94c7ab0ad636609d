package models

import "errors"

var (
	// ErrNotFound is returned when an app, route, deployment, blob or build job does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique constraint rejects an insert
	ErrConflict = errors.New("conflict")

	// ErrDuplicatePath is returned when a manifest already holds the path
	ErrDuplicatePath = errors.New("duplicate manifest path")

	// ErrUpstreamUnavailable is returned when the source host cannot be reached
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrPersistence wraps storage or database failures during a snapshot
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidTransition is returned when a status change would move backwards
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidArtifact is returned when an uploaded bundle is not a zip archive
	ErrInvalidArtifact = errors.New("invalid artifact")
)
