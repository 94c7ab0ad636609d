package models

import (
	"time"

	"github.com/google/uuid"
)

// BuildJobStatus represents the state of an external build
type BuildJobStatus string

const (
	BuildQueued  BuildJobStatus = "queued"
	BuildStarted BuildJobStatus = "started"
	BuildDone    BuildJobStatus = "done"
	BuildFailed  BuildJobStatus = "failed"
)

// ParseBuildJobStatus converts a wire status into a BuildJobStatus
func ParseBuildJobStatus(s string) (BuildJobStatus, bool) {
	switch BuildJobStatus(s) {
	case BuildQueued, BuildStarted, BuildDone, BuildFailed:
		return BuildJobStatus(s), true
	}
	return "", false
}

// IsTerminal reports whether no further transition is allowed
func (s BuildJobStatus) IsTerminal() bool {
	return s == BuildDone || s == BuildFailed
}

func (s BuildJobStatus) rank() int {
	switch s {
	case BuildQueued:
		return 0
	case BuildStarted:
		return 1
	case BuildDone, BuildFailed:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next keeps the sequence
// queued -> started -> {done|failed} monotonic. Re-applying started is allowed.
func (s BuildJobStatus) CanTransitionTo(next BuildJobStatus) bool {
	if s.IsTerminal() || next.rank() < 0 {
		return false
	}
	if s == next {
		return s == BuildStarted
	}
	return next.rank() > s.rank()
}

// Commit metadata keys stored on a BuildJob
const (
	MetaCommitSHA     = "commit_sha"
	MetaCommitMessage = "commit_message"
	MetaCommitAuthor  = "commit_author"
	MetaBranch        = "branch"
	MetaRepository    = "repository"
)

// BuildJob is a request for an external asynchronous build.
// Maps to: build_job table
type BuildJob struct {
	ID     uuid.UUID      `db:"id" json:"id"`
	AppID  uuid.UUID      `db:"app_id" json:"app_id"`
	Status BuildJobStatus `db:"status" json:"status"`

	// Commit sha, message, author, branch (JSONB)
	Metadata map[string]string `db:"metadata" json:"metadata"`

	// Worker/container that picked the build up
	ContainerID *string `db:"container_id" json:"container_id,omitempty"`

	LogKey *string `db:"log_key" json:"log_key,omitempty"`

	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	StartedAt  *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}
