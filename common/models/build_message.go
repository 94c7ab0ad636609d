package models

// Queue topics shared by the api, the build worker and the build-reactor
const (
	TopicBuildRequests = "build.requests"
	TopicBuildEvents   = "build.events"
)

// BuildRequest is published on TopicBuildRequests for the external worker
type BuildRequest struct {
	BuildID        string            `json:"build_id"`
	AppID          string            `json:"app_id"`
	CloneURL       string            `json:"clone_url"`
	RepoFullName   string            `json:"repo_full_name"`
	Branch         string            `json:"branch"`
	Commands       []string          `json:"commands"`
	OutputDir      string            `json:"output_dir,omitempty"`
	EnvVars        map[string]string `json:"env_vars"`
	ArtifactTarget string            `json:"artifact_target"`
	CreatedAt      int64             `json:"created_at"`
}

// BuildEvent is consumed from TopicBuildEvents
type BuildEvent struct {
	BuildID     string `json:"build_id"`
	Status      string `json:"status"`
	ContainerID string `json:"container_id,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// BuildStatusMessage is fanned out to live subscribers of an app
type BuildStatusMessage struct {
	BuildID string         `json:"buildId"`
	AppID   string         `json:"appId"`
	Status  BuildJobStatus `json:"status"`
	At      int64          `json:"at"`
}
