package models

import (
	"time"

	"github.com/google/uuid"
)

// AppState represents the lifecycle state of an app
type AppState string

const (
	AppActive    AppState = "active"
	AppSuspended AppState = "suspended"
	AppDeleted   AppState = "deleted"
)

// CorsSettings is published verbatim to the gateway
type CorsSettings struct {
	Enabled          bool     `json:"enabled"`
	AllowedOrigins   []string `json:"allowedOrigins"`
	AllowedMethods   []string `json:"allowedMethods"`
	AllowedHeaders   []string `json:"allowedHeaders"`
	AllowCredentials bool     `json:"allowCredentials"`
	MaxAgeSeconds    int      `json:"maxAgeSeconds"`
}

// RoutingConfig controls how the gateway splits traffic between the SPA and the API
type RoutingConfig struct {
	APIPrefix       string `json:"apiPrefix"`
	SPAFallback     bool   `json:"spaFallback"`
	CustomDomain    string `json:"customDomain,omitempty"`
	TrailingSlashes bool   `json:"trailingSlashes"`
}

// BuildConfig describes how the external worker builds the SPA
type BuildConfig struct {
	Branch         string `json:"branch"`
	InstallCommand string `json:"installCommand,omitempty"`
	BuildCommand   string `json:"buildCommand,omitempty"`
	OutputDir      string `json:"outputDir,omitempty"`

	// CEL expression over branch, event and repository. Empty means
	// "push to Branch".
	Trigger string `json:"trigger,omitempty"`
}

// Commands returns the ordered shell commands sent to the build worker
func (b BuildConfig) Commands() []string {
	var cmds []string
	if b.InstallCommand != "" {
		cmds = append(cmds, b.InstallCommand)
	}
	if b.BuildCommand != "" {
		cmds = append(cmds, b.BuildCommand)
	}
	return cmds
}

// App is the tenant-owned unit being deployed.
// Maps to: app table
type App struct {
	ID      uuid.UUID `db:"id" json:"id"`
	Slug    string    `db:"slug" json:"slug"`
	Name    string    `db:"name" json:"name"`
	OwnerID string    `db:"owner_id" json:"owner_id"`
	State   AppState  `db:"state" json:"state"`

	Cors     CorsSettings   `db:"cors" json:"cors"`
	Routing  RoutingConfig  `db:"routing" json:"routing"`
	Build    BuildConfig    `db:"build" json:"build"`
	Settings map[string]any `db:"settings" json:"settings"`

	// At most one active deployment of each kind; both must point to Ready
	// deployments owned by this app.
	ActiveSPADeploymentID *uuid.UUID `db:"active_spa_deployment_id" json:"active_spa_deployment_id,omitempty"`
	ActiveAPIDeploymentID *uuid.UUID `db:"active_api_deployment_id" json:"active_api_deployment_id,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ActiveDeploymentID returns the active pointer for the deployment kind
func (a *App) ActiveDeploymentID(t DeploymentType) *uuid.UUID {
	if t == DeploymentTypeSPA {
		return a.ActiveSPADeploymentID
	}
	return a.ActiveAPIDeploymentID
}
