package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// RouteStatus is the moderation/lifecycle status of a route
type RouteStatus string

const (
	RouteActive  RouteStatus = "active"
	RouteBlocked RouteStatus = "blocked"
	RouteDeleted RouteStatus = "deleted"
)

// ResponseType selects which RouteResponse variant a route carries
type ResponseType string

const (
	ResponseStatic   ResponseType = "static"
	ResponseFunction ResponseType = "function"
)

// RouteResponse is either a StaticResponse or a FunctionResponse
type RouteResponse interface {
	Type() ResponseType
	// Content is the body shipped as routes/{id}/content, empty when there is none
	Content() string
	// BlobContentType is the content type of the stored content blob
	BlobContentType() string
}

// StaticResponse returns a fixed body
type StaticResponse struct {
	StatusCode  int               `json:"statusCode,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body,omitempty"`
}

func (StaticResponse) Type() ResponseType { return ResponseStatic }

func (r StaticResponse) Content() string { return r.Body }

func (StaticResponse) BlobContentType() string { return ContentTypeText }

// EffectiveStatusCode defaults to 200
func (r StaticResponse) EffectiveStatusCode() int {
	if r.StatusCode == 0 {
		return 200
	}
	return r.StatusCode
}

// FunctionResponse runs user code on the gateway
type FunctionResponse struct {
	Runtime   string `json:"runtime"`
	Source    string `json:"source,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

func (FunctionResponse) Type() ResponseType { return ResponseFunction }

func (r FunctionResponse) Content() string { return r.Source }

func (FunctionResponse) BlobContentType() string { return ContentTypeJavaScript }

// DecodeRouteResponse rebuilds the response variant from its persisted form
func DecodeRouteResponse(t ResponseType, raw []byte) (RouteResponse, error) {
	switch t {
	case ResponseStatic:
		var r StaticResponse
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, fmt.Errorf("decode static response: %w", err)
			}
		}
		return r, nil
	case ResponseFunction:
		var r FunctionResponse
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, fmt.Errorf("decode function response: %w", err)
			}
		}
		return r, nil
	}
	return nil, fmt.Errorf("unknown response type %q", t)
}

// RequestSchemas holds optional JSON-schema documents used for validation
// and OpenAPI generation. Invalid documents are tolerated.
type RequestSchemas struct {
	Query   json.RawMessage `json:"query,omitempty"`
	Headers json.RawMessage `json:"headers,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// Route is a live, mutable API route owned by an app.
// Maps to: route table
type Route struct {
	ID          int64       `db:"id" json:"id"`
	AppID       uuid.UUID   `db:"app_id" json:"app_id"`
	Name        string      `db:"name" json:"name"`
	Method      string      `db:"method" json:"method"`
	Path        string      `db:"path" json:"path"`
	Description string      `db:"description" json:"description"`
	Enabled     bool        `db:"enabled" json:"enabled"`
	Status      RouteStatus `db:"status" json:"status"`

	Response RouteResponse  `db:"-" json:"-"`
	Schemas  RequestSchemas `db:"request_schemas" json:"request_schemas"`

	RequireAuthorization bool `db:"require_authorization" json:"require_authorization"`
}

// IsPublishable is the single filter used for snapshots and the published
// specification: enabled and active.
func (r *Route) IsPublishable() bool {
	return r.Enabled && r.Status == RouteActive
}

// AuthScheme is an authentication scheme configured for an app's gateway.
// Maps to: auth_scheme table
type AuthScheme struct {
	ID      int64          `db:"id" json:"id"`
	AppID   uuid.UUID      `db:"app_id" json:"app_id"`
	Name    string         `db:"name" json:"name"`
	Type    string         `db:"type" json:"type"`
	Enabled bool           `db:"enabled" json:"enabled"`
	Config  map[string]any `db:"config" json:"config"`
}

// VariableTarget selects where a variable is injected
type VariableTarget string

const (
	TargetRuntime VariableTarget = "runtime"
	TargetBuild   VariableTarget = "build"
	TargetAll     VariableTarget = "all"
)

// Variable is an app environment variable.
// Maps to: variable table
type Variable struct {
	ID       int64          `db:"id" json:"id"`
	AppID    uuid.UUID      `db:"app_id" json:"app_id"`
	Key      string         `db:"key" json:"key"`
	Value    string         `db:"value" json:"value"`
	Target   VariableTarget `db:"target" json:"target"`
	IsSecret bool           `db:"is_secret" json:"is_secret"`
}
