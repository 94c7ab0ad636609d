package models

import "github.com/google/uuid"

// ResolvedSpecification is the flattened view of an app consumed by the
// request-serving gateway. Serialized as camelCase JSON under app:{slug}.
type ResolvedSpecification struct {
	AppID                 uuid.UUID      `json:"appId"`
	Slug                  string         `json:"slug"`
	Name                  string         `json:"name"`
	State                 AppState       `json:"state"`
	ActiveSPADeploymentID *uuid.UUID     `json:"activeSpaDeploymentId"`
	ActiveAPIDeploymentID *uuid.UUID     `json:"activeApiDeploymentId"`
	Cors                  CorsSettings   `json:"cors"`
	Routing               RoutingConfig  `json:"routing"`
	Settings              map[string]any `json:"settings"`

	Routes                []ResolvedRoute      `json:"routes"`
	AuthenticationSchemes []ResolvedAuthScheme `json:"authenticationSchemes"`
	Variables             []ResolvedVariable   `json:"variables"`
}

// ResolvedRoute is the minimal projection of a route
type ResolvedRoute struct {
	ID                   int64             `json:"id"`
	Name                 string            `json:"name"`
	Method               string            `json:"method"`
	Path                 string            `json:"path"`
	ResponseType         ResponseType      `json:"responseType"`
	RequireAuthorization bool              `json:"requireAuthorization"`
	Static               *StaticResponse   `json:"static,omitempty"`
	Function             *FunctionResponse `json:"function,omitempty"`
}

// ResolvedAuthScheme is the minimal projection of an auth scheme
type ResolvedAuthScheme struct {
	ID     int64          `json:"id"`
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// ResolvedVariable is the minimal projection of a runtime variable
type ResolvedVariable struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	IsSecret bool   `json:"isSecret"`
}
