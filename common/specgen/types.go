package specgen

import (
	"encoding/json"

	"github.com/lyzr/launchpad/common/models"
)

// OpenAPIVersion is the document version emitted by Generate
const OpenAPIVersion = "3.0.3"

// RouteMetadata is the projection of a route the generators work from
type RouteMetadata struct {
	ID                   int64
	Name                 string
	Method               string
	Path                 string
	Description          string
	Response             models.RouteResponse
	Schemas              models.RequestSchemas
	RequireAuthorization bool
}

// FromRoute projects a live route
func FromRoute(r *models.Route) RouteMetadata {
	return RouteMetadata{
		ID:                   r.ID,
		Name:                 r.Name,
		Method:               r.Method,
		Path:                 r.Path,
		Description:          r.Description,
		Response:             r.Response,
		Schemas:              r.Schemas,
		RequireAuthorization: r.RequireAuthorization,
	}
}

// ResponseType returns the response variant tag, static when unset
func (r RouteMetadata) ResponseType() models.ResponseType {
	if r.Response == nil {
		return models.ResponseStatic
	}
	return r.Response.Type()
}

// Document is an OpenAPI 3 document restricted to what the platform emits
type Document struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Servers    []Server            `json:"servers"`
	Paths      map[string]PathItem `json:"paths"`
	Components Components          `json:"components"`
}

type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

type Server struct {
	URL string `json:"url"`
}

// PathItem maps a lower-case HTTP method to its operation
type PathItem map[string]*Operation

type Operation struct {
	OperationID string                `json:"operationId,omitempty"`
	Summary     string                `json:"summary,omitempty"`
	Description string                `json:"description,omitempty"`
	Parameters  []Parameter           `json:"parameters,omitempty"`
	RequestBody *RequestBody          `json:"requestBody,omitempty"`
	Responses   map[string]Response   `json:"responses"`
	Security    []map[string][]string `json:"security,omitempty"`
}

type Parameter struct {
	Name     string          `json:"name"`
	In       string          `json:"in"`
	Required bool            `json:"required"`
	Schema   json.RawMessage `json:"schema"`
}

type RequestBody struct {
	Required bool                 `json:"required"`
	Content  map[string]MediaType `json:"content"`
}

type MediaType struct {
	Schema json.RawMessage `json:"schema,omitempty"`
}

type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

type Components struct {
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes"`
}

type SecurityScheme struct {
	Type         string `json:"type"`
	Scheme       string `json:"scheme"`
	BearerFormat string `json:"bearerFormat,omitempty"`
}

// SummaryEntry is one element of routes.json
type SummaryEntry struct {
	Name                 string              `json:"name"`
	Method               string              `json:"method"`
	Path                 string              `json:"path"`
	Description          string              `json:"description"`
	ResponseType         models.ResponseType `json:"responseType"`
	RequireAuthorization bool                `json:"requireAuthorization"`
	FunctionRuntime      *string             `json:"functionRuntime"`
}

// RouteDoc is the per-route routes/{id}/meta.json document. Bodies and
// function sources live in routes/{id}/content.
type RouteDoc struct {
	ID                   int64               `json:"id"`
	Name                 string              `json:"name"`
	Method               string              `json:"method"`
	Path                 string              `json:"path"`
	Description          string              `json:"description"`
	ResponseType         models.ResponseType `json:"responseType"`
	Static               *StaticMeta         `json:"static,omitempty"`
	Function             *FunctionMeta       `json:"function,omitempty"`
	RequestSchemas       SchemaMeta          `json:"requestSchemas"`
	RequireAuthorization bool                `json:"requireAuthorization"`
}

type StaticMeta struct {
	StatusCode  int               `json:"statusCode"`
	ContentType string            `json:"contentType,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

type FunctionMeta struct {
	Runtime   string `json:"runtime"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

type SchemaMeta struct {
	Query   json.RawMessage `json:"query,omitempty"`
	Headers json.RawMessage `json:"headers,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}
