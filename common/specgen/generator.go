// Package specgen turns route metadata into the documents stored with every
// API deployment: the OpenAPI document, the routes summary and one metadata
// document per route. All functions are pure and deterministic.
package specgen

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lyzr/launchpad/common/models"
)

const bearerSchemeName = "bearerAuth"

var pathParamPattern = regexp.MustCompile(`\{([^{}/]+)\}`)

// Generator builds OpenAPI documents for an app
type Generator struct {
	// PublicDomain is appended to the slug to form the server URL,
	// e.g. acme.apps.example.com. Empty yields a relative "/" server.
	PublicDomain string
}

// New creates a generator
func New(publicDomain string) *Generator {
	return &Generator{PublicDomain: publicDomain}
}

// ServerURL returns the public base URL of an app
func (g *Generator) ServerURL(appSlug string) string {
	if g.PublicDomain == "" || appSlug == "" {
		return "/"
	}
	return fmt.Sprintf("https://%s.%s", appSlug, g.PublicDomain)
}

// Build assembles the document. Routes are applied in order; a later route
// with the same path and method replaces the earlier one.
func (g *Generator) Build(appName, appSlug string, routes []RouteMetadata) *Document {
	doc := &Document{
		OpenAPI: OpenAPIVersion,
		Info: Info{
			Title:   appName,
			Version: "1.0.0",
		},
		Servers: []Server{{URL: g.ServerURL(appSlug)}},
		Paths:   make(map[string]PathItem),
		Components: Components{
			SecuritySchemes: map[string]SecurityScheme{
				bearerSchemeName: {Type: "http", Scheme: "bearer"},
			},
		},
	}

	for _, r := range routes {
		item, ok := doc.Paths[r.Path]
		if !ok {
			item = make(PathItem)
			doc.Paths[r.Path] = item
		}
		item[strings.ToLower(r.Method)] = operation(r)
	}

	return doc
}

// Generate returns the pretty-printed OpenAPI document
func (g *Generator) Generate(appName, appSlug string, routes []RouteMetadata) ([]byte, error) {
	data, err := json.MarshalIndent(g.Build(appName, appSlug, routes), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal openapi document: %w", err)
	}
	return data, nil
}

func operation(r RouteMetadata) *Operation {
	op := &Operation{
		Summary:     r.Name,
		Description: r.Description,
		Responses:   make(map[string]Response, 1),
	}
	if r.ID != 0 {
		op.OperationID = "route" + strconv.FormatInt(r.ID, 10)
	}

	op.Parameters = append(op.Parameters, pathParameters(r.Path)...)
	op.Parameters = append(op.Parameters, schemaParameters(r.Schemas.Query, "query")...)
	op.Parameters = append(op.Parameters, schemaParameters(r.Schemas.Headers, "header")...)

	if len(r.Schemas.Body) > 0 && json.Valid(r.Schemas.Body) {
		op.RequestBody = &RequestBody{
			Required: true,
			Content: map[string]MediaType{
				"application/json": {Schema: r.Schemas.Body},
			},
		}
	}

	code, resp := response(r.Response)
	op.Responses[strconv.Itoa(code)] = resp

	if r.RequireAuthorization {
		op.Security = []map[string][]string{{bearerSchemeName: {}}}
	}

	return op
}

var stringSchema = json.RawMessage(`{"type":"string"}`)

func pathParameters(path string) []Parameter {
	var params []Parameter
	seen := make(map[string]bool)
	for _, m := range pathParamPattern.FindAllStringSubmatch(path, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		params = append(params, Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   stringSchema,
		})
	}
	return params
}

type objectSchema struct {
	Properties map[string]json.RawMessage `json:"properties"`
	Required   []string                   `json:"required"`
}

// schemaParameters reads the top-level properties of a JSON-schema object.
// Anything that is not a readable object schema yields no parameters.
func schemaParameters(raw json.RawMessage, in string) []Parameter {
	if len(raw) == 0 {
		return nil
	}
	var schema objectSchema
	if err := json.Unmarshal(raw, &schema); err != nil || len(schema.Properties) == 0 {
		return nil
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]Parameter, 0, len(names))
	for _, name := range names {
		prop := schema.Properties[name]
		if !json.Valid(prop) || string(prop) == "null" {
			prop = stringSchema
		}
		params = append(params, Parameter{
			Name:     name,
			In:       in,
			Required: required[name],
			Schema:   prop,
		})
	}
	return params
}

func response(resp models.RouteResponse) (int, Response) {
	switch r := resp.(type) {
	case models.StaticResponse:
		out := Response{Description: "Static response"}
		if r.ContentType != "" {
			out.Content = map[string]MediaType{r.ContentType: {}}
		}
		return r.EffectiveStatusCode(), out
	case models.FunctionResponse:
		return 200, Response{Description: "Function response"}
	}
	return 200, Response{Description: "Response"}
}
