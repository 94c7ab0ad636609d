package specgen

import (
	"encoding/json"
	"fmt"

	"github.com/lyzr/launchpad/common/models"
)

// Summary returns routes.json: one entry per route, in input order
func Summary(routes []RouteMetadata) ([]byte, error) {
	entries := make([]SummaryEntry, 0, len(routes))
	for _, r := range routes {
		entry := SummaryEntry{
			Name:                 r.Name,
			Method:               r.Method,
			Path:                 r.Path,
			Description:          r.Description,
			ResponseType:         r.ResponseType(),
			RequireAuthorization: r.RequireAuthorization,
		}
		if fn, ok := r.Response.(models.FunctionResponse); ok {
			runtime := fn.Runtime
			entry.FunctionRuntime = &runtime
		}
		entries = append(entries, entry)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal routes summary: %w", err)
	}
	return data, nil
}

// RouteDocument returns routes/{id}/meta.json for one route
func RouteDocument(r RouteMetadata) ([]byte, error) {
	doc := RouteDoc{
		ID:                   r.ID,
		Name:                 r.Name,
		Method:               r.Method,
		Path:                 r.Path,
		Description:          r.Description,
		ResponseType:         r.ResponseType(),
		RequireAuthorization: r.RequireAuthorization,
		RequestSchemas: SchemaMeta{
			Query:   validOrNil(r.Schemas.Query),
			Headers: validOrNil(r.Schemas.Headers),
			Body:    validOrNil(r.Schemas.Body),
		},
	}

	switch resp := r.Response.(type) {
	case models.StaticResponse:
		doc.Static = &StaticMeta{
			StatusCode:  resp.EffectiveStatusCode(),
			ContentType: resp.ContentType,
			Headers:     resp.Headers,
		}
	case models.FunctionResponse:
		doc.Function = &FunctionMeta{
			Runtime:   resp.Runtime,
			TimeoutMs: resp.TimeoutMs,
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal route %d metadata: %w", r.ID, err)
	}
	return data, nil
}

func validOrNil(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return raw
}
