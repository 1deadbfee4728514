package tools

import (
	"context"
	"strings"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
)

func searchPlaysSchema() Schema {
	return Schema{
		Name:        "search_plays",
		Description: "Search the play log for a track, artist, or album by name. Returns the most recent matching plays.",
		Family:      FamilySemantic,
		Properties: map[string]Property{
			"query": {Type: "string", Description: "Text to look for"},
			"limit": {Type: "integer", Description: "Max plays to return, default 10", Minimum: floatPtr(1), Maximum: floatPtr(50)},
		},
		Required:     []string{"query"},
		NeedsDataset: true,
	}
}

type searchPlaysExecutor struct {
	snapshot func() *dataset.Dataset
}

func (e *searchPlaysExecutor) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query := strings.TrimSpace(GetStringParam(args, "query", ""))
	if query == "" {
		return Errorf("a query is required")
	}
	limit := GetIntParam(args, "limit", 10)

	matches := e.snapshot().Search(query, limit)
	if len(matches) == 0 {
		return Errorf("nothing in the history matches %q", query)
	}

	plays := make([]map[string]interface{}, len(matches))
	for i, p := range matches {
		plays[i] = map[string]interface{}{
			"ts":     p.TS,
			"track":  p.TrackName,
			"artist": p.Artist,
			"album":  p.Album,
		}
	}
	return Ok(map[string]interface{}{"plays": plays})
}

func describeToolsSchema() Schema {
	return Schema{
		Name:          "describe_tools",
		Description:   "List the tools available in this conversation with their descriptions.",
		Family:        FamilySemantic,
		Properties:    map[string]Property{},
		BreakerExempt: true,
	}
}

type describeToolsExecutor struct {
	registry *Registry
}

func (e *describeToolsExecutor) Execute(ctx context.Context, args map[string]interface{}) *Result {
	schemas := e.registry.All()
	listing := make([]map[string]interface{}, len(schemas))
	for i, schema := range schemas {
		listing[i] = map[string]interface{}{
			"name":        schema.Name,
			"family":      string(schema.Family),
			"description": schema.Description,
		}
	}
	return Ok(map[string]interface{}{"tools": listing})
}
