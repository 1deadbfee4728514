package tools

import (
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
)

// DefaultRegistry builds the full tool catalog. snapshot provides the
// current play log; profile provides the listener profile line and may be
// nil.
func DefaultRegistry(snapshot func() *dataset.Dataset, profile func() string) (*Registry, error) {
	registry := NewRegistry()

	register := []struct {
		schema   Schema
		executor Executor
	}{
		{listeningStatsSchema(), &listeningStatsExecutor{snapshot: snapshot}},
		{topArtistsSchema(), &topArtistsExecutor{snapshot: snapshot}},
		{topTracksSchema(), &topTracksExecutor{snapshot: snapshot}},
		{listeningPatternsSchema(), &listeningPatternsExecutor{snapshot: snapshot}},
		{eraSummarySchema(), &eraSummaryExecutor{snapshot: snapshot}},
		{listeningChartSchema(), &listeningChartExecutor{snapshot: snapshot}},
		{playlistDraftSchema(), &playlistDraftExecutor{snapshot: snapshot}},
		{searchPlaysSchema(), &searchPlaysExecutor{snapshot: snapshot}},
		{describeToolsSchema(), &describeToolsExecutor{registry: registry}},
		{greetingTemplateSchema(), &greetingTemplateExecutor{profile: profile}},
	}

	for _, r := range register {
		if err := registry.Register(r.schema, r.executor); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
