package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
)

func noopExecutor() Executor {
	return ExecutorFunc(func(ctx context.Context, args map[string]interface{}) *Result {
		return Ok(nil)
	})
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Schema{Name: "a_tool"}, noopExecutor()))

	err := r.Register(Schema{Name: "a_tool"}, noopExecutor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Error(t, r.Register(Schema{Name: ""}, noopExecutor()))
	assert.Error(t, r.Register(Schema{Name: "b_tool"}, nil))
}

func TestRegistryEnabledFilter(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Schema{Name: "one"}, noopExecutor()))
	require.NoError(t, r.Register(Schema{Name: "two"}, noopExecutor()))
	require.NoError(t, r.Register(Schema{Name: "three"}, noopExecutor()))

	filtered := r.Enabled([]string{"three", "one", "nonexistent"})
	assert.True(t, filtered.Has("one"))
	assert.True(t, filtered.Has("three"))
	assert.False(t, filtered.Has("two"))
	// Registration order is preserved, not filter order.
	assert.Equal(t, "one", filtered.All()[0].Name)

	// Empty filter means everything.
	assert.Same(t, r, r.Enabled(nil))
}

func TestRegistryToJSONSchema(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Schema{
		Name:        "get_top_artists",
		Description: "Most-played artists",
		Properties: map[string]Property{
			"year":  {Type: "integer"},
			"genre": {Type: "string", Enum: []string{"rock", "jazz"}},
		},
		Required: []string{"year"},
	}, noopExecutor()))

	schemas := r.ToJSONSchema()
	require.Len(t, schemas, 1)
	assert.Equal(t, "function", schemas[0]["type"])

	fn := schemas[0]["function"].(map[string]interface{})
	assert.Equal(t, "get_top_artists", fn["name"])

	params := fn["parameters"].(map[string]interface{})
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []interface{}{"year"}, params["required"])

	props := params["properties"].(map[string]interface{})
	year := props["year"].(map[string]interface{})
	assert.Equal(t, "integer", year["type"])
	genre := props["genre"].(map[string]interface{})
	assert.Equal(t, []interface{}{"rock", "jazz"}, genre["enum"])
}

func TestRegistryBreakerExempt(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Schema{Name: "cheap", BreakerExempt: true}, noopExecutor()))
	require.NoError(t, r.Register(Schema{Name: "costly"}, noopExecutor()))

	assert.True(t, r.BreakerExempt("cheap"))
	assert.False(t, r.BreakerExempt("costly"))
	assert.False(t, r.BreakerExempt("unknown"))
}

func TestDefaultRegistryCatalog(t *testing.T) {
	r, err := DefaultRegistry(func() *dataset.Dataset { return nil }, nil)
	require.NoError(t, err)

	for _, name := range []string{
		"get_listening_stats", "get_top_artists", "get_top_tracks",
		"get_listening_patterns", "get_era_summary",
		"generate_listening_chart", "create_playlist_draft",
		"search_plays", "describe_tools", "get_greeting_template",
	} {
		assert.True(t, r.Has(name), name)
	}

	assert.True(t, r.BreakerExempt("describe_tools"))
	assert.True(t, r.BreakerExempt("get_greeting_template"))
	assert.False(t, r.BreakerExempt("get_top_artists"))

	assert.Len(t, r.ByFamily(FamilyData), 3)
	assert.Len(t, r.ByFamily(FamilyAnalytics), 2)
}
