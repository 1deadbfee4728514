package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
)

const executorPlayLog = `[
	{"ts":"2023-03-01T08:15:00Z","ms_played":240000,"master_metadata_track_name":"Weird Fishes","master_metadata_album_artist_name":"Radiohead","master_metadata_album_album_name":"In Rainbows"},
	{"ts":"2023-03-02T08:20:00Z","ms_played":180000,"master_metadata_track_name":"Nude","master_metadata_album_artist_name":"Radiohead","master_metadata_album_album_name":"In Rainbows"},
	{"ts":"2023-07-14T22:05:00Z","ms_played":200000,"master_metadata_track_name":"Midnight City","master_metadata_album_artist_name":"M83","master_metadata_album_album_name":"Hurry Up, We're Dreaming"},
	{"ts":"2024-01-02T09:00:00Z","ms_played":210000,"master_metadata_track_name":"Weird Fishes","master_metadata_album_artist_name":"Radiohead","master_metadata_album_album_name":"In Rainbows"}
]`

func executorEnv(t *testing.T) (*Registry, func() *dataset.Dataset) {
	t.Helper()
	ds, err := dataset.Load([]byte(executorPlayLog))
	require.NoError(t, err)
	snapshot := func() *dataset.Dataset { return ds }
	registry, err := DefaultRegistry(snapshot, func() string { return "night-owl explorer" })
	require.NoError(t, err)
	return registry, snapshot
}

func run(t *testing.T, registry *Registry, snapshot func() *dataset.Dataset, name string, args map[string]interface{}) *Result {
	t.Helper()
	d := NewDispatcher(registry, snapshot)
	return d.Dispatch(context.Background(), &Call{Name: name, Arguments: args})
}

func TestListeningStatsExecutor(t *testing.T) {
	registry, snapshot := executorEnv(t)

	result := run(t, registry, snapshot, "get_listening_stats", nil)
	require.False(t, result.IsError(), result.ErrorMessage())
	stats := result.Data["stats"].(dataset.Stats)
	assert.Equal(t, 4, stats.Plays)

	result = run(t, registry, snapshot, "get_listening_stats", map[string]interface{}{"artist": "radiohead"})
	require.False(t, result.IsError())
	assert.Equal(t, 3, result.Data["stats"].(dataset.Stats).Plays)

	result = run(t, registry, snapshot, "get_listening_stats", map[string]interface{}{"year": float64(1999)})
	assert.True(t, result.IsError())
}

func TestTopArtistsExecutor(t *testing.T) {
	registry, snapshot := executorEnv(t)

	result := run(t, registry, snapshot, "get_top_artists", map[string]interface{}{"limit": float64(1)})
	require.False(t, result.IsError())
	artists := result.Data["artists"].([]dataset.RankedEntry)
	require.Len(t, artists, 1)
	assert.Equal(t, "Radiohead", artists[0].Name)
}

func TestListeningPatternsExecutor(t *testing.T) {
	registry, snapshot := executorEnv(t)

	result := run(t, registry, snapshot, "get_listening_patterns", map[string]interface{}{"granularity": "month"})
	require.False(t, result.IsError())
	assert.Equal(t, "month", result.Data["granularity"])

	result = run(t, registry, snapshot, "get_listening_patterns", map[string]interface{}{"granularity": "hour"})
	require.False(t, result.IsError())
	assert.Equal(t, "hour", result.Data["granularity"])
}

func TestEraSummaryExecutor(t *testing.T) {
	registry, snapshot := executorEnv(t)

	result := run(t, registry, snapshot, "get_era_summary", map[string]interface{}{"year": float64(2023)})
	require.False(t, result.IsError(), result.ErrorMessage())
	assert.Equal(t, 2023, result.Data["year"])
	assert.Contains(t, result.Data, "top_artists")
	assert.Contains(t, result.Data, "busiest_month")

	result = run(t, registry, snapshot, "get_era_summary", nil)
	assert.True(t, result.IsError())
}

func TestListeningChartExecutor(t *testing.T) {
	registry, snapshot := executorEnv(t)

	result := run(t, registry, snapshot, "generate_listening_chart", map[string]interface{}{"metric": "hours", "year": float64(2023)})
	require.False(t, result.IsError())

	artifact := result.Data["artifact"].(map[string]interface{})
	assert.Equal(t, "chart", artifact["type"])
	chart := artifact["chart"].(map[string]interface{})
	assert.Equal(t, "hours", chart["metric"])
	assert.Equal(t, []string{"2023-03", "2023-07"}, chart["labels"])
}

func TestPlaylistDraftExecutor(t *testing.T) {
	registry, snapshot := executorEnv(t)

	result := run(t, registry, snapshot, "create_playlist_draft", map[string]interface{}{"theme": "radiohead", "size": float64(2)})
	require.False(t, result.IsError())

	artifact := result.Data["artifact"].(map[string]interface{})
	assert.Equal(t, "playlist_draft", artifact["type"])
	playlist := artifact["playlist"].(map[string]interface{})
	tracks := playlist["tracks"].([]map[string]interface{})
	assert.Len(t, tracks, 2)

	result = run(t, registry, snapshot, "create_playlist_draft", map[string]interface{}{"theme": "radiohead", "size": float64(10), "spread_artists": false})
	require.False(t, result.IsError())
	playlist = result.Data["artifact"].(map[string]interface{})["playlist"].(map[string]interface{})
	assert.Len(t, playlist["tracks"].([]map[string]interface{}), 3)

	result = run(t, registry, snapshot, "create_playlist_draft", map[string]interface{}{"theme": "  "})
	assert.True(t, result.IsError())
}

func TestSearchPlaysExecutor(t *testing.T) {
	registry, snapshot := executorEnv(t)

	result := run(t, registry, snapshot, "search_plays", map[string]interface{}{"query": "midnight"})
	require.False(t, result.IsError())
	plays := result.Data["plays"].([]map[string]interface{})
	require.Len(t, plays, 1)
	assert.Equal(t, "Midnight City", plays[0]["track"])

	result = run(t, registry, snapshot, "search_plays", map[string]interface{}{"query": "polka"})
	assert.True(t, result.IsError())
}

func TestGreetingTemplateExecutor(t *testing.T) {
	registry, snapshot := executorEnv(t)

	result := run(t, registry, snapshot, "get_greeting_template", nil)
	require.False(t, result.IsError())
	assert.NotEmpty(t, result.Data["greeting"])
	assert.Equal(t, "night-owl explorer", result.Data["profile"])
}
