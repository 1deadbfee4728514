package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
)

const ragPlayLog = `[
	{"ts":"2023-03-01T08:15:00Z","ms_played":240000,"master_metadata_track_name":"Weird Fishes","master_metadata_album_artist_name":"Radiohead","master_metadata_album_album_name":"In Rainbows"},
	{"ts":"2023-07-14T22:05:00Z","ms_played":200000,"master_metadata_track_name":"Midnight City","master_metadata_album_artist_name":"M83","master_metadata_album_album_name":"Hurry Up, We're Dreaming"},
	{"ts":"2024-01-02T09:00:00Z","ms_played":210000,"master_metadata_track_name":"Weird Fishes","master_metadata_album_artist_name":"Radiohead","master_metadata_album_album_name":"In Rainbows"}
]`

func ragRetriever(t *testing.T) *KeywordRetriever {
	t.Helper()
	ds, err := dataset.Load([]byte(ragPlayLog))
	require.NoError(t, err)
	return NewKeywordRetriever(func() *dataset.Dataset { return ds })
}

func TestKeywordRetrieverFindsMatches(t *testing.T) {
	r := ragRetriever(t)
	require.True(t, r.IsConfigured())

	out, err := r.GetContext(context.Background(), "when did I play Radiohead?", 5)
	require.NoError(t, err)
	assert.Contains(t, out, "Weird Fishes by Radiohead")
	assert.Contains(t, out, "2024-01-02")
}

func TestKeywordRetrieverDeduplicatesTracks(t *testing.T) {
	r := ragRetriever(t)

	out, err := r.GetContext(context.Background(), "radiohead weird fishes", 10)
	require.NoError(t, err)
	// Two plays of the same track collapse into one snippet.
	assert.Equal(t, 1, len(splitLines(out)))
}

func TestKeywordRetrieverStopwordsOnly(t *testing.T) {
	r := ragRetriever(t)

	out, err := r.GetContext(context.Background(), "what did I listen to the most?", 5)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestKeywordRetrieverRespectsLimit(t *testing.T) {
	r := ragRetriever(t)

	out, err := r.GetContext(context.Background(), "radiohead midnight", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, len(splitLines(out)))
}

func TestKeywordRetrieverUnconfigured(t *testing.T) {
	r := NewKeywordRetriever(func() *dataset.Dataset { return nil })
	assert.False(t, r.IsConfigured())

	out, err := r.GetContext(context.Background(), "radiohead", 5)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestKeywordRetrieverCancelledContext(t *testing.T) {
	r := ragRetriever(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.GetContext(ctx, "radiohead", 5)
	assert.Error(t, err)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
