package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
)

func playlistDraftSchema() Schema {
	return Schema{
		Name:        "create_playlist_draft",
		Description: "Draft a playlist from the user's own history around a theme (an artist, album, or free-text mood). Returns a playlist artifact for the user to review; nothing is published anywhere.",
		Family:      FamilyPlaylist,
		Properties: map[string]Property{
			"theme":          {Type: "string", Description: "What the playlist is about"},
			"size":           {Type: "integer", Description: "Number of tracks, default 15", Minimum: floatPtr(1), Maximum: floatPtr(50)},
			"spread_artists": {Type: "boolean", Description: "Cap repeats of the same artist, default true"},
		},
		Required:     []string{"theme"},
		NeedsDataset: true,
	}
}

type playlistDraftExecutor struct {
	snapshot func() *dataset.Dataset
}

func (e *playlistDraftExecutor) Execute(ctx context.Context, args map[string]interface{}) *Result {
	theme := strings.TrimSpace(GetStringParam(args, "theme", ""))
	if theme == "" {
		return Errorf("a theme is required")
	}
	size := GetIntParam(args, "size", 15)
	spread := GetBoolParam(args, "spread_artists", true)

	ds := e.snapshot()

	// Theme matches first, most-played overall as filler.
	seen := make(map[string]bool)
	perArtist := make(map[string]int)
	tracks := make([]map[string]interface{}, 0, size)
	appendTrack := func(track, artist string) {
		key := strings.ToLower(artist + "|" + track)
		if track == "" || seen[key] || len(tracks) >= size {
			return
		}
		if spread && perArtist[strings.ToLower(artist)] >= 2 {
			return
		}
		perArtist[strings.ToLower(artist)]++
		seen[key] = true
		tracks = append(tracks, map[string]interface{}{
			"track":  track,
			"artist": artist,
		})
	}

	for _, p := range ds.Search(theme, size*4) {
		appendTrack(p.TrackName, p.Artist)
	}
	for _, entry := range ds.TopTracks(dataset.Filter{}, size*2) {
		track, artist, found := strings.Cut(entry.Name, " — ")
		if !found {
			artist = ""
		}
		appendTrack(track, artist)
	}

	if len(tracks) == 0 {
		return Errorf("no tracks in the history match %q", theme)
	}

	return Ok(map[string]interface{}{
		"artifact": map[string]interface{}{
			"type": "playlist_draft",
			"playlist": map[string]interface{}{
				"name":   fmt.Sprintf("%s — from your history", theme),
				"theme":  theme,
				"tracks": tracks,
			},
		},
	})
}
