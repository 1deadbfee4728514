package tools

import (
	"context"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
)

func listeningStatsSchema() Schema {
	return Schema{
		Name:        "get_listening_stats",
		Description: "Overall listening volume: play count, unique artists and tracks, total hours, and the covered date range. Optionally scoped to a year or an artist.",
		Family:      FamilyData,
		Properties: map[string]Property{
			"year":   {Type: "integer", Description: "Restrict to one calendar year"},
			"artist": {Type: "string", Description: "Restrict to one artist, case-insensitive"},
		},
		NeedsDataset: true,
	}
}

type listeningStatsExecutor struct {
	snapshot func() *dataset.Dataset
}

func (e *listeningStatsExecutor) Execute(ctx context.Context, args map[string]interface{}) *Result {
	filter := dataset.Filter{
		Year:   GetIntParam(args, "year", 0),
		Artist: GetStringParam(args, "artist", ""),
	}
	stats := e.snapshot().TotalStats(filter)
	if stats.Plays == 0 {
		return Errorf("no plays match that filter")
	}
	return Ok(map[string]interface{}{"stats": stats})
}

func topArtistsSchema() Schema {
	return Schema{
		Name:        "get_top_artists",
		Description: "Most-listened artists ranked by listening time, optionally scoped to a year.",
		Family:      FamilyData,
		Properties: map[string]Property{
			"year":  {Type: "integer", Description: "Restrict to one calendar year"},
			"limit": {Type: "integer", Description: "Number of artists to return, default 10", Minimum: floatPtr(1), Maximum: floatPtr(50)},
		},
		NeedsDataset: true,
	}
}

type topArtistsExecutor struct {
	snapshot func() *dataset.Dataset
}

func (e *topArtistsExecutor) Execute(ctx context.Context, args map[string]interface{}) *Result {
	filter := dataset.Filter{Year: GetIntParam(args, "year", 0)}
	limit := GetIntParam(args, "limit", 10)

	artists := e.snapshot().TopArtists(filter, limit)
	if len(artists) == 0 {
		return Errorf("no plays match that filter")
	}
	return Ok(map[string]interface{}{"artists": artists})
}

func topTracksSchema() Schema {
	return Schema{
		Name:        "get_top_tracks",
		Description: "Most-listened tracks ranked by listening time, optionally scoped to a year.",
		Family:      FamilyData,
		Properties: map[string]Property{
			"year":  {Type: "integer", Description: "Restrict to one calendar year"},
			"limit": {Type: "integer", Description: "Number of tracks to return, default 10", Minimum: floatPtr(1), Maximum: floatPtr(50)},
		},
		NeedsDataset: true,
	}
}

type topTracksExecutor struct {
	snapshot func() *dataset.Dataset
}

func (e *topTracksExecutor) Execute(ctx context.Context, args map[string]interface{}) *Result {
	filter := dataset.Filter{Year: GetIntParam(args, "year", 0)}
	limit := GetIntParam(args, "limit", 10)

	tracks := e.snapshot().TopTracks(filter, limit)
	if len(tracks) == 0 {
		return Errorf("no plays match that filter")
	}
	return Ok(map[string]interface{}{"tracks": tracks})
}

func floatPtr(f float64) *float64 { return &f }
