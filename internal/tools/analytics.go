package tools

import (
	"context"
	"fmt"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
)

func listeningPatternsSchema() Schema {
	return Schema{
		Name:        "get_listening_patterns",
		Description: "Listening volume over time: per calendar month, or as an hour-of-day histogram.",
		Family:      FamilyAnalytics,
		Properties: map[string]Property{
			"granularity": {Type: "string", Description: "Bucketing to use, default month", Enum: []string{"month", "hour"}},
			"year":        {Type: "integer", Description: "Restrict to one calendar year"},
		},
		NeedsDataset: true,
	}
}

type listeningPatternsExecutor struct {
	snapshot func() *dataset.Dataset
}

func (e *listeningPatternsExecutor) Execute(ctx context.Context, args map[string]interface{}) *Result {
	filter := dataset.Filter{Year: GetIntParam(args, "year", 0)}

	switch GetStringParam(args, "granularity", "month") {
	case "hour":
		hist := e.snapshot().HourHistogram(filter)
		buckets := make([]map[string]interface{}, 0, len(hist))
		for hour, plays := range hist {
			if plays == 0 {
				continue
			}
			buckets = append(buckets, map[string]interface{}{
				"hour":  fmt.Sprintf("%02d:00", hour),
				"plays": plays,
			})
		}
		if len(buckets) == 0 {
			return Errorf("no plays match that filter")
		}
		return Ok(map[string]interface{}{"granularity": "hour", "buckets": buckets})
	default:
		months := e.snapshot().PlaysByMonth(filter)
		if len(months) == 0 {
			return Errorf("no plays match that filter")
		}
		return Ok(map[string]interface{}{"granularity": "month", "buckets": months})
	}
}

func eraSummarySchema() Schema {
	return Schema{
		Name:        "get_era_summary",
		Description: "A rounded picture of one listening year: volume, top artists and tracks, and the busiest month.",
		Family:      FamilyAnalytics,
		Properties: map[string]Property{
			"year": {Type: "integer", Description: "The calendar year to summarize"},
		},
		Required:     []string{"year"},
		NeedsDataset: true,
	}
}

type eraSummaryExecutor struct {
	snapshot func() *dataset.Dataset
}

func (e *eraSummaryExecutor) Execute(ctx context.Context, args map[string]interface{}) *Result {
	year := GetIntParam(args, "year", 0)
	if year == 0 {
		return Errorf("a year is required")
	}

	ds := e.snapshot()
	filter := dataset.Filter{Year: year}
	stats := ds.TotalStats(filter)
	if stats.Plays == 0 {
		return Errorf("no plays recorded in %d", year)
	}

	summary := map[string]interface{}{
		"year":        year,
		"stats":       stats,
		"top_artists": ds.TopArtists(filter, 5),
		"top_tracks":  ds.TopTracks(filter, 5),
	}

	months := ds.PlaysByMonth(filter)
	var busiest dataset.MonthBucket
	for _, m := range months {
		if m.Plays > busiest.Plays {
			busiest = m
		}
	}
	if busiest.Plays > 0 {
		summary["busiest_month"] = busiest
	}

	return Ok(summary)
}
