package tools

import (
	"context"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
)

func listeningChartSchema() Schema {
	return Schema{
		Name:        "generate_listening_chart",
		Description: "Render a bar chart of listening volume per month. Returns a chart artifact the UI draws; also include a short textual takeaway in your reply.",
		Family:      FamilyArtifact,
		Properties: map[string]Property{
			"metric": {Type: "string", Description: "What the bars measure, default plays", Enum: []string{"plays", "hours"}},
			"year":   {Type: "integer", Description: "Restrict to one calendar year"},
		},
		NeedsDataset: true,
	}
}

type listeningChartExecutor struct {
	snapshot func() *dataset.Dataset
}

func (e *listeningChartExecutor) Execute(ctx context.Context, args map[string]interface{}) *Result {
	filter := dataset.Filter{Year: GetIntParam(args, "year", 0)}
	metric := GetStringParam(args, "metric", "plays")

	months := e.snapshot().PlaysByMonth(filter)
	if len(months) == 0 {
		return Errorf("no plays match that filter")
	}

	labels := make([]string, len(months))
	values := make([]float64, len(months))
	for i, m := range months {
		labels[i] = m.Month
		if metric == "hours" {
			values[i] = m.Hours
		} else {
			values[i] = float64(m.Plays)
		}
	}

	return Ok(map[string]interface{}{
		"artifact": map[string]interface{}{
			"type": "chart",
			"chart": map[string]interface{}{
				"kind":   "bar",
				"metric": metric,
				"labels": labels,
				"values": values,
			},
		},
	})
}
