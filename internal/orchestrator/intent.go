package orchestrator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/llm"
)

var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// deriveIntent maps a user message to at most one probable tool call, for
// models that cannot emit calls at all. The table is deliberately small:
// when nothing matches clearly, the answer is nil and the model replies
// unaided.
func deriveIntent(userText string) *llm.ToolCall {
	text := strings.ToLower(userText)

	args := map[string]interface{}{}
	if match := yearRe.FindString(text); match != "" {
		if year, err := strconv.Atoi(match); err == nil {
			args["year"] = float64(year)
		}
	}

	var name string
	switch {
	case containsAny(text, "top artist", "favorite artist", "favourite artist", "most played artist", "who did i listen"):
		name = "get_top_artists"
	case containsAny(text, "top track", "top song", "favorite song", "favourite song", "most played song", "most played track"):
		name = "get_top_tracks"
	case containsAny(text, "how many hours", "how much did i listen", "how many plays", "listening stats", "total listening"):
		name = "get_listening_stats"
	case containsAny(text, "when do i listen", "what time do i listen", "listening pattern", "listening habit"):
		name = "get_listening_patterns"
	default:
		return nil
	}

	return &llm.ToolCall{
		ID:        "intent_0",
		Name:      name,
		Arguments: args,
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
