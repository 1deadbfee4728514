package tools

import (
	"context"
)

func greetingTemplateSchema() Schema {
	return Schema{
		Name:          "get_greeting_template",
		Description:   "A canned opening line for starting a conversation, matched to the listener profile when one is known.",
		Family:        FamilyTemplate,
		Properties:    map[string]Property{},
		BreakerExempt: true,
	}
}

type greetingTemplateExecutor struct {
	// profile returns the current listener profile line, "" when no data
	// has been classified yet.
	profile func() string
}

var greetingTemplates = []string{
	"Welcome back. Want to dig into what you've been listening to lately?",
	"Your history is loaded. Ask me about your favorite artists, phases, or habits.",
	"Ready when you are. Try asking who you played most last year.",
}

func (e *greetingTemplateExecutor) Execute(ctx context.Context, args map[string]interface{}) *Result {
	data := map[string]interface{}{
		"greeting": greetingTemplates[0],
		"prompts": []string{
			"Who were my top artists last year?",
			"When do I usually listen to music?",
			"Make me a playlist from my late-night plays.",
		},
	}
	if e.profile != nil {
		if line := e.profile(); line != "" {
			data["profile"] = line
		}
	}
	return Ok(data)
}
