package llm

import (
	"fmt"
	"strings"
	"time"
)

const basePersona = `You are Rhythm Chamber, a music-listening-history assistant.
You answer questions about the user's own streaming history: favorite artists,
listening phases, habits, and patterns. Be specific and ground every claim in
the data returned by your tools. If the data cannot answer a question, say so
plainly instead of guessing. Keep replies conversational and reasonably short.`

// PromptContext carries the per-turn ingredients of the system prompt.
type PromptContext struct {
	PersonalityLine string
	RAGContext      string
	DatasetSummary  string
	Now             time.Time
}

// BuildSystemPrompt assembles the system prompt for one turn. Sections are
// skipped when empty so the prompt stays as small as the turn allows.
func BuildSystemPrompt(pc PromptContext) string {
	var b strings.Builder
	b.WriteString(basePersona)

	now := pc.Now
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&b, "\n\nCurrent date: %s.", now.Format("2006-01-02"))

	if pc.DatasetSummary != "" {
		b.WriteString("\n\nListening data on hand: ")
		b.WriteString(pc.DatasetSummary)
	}
	if pc.PersonalityLine != "" {
		b.WriteString("\n\nListener profile: ")
		b.WriteString(pc.PersonalityLine)
	}
	if pc.RAGContext != "" {
		b.WriteString("\n\nRelevant history excerpts:\n")
		b.WriteString(pc.RAGContext)
	}

	return b.String()
}
