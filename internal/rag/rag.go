// Package rag retrieves history excerpts relevant to the current question so
// the system prompt can carry grounding context without the model having to
// call a tool first.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
)

// Retriever supplies context snippets for a query.
type Retriever interface {
	// IsConfigured reports whether the retriever has data to draw from.
	IsConfigured() bool
	// GetContext returns up to k newline-separated snippets for the query.
	GetContext(ctx context.Context, query string, k int) (string, error)
}

// KeywordRetriever matches query words against the play log. It is the
// zero-infrastructure default; the interface leaves room for an embedding
// store later.
type KeywordRetriever struct {
	snapshot func() *dataset.Dataset
}

func NewKeywordRetriever(snapshot func() *dataset.Dataset) *KeywordRetriever {
	return &KeywordRetriever{snapshot: snapshot}
}

func (r *KeywordRetriever) IsConfigured() bool {
	return r.snapshot != nil && r.snapshot().Len() > 0
}

// GetContext searches each meaningful query word and summarizes matches per
// artist, newest play first.
func (r *KeywordRetriever) GetContext(ctx context.Context, query string, k int) (string, error) {
	if !r.IsConfigured() {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if k <= 0 {
		k = 5
	}

	ds := r.snapshot()
	seen := make(map[string]bool)
	var lines []string

	for _, word := range queryWords(query) {
		for _, p := range ds.Search(word, k) {
			key := strings.ToLower(p.Artist + "|" + p.TrackName)
			if seen[key] {
				continue
			}
			seen[key] = true

			line := fmt.Sprintf("- %s by %s", p.TrackName, p.Artist)
			if t := p.Time(); !t.IsZero() {
				line += ", last played " + t.Format("2006-01-02")
			}
			lines = append(lines, line)
			if len(lines) >= k {
				return strings.Join(lines, "\n"), nil
			}
		}
	}

	return strings.Join(lines, "\n"), nil
}

// stopwords are query words too generic to search for.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"my": true, "i": true, "me": true, "to": true, "of": true,
	"in": true, "on": true, "was": true, "is": true, "did": true,
	"do": true, "what": true, "who": true, "when": true, "how": true,
	"listen": true, "listened": true, "play": true, "played": true,
	"music": true, "song": true, "songs": true, "artist": true,
	"artists": true, "track": true, "tracks": true, "most": true,
}

func queryWords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] {
			continue
		}
		words = append(words, f)
	}
	return words
}
