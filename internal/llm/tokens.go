package llm

import "encoding/json"

// Rough heuristics used when no tokenizer is available for a model. Plain
// prose averages about four characters per token; JSON tokenizes denser
// because of punctuation.
const (
	charsPerTextToken = 4
	charsPerJSONToken = 3
)

// EstimateTextTokens approximates the token count of plain text.
func EstimateTextTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / charsPerTextToken
	if n == 0 {
		n = 1
	}
	return n
}

// EstimateJSONTokens approximates the token count of a structure after JSON
// encoding.
func EstimateJSONTokens(v interface{}) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	n := len(data) / charsPerJSONToken
	if n == 0 {
		n = 1
	}
	return n
}
