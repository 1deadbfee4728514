package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/config"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/llm"
)

// heuristicAccountant sidesteps tiktoken so token math is deterministic:
// one token per four runes.
func heuristicAccountant(window int) *Accountant {
	return &Accountant{window: window}
}

func textMessage(role string, runes int) *llm.Message {
	return &llm.Message{Role: role, Content: strings.Repeat("a", runes)}
}

func overloadedRequest() TurnRequest {
	req := TurnRequest{
		SystemPrompt: strings.Repeat("s", 40),
		RAGContext:   strings.Repeat("r", 200),
		Tools: []map[string]interface{}{
			{"type": "function", "function": map[string]interface{}{"name": "get_top_artists"}},
		},
	}
	for i := 0; i < 4; i++ {
		req.Messages = append(req.Messages,
			textMessage("user", 120),
			textMessage("assistant", 120),
		)
	}
	req.Messages = append(req.Messages, textMessage("user", 40))
	return req
}

func TestMeasureCountsEveryPart(t *testing.T) {
	a := heuristicAccountant(10000)

	empty := a.Measure(TurnRequest{})
	assert.Zero(t, empty.Total)

	base := a.Measure(TurnRequest{Messages: []*llm.Message{textMessage("user", 40)}})
	withRAG := a.Measure(TurnRequest{Messages: []*llm.Message{textMessage("user", 40)}, RAGContext: strings.Repeat("r", 100)})
	withTools := a.Measure(overloadedRequest())

	assert.Greater(t, base.Total, 0)
	assert.Greater(t, withRAG.Total, base.Total)
	assert.Greater(t, withTools.Total, withRAG.Total)
}

func TestMeasureWarningThresholds(t *testing.T) {
	a := heuristicAccountant(100)

	// 240 runes -> 60 tokens plus the per-message overhead: no warning.
	quiet := a.Measure(TurnRequest{Messages: []*llm.Message{textMessage("user", 240)}})
	assert.Empty(t, quiet.Warnings)
	assert.False(t, quiet.NeedsTruncation())

	// 280 runes -> 70 tokens plus overhead: info territory.
	info := a.Measure(TurnRequest{Messages: []*llm.Message{textMessage("user", 280)}})
	require.Len(t, info.Warnings, 1)
	assert.Equal(t, "info", info.Warnings[0].Level)

	warn := a.Measure(TurnRequest{Messages: []*llm.Message{textMessage("user", 340)}})
	require.Len(t, warn.Warnings, 1)
	assert.Equal(t, "warn", warn.Warnings[0].Level)
	assert.False(t, warn.NeedsTruncation())

	over := a.Measure(TurnRequest{Messages: []*llm.Message{textMessage("user", 400)}})
	require.Len(t, over.Warnings, 1)
	assert.True(t, over.NeedsTruncation())
}

func TestTruncateSpendsLeversInOrder(t *testing.T) {
	a := heuristicAccountant(200)
	req := overloadedRequest()
	order := []string{config.LeverRAG, config.LeverTools, config.LeverHistory}

	tr := a.TruncateToTarget(req, order)

	assert.True(t, tr.Truncated)
	assert.True(t, tr.DroppedRAG)
	assert.True(t, tr.DroppedTools)
	assert.Greater(t, tr.DroppedPairs, 0)
	assert.True(t, tr.Fits)
	assert.Empty(t, tr.Request.RAGContext)
	assert.Empty(t, tr.Request.Tools)
}

func TestTruncateHonorsCustomOrder(t *testing.T) {
	a := heuristicAccountant(200)
	req := overloadedRequest()

	tr := a.TruncateToTarget(req, []string{config.LeverHistory, config.LeverRAG, config.LeverTools})

	// History alone frees enough room, so the other levers stay untouched.
	assert.True(t, tr.Fits)
	assert.Greater(t, tr.DroppedPairs, 0)
	assert.False(t, tr.DroppedRAG)
	assert.False(t, tr.DroppedTools)
	assert.NotEmpty(t, tr.Request.RAGContext)
}

func TestTruncateNeverDropsCurrentUserMessage(t *testing.T) {
	a := heuristicAccountant(50)
	req := TurnRequest{Messages: []*llm.Message{textMessage("user", 4000)}}

	tr := a.TruncateToTarget(req, []string{config.LeverRAG, config.LeverTools, config.LeverHistory})

	assert.False(t, tr.Fits)
	require.Len(t, tr.Request.Messages, 1)
	assert.Equal(t, "user", tr.Request.Messages[0].Role)
}

func TestTruncateDoesNotMutateInput(t *testing.T) {
	a := heuristicAccountant(200)
	req := overloadedRequest()
	originalLen := len(req.Messages)
	originalRAG := req.RAGContext

	a.TruncateToTarget(req, []string{config.LeverRAG, config.LeverTools, config.LeverHistory})

	assert.Len(t, req.Messages, originalLen)
	assert.Equal(t, originalRAG, req.RAGContext)
	assert.NotEmpty(t, req.Tools)
}

func TestTruncateSkipsSyntheticUsersAsPairBoundaries(t *testing.T) {
	a := heuristicAccountant(100)
	req := TurnRequest{
		Messages: []*llm.Message{
			textMessage("user", 120),
			textMessage("assistant", 120),
			{Role: "user", Content: strings.Repeat("a", 120), Synthetic: true},
			textMessage("assistant", 120),
			textMessage("user", 40),
		},
	}

	tr := a.TruncateToTarget(req, []string{config.LeverHistory})

	// The first real pair plus the synthetic exchange is one droppable unit.
	assert.True(t, tr.Fits)
	require.NotEmpty(t, tr.Request.Messages)
	last := tr.Request.Messages[len(tr.Request.Messages)-1]
	assert.Equal(t, "user", last.Role)
	assert.False(t, last.Synthetic)
}

func TestNewAccountantKnowsModelWindows(t *testing.T) {
	assert.Equal(t, 200000, NewAccountant("claude-sonnet-4-5").window)
	assert.Equal(t, llm.DetectContextWindow("gpt-4o"), NewAccountant("gpt-4o").window)
	assert.Greater(t, NewAccountant("some-unknown-model").window, 0)
}
