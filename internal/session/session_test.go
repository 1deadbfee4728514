package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/llm"
)

func TestSessionAddAndCopy(t *testing.T) {
	s := NewSession()
	assert.NotEmpty(t, s.ID)

	s.AddMessage(&llm.Message{Role: "user", Content: "hello"})
	s.AddMessage(&llm.Message{Role: "assistant", Content: "hi"})
	s.AddMessage(nil)

	messages := s.GetMessages()
	require.Len(t, messages, 2)

	// Mutating the copy leaves the session untouched.
	messages[0] = &llm.Message{Role: "user", Content: "tampered"}
	assert.Equal(t, "hello", s.GetMessages()[0].Content)
}

func TestDropOldestExchange(t *testing.T) {
	s := NewSession()
	s.AddMessage(&llm.Message{Role: "user", Content: "first question"})
	s.AddMessage(&llm.Message{Role: "assistant", ToolCalls: []map[string]interface{}{{"id": "call_1"}}})
	s.AddMessage(&llm.Message{Role: "tool", ToolID: "call_1", Content: `{"ok":true}`})
	s.AddMessage(&llm.Message{Role: "assistant", Content: "first answer"})
	s.AddMessage(&llm.Message{Role: "user", Content: "second question"})
	s.AddMessage(&llm.Message{Role: "assistant", Content: "second answer"})

	require.True(t, s.DropOldestExchange())

	messages := s.GetMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, "second question", messages[0].Content)
}

func TestDropOldestExchangeKeepsCurrentTurn(t *testing.T) {
	s := NewSession()
	s.AddMessage(&llm.Message{Role: "user", Content: "only question"})
	s.AddMessage(&llm.Message{Role: "assistant", Content: "only answer"})

	// A single exchange is the current turn; it must survive.
	assert.False(t, s.DropOldestExchange())
	assert.Equal(t, 2, s.MessageCount())

	empty := NewSession()
	assert.False(t, empty.DropOldestExchange())
}

func TestDropOldestExchangeSkipsSyntheticUsers(t *testing.T) {
	s := NewSession()
	s.AddMessage(&llm.Message{Role: "user", Content: "real question"})
	s.AddMessage(&llm.Message{Role: "user", Content: `{"tool":"result"}`, Synthetic: true})
	s.AddMessage(&llm.Message{Role: "assistant", Content: "answer"})
	s.AddMessage(&llm.Message{Role: "user", Content: "next question"})

	require.True(t, s.DropOldestExchange())

	messages := s.GetMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "next question", messages[0].Content)
}

func TestClearAndStreaming(t *testing.T) {
	s := NewSession()
	s.AddMessage(&llm.Message{Role: "user", Content: "hello"})
	s.Clear()
	assert.Equal(t, 0, s.MessageCount())
	assert.NotEmpty(t, s.ID)

	assert.False(t, s.Streaming())
	s.SetStreaming(true)
	assert.True(t, s.Streaming())
}

