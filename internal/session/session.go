// Package session holds per-conversation state: the message history the
// orchestrator reads and appends, and the streaming preference of the
// connected client.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/llm"
)

// Session manages one conversation.
type Session struct {
	ID string

	mu        sync.RWMutex
	messages  []*llm.Message
	streaming bool
	createdAt time.Time
	updatedAt time.Time
}

// NewSession creates an empty session with a fresh identifier.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		createdAt: now,
		updatedAt: now,
	}
}

// AddMessage appends a message to the history.
func (s *Session) AddMessage(msg *llm.Message) {
	if msg == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.updatedAt = time.Now()
}

// GetMessages returns a copy of the history. Callers may reorder or drop
// entries without affecting the session.
func (s *Session) GetMessages() []*llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := make([]*llm.Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

// MessageCount returns the number of messages in the history.
func (s *Session) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// DropOldestExchange removes the oldest user message together with the
// assistant, tool, and synthetic messages that answered it. Returns false
// when no complete exchange is left to drop.
func (s *Session) DropOldestExchange() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := -1
	for i, msg := range s.messages {
		if msg.Role == "user" && !msg.Synthetic {
			start = i
			break
		}
	}
	if start == -1 {
		return false
	}

	end := len(s.messages)
	for i := start + 1; i < len(s.messages); i++ {
		if s.messages[i].Role == "user" && !s.messages[i].Synthetic {
			end = i
			break
		}
	}
	if end == len(s.messages) {
		// The oldest exchange is also the newest; dropping it would erase
		// the current turn.
		return false
	}

	s.messages = append(s.messages[:start], s.messages[end:]...)
	s.updatedAt = time.Now()
	return true
}

// Clear drops the whole history but keeps the session identity.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.updatedAt = time.Now()
}

// SetStreaming records whether the client wants token streaming.
func (s *Session) SetStreaming(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming = enabled
}

// Streaming reports the client's streaming preference.
func (s *Session) Streaming() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streaming
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// UpdatedAt returns when the session last changed.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
