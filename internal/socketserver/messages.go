package socketserver

import (
	"time"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/orchestrator"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/progress"
)

// Frame type constants
const (
	// MessageTypeProgress carries one progress event from a running turn
	MessageTypeProgress = "progress"
	// MessageTypeReply carries the final reply envelope of a turn
	MessageTypeReply = "reply"
	// MessageTypeError carries a bridge-level failure
	MessageTypeError = "error"
)

// Frame is the wire envelope pushed to every connected WebSocket client.
type Frame struct {
	Type      string              `json:"type"`
	SessionID string              `json:"session_id,omitempty"`
	Event     *progress.Event     `json:"event,omitempty"`
	Reply     *orchestrator.Reply `json:"reply,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	Message   string `json:"message"`
	Streaming bool   `json:"streaming,omitempty"`
}

// HealthResponse is the GET /api/health body.
type HealthResponse struct {
	Status         string    `json:"status"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	Dataset        string    `json:"dataset,omitempty"`
	Clients        int       `json:"clients"`
	SessionStarted time.Time `json:"session_started"`
	LastActivity   time.Time `json:"last_activity"`
}
