package web

import (
	"time"

	"github.com/codefionn/geocopilot/internal/orchestrator"
	"github.com/codefionn/geocopilot/internal/session"
)

// Message types
const (
	MessageTypeTurn     = "turn"     // client -> server: run a turn
	MessageTypeReset    = "reset"    // client -> server: clear the session
	MessageTypeProgress = "progress" // server -> client: stage update
	MessageTypeResult   = "result"   // server -> client: finished turn
	MessageTypeSession  = "session"  // server -> client: transcript and snapshot
	MessageTypeSystem   = "system"
	MessageTypeError    = "error"
)

// WebMessage represents a message sent over WebSocket
type WebMessage struct {
	Type      string                   `json:"type"`
	Content   string                   `json:"content,omitempty"`
	Stage     string                   `json:"stage,omitempty"`
	Result    *orchestrator.TurnResult `json:"result,omitempty"`
	Session   *SessionView             `json:"session,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Timestamp time.Time                `json:"timestamp,omitempty"`
}

// TurnRequest is the body of POST /api/turn.
type TurnRequest struct {
	Utterance string `json:"utterance"`
}

// SessionView is the JSON form of the session.
type SessionView struct {
	ID       string             `json:"id"`
	Model    string             `json:"model"`
	Turns    int                `json:"turns"`
	Messages []*session.Message `json:"messages"`
	Latest   *session.Snapshot  `json:"latest,omitempty"`
}

func newSessionView(s *session.Session, model string) *SessionView {
	view := &SessionView{
		ID:       s.ID,
		Model:    model,
		Turns:    s.TurnCount(),
		Messages: s.GetMessages(),
	}
	if snap, ok := s.Latest(); ok {
		view.Latest = &snap
	}
	return view
}
