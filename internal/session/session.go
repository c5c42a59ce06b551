package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/geocopilot/internal/catalog"
	"github.com/codefionn/geocopilot/internal/geomap"
)

// Acknowledgement is the assistant reply recorded for every turn. The
// actual results live in the workspace snapshot.
const Acknowledgement = "Executed. See Workspace."

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a conversation message
type Message struct {
	Role      string    `json:"role"` // "user", "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the workspace state produced by the most recent turn.
type Snapshot struct {
	TurnID    string              `json:"turn_id"`
	Utterance string              `json:"utterance"`
	Category  catalog.Category    `json:"category"`
	Code      string              `json:"code"`
	Output    string              `json:"output"`
	Failed    bool                `json:"failed"`
	Map       *geomap.MapArtifact `json:"map,omitempty"`
	Items     []geomap.ResultItem `json:"items"`
	CreatedAt time.Time           `json:"created_at"`
}

// Session holds the transcript and the latest workspace snapshot. Only
// the latest snapshot is kept.
type Session struct {
	ID string

	mu        sync.RWMutex
	messages  []*Message
	latest    *Snapshot
	turns     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates a new session
func NewSession(id string) *Session {
	if id == "" {
		id = GenerateID()
	}
	now := time.Now()
	return &Session{
		ID:        id,
		messages:  make([]*Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GenerateID returns a time-ordered identifier for sessions and turns.
func GenerateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("turn-%d", time.Now().UnixNano())
	}
	return id.String()
}

// AddMessage adds a message to the session
func (s *Session) AddMessage(msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.Timestamp = time.Now()
	s.messages = append(s.messages, msg)
	s.UpdatedAt = msg.Timestamp
}

// RecordTurn appends the user utterance and the acknowledgement and
// replaces the snapshot.
func (s *Session) RecordTurn(utterance string, snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.messages = append(s.messages,
		&Message{Role: RoleUser, Content: utterance, Timestamp: now},
		&Message{Role: RoleAssistant, Content: Acknowledgement, Timestamp: now},
	)
	if snap != nil && snap.CreatedAt.IsZero() {
		snap.CreatedAt = now
	}
	s.latest = snap
	s.turns++
	s.UpdatedAt = now
}

// GetMessages returns all messages
func (s *Session) GetMessages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := make([]*Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

// UserMessageCount returns how many user messages are present in the session.
func (s *Session) UserMessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, msg := range s.messages {
		if msg != nil && msg.Role == RoleUser {
			count++
		}
	}
	return count
}

// Latest returns a copy of the most recent snapshot.
func (s *Session) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Snapshot{}, false
	}
	return *s.latest, true
}

// TurnCount is the number of turns since the session was created or cleared.
func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turns
}

// Clear drops the transcript and the snapshot.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]*Message, 0)
	s.latest = nil
	s.turns = 0
	s.UpdatedAt = time.Now()
}
