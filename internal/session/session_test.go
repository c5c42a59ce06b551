package session

import (
	"testing"

	"github.com/google/uuid"

	"github.com/codefionn/geocopilot/internal/catalog"
	"github.com/codefionn/geocopilot/internal/geomap"
)

func TestRecordTurn(t *testing.T) {
	s := NewSession("test")

	snap := &Snapshot{TurnID: "t1", Category: catalog.Wildfire, Output: "ok", Map: &geomap.MapArtifact{Zoom: 6}}
	s.RecordTurn("show me wildfire risk zones", snap)

	messages := s.GetMessages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != RoleUser || messages[0].Content != "show me wildfire risk zones" {
		t.Fatalf("unexpected user message %+v", messages[0])
	}
	if messages[1].Role != RoleAssistant || messages[1].Content != Acknowledgement {
		t.Fatalf("unexpected assistant message %+v", messages[1])
	}

	latest, ok := s.Latest()
	if !ok {
		t.Fatal("expected a snapshot")
	}
	if latest.TurnID != "t1" || latest.Map.Zoom != 6 {
		t.Fatalf("unexpected snapshot %+v", latest)
	}
	if latest.CreatedAt.IsZero() {
		t.Fatal("expected snapshot timestamp")
	}
	if s.TurnCount() != 1 || s.UserMessageCount() != 1 {
		t.Fatalf("unexpected counts: turns=%d users=%d", s.TurnCount(), s.UserMessageCount())
	}
}

func TestLatestSnapshotReplaced(t *testing.T) {
	s := NewSession("test")
	s.RecordTurn("one", &Snapshot{TurnID: "a"})
	s.RecordTurn("two", &Snapshot{TurnID: "b"})

	latest, _ := s.Latest()
	if latest.TurnID != "b" {
		t.Fatalf("expected latest snapshot b, got %s", latest.TurnID)
	}
	if len(s.GetMessages()) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(s.GetMessages()))
	}
}

func TestClear(t *testing.T) {
	s := NewSession("test")
	s.AddMessage(&Message{Role: RoleUser, Content: "hello"})
	s.RecordTurn("hello", &Snapshot{TurnID: "a"})

	s.Clear()

	if len(s.GetMessages()) != 0 {
		t.Fatal("expected empty transcript")
	}
	if _, ok := s.Latest(); ok {
		t.Fatal("expected no snapshot after clear")
	}
	if s.TurnCount() != 0 {
		t.Fatal("expected turn count reset")
	}
}

func TestGetMessagesReturnsCopy(t *testing.T) {
	s := NewSession("test")
	s.AddMessage(&Message{Role: RoleUser, Content: "hello"})

	messages := s.GetMessages()
	messages[0] = nil

	if s.GetMessages()[0] == nil {
		t.Fatal("session transcript was modified through the returned slice")
	}
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("expected uuid, got %q: %v", id, err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7 uuid, got %d", parsed.Version())
	}
	if NewSession("").ID == "" {
		t.Fatal("expected generated session id")
	}
}
