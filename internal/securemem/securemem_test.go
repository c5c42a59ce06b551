package securemem

import (
	"testing"
)

func TestNewString(t *testing.T) {
	plaintext := "test-secret-123"
	s := NewString(plaintext)
	defer s.Destroy()

	if s.String() != plaintext {
		t.Errorf("expected %q, got %q", plaintext, s.String())
	}
	if s.IsEmpty() {
		t.Error("expected non-empty secure string")
	}
}

func TestEmptyString(t *testing.T) {
	s := NewString("")
	if !s.IsEmpty() {
		t.Error("empty plaintext should produce an empty secure string")
	}
	if !s.Equal("") {
		t.Error("empty secure string should equal the empty string")
	}

	called := false
	s.WithValue(func(string) { called = true })
	if called {
		t.Error("WithValue should not run for an empty secure string")
	}
}

func TestStringEqual(t *testing.T) {
	s1 := NewString("secret")
	defer s1.Destroy()

	if !s1.Equal("secret") {
		t.Error("Equal should return true for matching strings")
	}
	if s1.Equal("different") {
		t.Error("Equal should return false for non-matching strings")
	}
}

func TestDestroy(t *testing.T) {
	s := NewString("wipe-me")
	s.Destroy()

	if s.String() != "" {
		t.Errorf("destroyed string should be empty, got %q", s.String())
	}
	// Destroying twice is a no-op.
	s.Destroy()

	var nilString *String
	if !nilString.IsEmpty() {
		t.Error("nil secure string should report empty")
	}
}
