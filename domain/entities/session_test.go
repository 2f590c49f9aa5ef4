package entities

import (
	"errors"
	"fmt"
	"testing"
)

func TestSessionCreation(t *testing.T) {
	session := NewSession()

	if session.ID == "" {
		t.Error("Expected a session id to be assigned")
	}
	if session.Authenticated() {
		t.Error("New session should not be authenticated")
	}
	if len(session.Messages) != 0 {
		t.Errorf("Expected empty messages, got %d", len(session.Messages))
	}
}

func TestAuthenticateOnce(t *testing.T) {
	session := NewSession()

	if err := session.Authenticate("valid-a@example.com"); err != nil {
		t.Fatalf("First Authenticate failed: %v", err)
	}
	if !session.Authenticated() {
		t.Error("Session should be authenticated")
	}
	if session.Email != "valid-a@example.com" {
		t.Errorf("Expected email valid-a@example.com, got %s", session.Email)
	}

	err := session.Authenticate("other@example.com")
	if !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Errorf("Expected ErrAlreadyAuthenticated, got %v", err)
	}
	if session.Email != "valid-a@example.com" {
		t.Error("Second Authenticate must not change the principal")
	}
}

func TestAddTurn(t *testing.T) {
	session := NewSession()
	session.AddTurn("hello", "hi there")

	if len(session.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(session.Messages))
	}
	if session.Messages[0].Role != MessageRoleUser || session.Messages[0].Content != "hello" {
		t.Errorf("Unexpected user turn: %+v", session.Messages[0])
	}
	if session.Messages[1].Role != MessageRoleAssistant || session.Messages[1].Content != "hi there" {
		t.Errorf("Unexpected assistant turn: %+v", session.Messages[1])
	}
}

func TestHistoryCapped(t *testing.T) {
	session := NewSession()

	for i := 0; i < 30; i++ {
		session.AddTurn(fmt.Sprintf("user %d", i), fmt.Sprintf("assistant %d", i))
	}

	if len(session.Messages) != maxHistoryMessages {
		t.Fatalf("Expected history capped at %d messages, got %d", maxHistoryMessages, len(session.Messages))
	}
	// 30 exchanges produce 60 messages; the cap keeps the newest 20, so the
	// oldest survivor is the user message from exchange 20.
	if session.Messages[0].Content != "user 20" {
		t.Errorf("Expected oldest message 'user 20', got '%s'", session.Messages[0].Content)
	}
	if session.Messages[len(session.Messages)-1].Content != "assistant 29" {
		t.Errorf("Expected newest message 'assistant 29', got '%s'",
			session.Messages[len(session.Messages)-1].Content)
	}
}
