package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the sender of a conversation turn.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// maxHistoryMessages caps the conversation history handed to the language
// model, counted in individual messages (two per exchange), so long sessions
// do not grow prompts without bound.
const maxHistoryMessages = 20

// ErrAlreadyAuthenticated is returned when a session is authenticated twice.
var ErrAlreadyAuthenticated = errors.New("session already authenticated")

// Message is a single conversation turn.
type Message struct {
	Timestamp time.Time   `json:"timestamp"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
}

// Session holds the server-side state of one WebSocket connection: the
// authenticated principal and the ordered conversation history. A Session is
// created when a connection is accepted and discarded on disconnect; it is
// never shared across connections.
type Session struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// NewSession creates an unauthenticated session with a fresh opaque id.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Messages:  make([]Message, 0),
	}
}

// Authenticate records the principal for this session. It may succeed at
// most once per session.
func (s *Session) Authenticate(email string) error {
	if s.Email != "" {
		return ErrAlreadyAuthenticated
	}
	s.Email = email
	return nil
}

// Authenticated reports whether the handshake has completed.
func (s *Session) Authenticated() bool {
	return s.Email != ""
}

// AddTurn appends a user input and the assistant's reply to the history,
// evicting the oldest messages beyond the history cap.
func (s *Session) AddTurn(userText, assistantText string) {
	now := time.Now()
	s.Messages = append(s.Messages,
		Message{Timestamp: now, Role: MessageRoleUser, Content: userText},
		Message{Timestamp: now, Role: MessageRoleAssistant, Content: assistantText},
	)
	if len(s.Messages) > maxHistoryMessages {
		trimmed := make([]Message, maxHistoryMessages)
		copy(trimmed, s.Messages[len(s.Messages)-maxHistoryMessages:])
		s.Messages = trimmed
	}
}

// History returns the conversation messages for language model context.
func (s *Session) History() []Message {
	return s.Messages
}
