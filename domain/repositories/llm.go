package repositories

import (
	"context"

	"github.com/dreysen/voicelink/domain/entities"
)

// LargeLanguageModel abstracts any chat/LLM provider.
type LargeLanguageModel interface {
	// GenerateReply produces the assistant's reply to text, given the
	// session's prior conversation history.
	GenerateReply(ctx context.Context, text string, history []entities.Message) (string, error)
}
