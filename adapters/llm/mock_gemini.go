package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dreysen/voicelink/domain/entities"
	"github.com/dreysen/voicelink/domain/repositories"
)

// MockLLM is a placeholder implementation for response generation
type MockLLM struct {
	logger *zap.Logger
}

// NewMockLLM creates a new mock language model service
func NewMockLLM(logger *zap.Logger) repositories.LargeLanguageModel {
	return &MockLLM{logger: logger}
}

// GenerateReply implements repositories.LargeLanguageModel
func (m *MockLLM) GenerateReply(ctx context.Context, text string, history []entities.Message) (string, error) {
	m.logger.Info("Generating mock reply",
		zap.String("input", text),
		zap.Int("historyLength", len(history)))

	if len(history) == 0 {
		return fmt.Sprintf("Hello! You said: %s", text), nil
	}
	return fmt.Sprintf("I heard you say: %s. We have exchanged %d messages so far.", text, len(history)), nil
}
