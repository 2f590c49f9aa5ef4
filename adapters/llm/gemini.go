// Package llm adapts the Gemini API to the LargeLanguageModel repository.
package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/dreysen/voicelink/domain/entities"
	"github.com/dreysen/voicelink/domain/repositories"
)

const (
	defaultModel = "gemini-2.0-flash"

	systemPrompt = "You are a friendly voice assistant. Keep replies short and " +
		"conversational, as they will be read aloud. Avoid lists, markdown, and " +
		"anything that does not sound natural when spoken."
)

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(apiKey, model string, logger *zap.Logger) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiLLM{
		client: client,
		logger: logger,
		model:  model,
	}, nil
}

// GenerateReply produces one assistant reply for the given user text,
// conditioned on the session's conversation history.
func (g *GeminiLLM) GenerateReply(ctx context.Context, text string, history []entities.Message) (string, error) {
	// System instruction, then history, then the current user turn.
	contents := make([]*genai.Content, 0, len(history)+2)
	contents = append(contents, genai.NewContentFromText(systemPrompt, genai.RoleUser))
	contents = append(contents, convertHistory(history)...)
	contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.7)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content generated")
	}

	var reply string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			reply += part.Text
		}
	}
	if reply == "" {
		return "", fmt.Errorf("empty response from model")
	}

	g.logger.Debug("Generated reply",
		zap.Int("historyLength", len(history)),
		zap.Int("replyLength", len(reply)))

	return reply, nil
}

// convertHistory converts session messages to Gemini format
func convertHistory(messages []entities.Message) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == entities.MessageRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}
