package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dreysen/voicelink/domain/repositories"
)

// MockSpeechToText is a placeholder implementation for speech recognition
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.logger.Info("Processing speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	// Mock transcription based on audio size
	switch {
	case len(audioData) > 100000:
		return "Can you tell me more about what you said earlier? I'd like to hear the whole story.", nil
	case len(audioData) > 50000:
		return "That sounds interesting, tell me more.", nil
	case len(audioData) > 10000:
		return "Hello, how are you today?", nil
	default:
		return "Hi", nil
	}
}
