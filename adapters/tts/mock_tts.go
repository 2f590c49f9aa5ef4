package tts

import (
	"context"

	"go.uber.org/zap"

	"github.com/dreysen/voicelink/domain/repositories"
)

// MockTTS is a placeholder implementation for speech synthesis
type MockTTS struct {
	logger *zap.Logger
}

// NewMockTTS creates a new mock text-to-speech service
func NewMockTTS(logger *zap.Logger) repositories.TextToSpeech {
	return &MockTTS{logger: logger}
}

// Synthesize implements repositories.TextToSpeech. It produces a short burst
// of silence sized to roughly 50ms per character, which is enough to exercise
// the audio path end to end.
func (m *MockTTS) Synthesize(ctx context.Context, text string) (int, []byte, error) {
	const sampleRate = 22050

	m.logger.Info("Synthesizing mock speech", zap.Int("textLength", len(text)))

	samplesPerChar := sampleRate / 20
	pcm := make([]byte, len(text)*samplesPerChar*2)
	return sampleRate, pcm, nil
}
