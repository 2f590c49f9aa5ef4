package repositories

import "context"

// SpeechToText abstracts speech recognition services.
type SpeechToText interface {
	// TranscribeAudio converts raw PCM audio to text.
	TranscribeAudio(ctx context.Context, audioData []byte, config AudioConfig) (string, error)
}

// AudioConfig describes the PCM audio handed to the recogniser.
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}
