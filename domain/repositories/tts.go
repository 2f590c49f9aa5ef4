package repositories

import "context"

// TextToSpeech abstracts speech synthesis services.
type TextToSpeech interface {
	// Synthesize renders text as raw 16-bit mono PCM and reports the
	// sample rate the provider produced.
	Synthesize(ctx context.Context, text string) (sampleRate int, pcm []byte, err error)
}
