package client

import (
	"context"
	"io"
	"time"
)

// Sink consumes synthesized PCM for playback.
type Sink interface {
	// Play writes one utterance of 16-bit mono PCM at the given sample rate.
	// Implementations should honor ctx cancellation mid-utterance.
	Play(ctx context.Context, sampleRate int, pcm []byte) error
}

// WriterSink streams PCM into an io.Writer in real-time paced chunks, so a
// piped player (or a file tailer) receives audio at playback speed and a
// cancelled context stops an utterance mid-way.
type WriterSink struct {
	w    io.Writer
	tick time.Duration
}

// NewWriterSink creates a Sink over w. tick controls chunking granularity;
// zero means 20ms.
func NewWriterSink(w io.Writer, tick time.Duration) *WriterSink {
	if tick <= 0 {
		tick = 20 * time.Millisecond
	}
	return &WriterSink{w: w, tick: tick}
}

// Play writes pcm in tick-sized chunks at real-time pace.
func (s *WriterSink) Play(ctx context.Context, sampleRate int, pcm []byte) error {
	bytesPerSecond := sampleRate * 2
	chunk := int(float64(bytesPerSecond) * s.tick.Seconds())
	if chunk < 2 {
		chunk = 2
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for off := 0; off < len(pcm); off += chunk {
		end := off + chunk
		if end > len(pcm) {
			end = len(pcm)
		}
		if _, err := s.w.Write(pcm[off:end]); err != nil {
			return err
		}
		if end == len(pcm) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
