package client

import (
	"context"
	"errors"
	"io"
	"time"
)

// Source supplies PCM frames for streaming to the server.
type Source interface {
	// NextFrame returns the next PCM frame. io.EOF signals the end of the
	// source; the caller should then send an end-of-audio marker.
	NextFrame(ctx context.Context) ([]byte, error)
}

// ReaderSource paces an io.Reader of raw 16-bit mono PCM into fixed-duration
// frames, simulating a live microphone. A file fed through it arrives at the
// server at the same rate a real capture device would produce it.
type ReaderSource struct {
	r         io.Reader
	frameSize int
	interval  time.Duration
	last      time.Time
}

// NewReaderSource creates a Source that emits frames of frameDuration worth
// of audio at the given sample rate, no faster than real time.
func NewReaderSource(r io.Reader, sampleRate int, frameDuration time.Duration) *ReaderSource {
	bytesPerSecond := sampleRate * 2
	frameSize := int(float64(bytesPerSecond) * frameDuration.Seconds())
	if frameSize < 2 {
		frameSize = 2
	}
	return &ReaderSource{
		r:         r,
		frameSize: frameSize,
		interval:  frameDuration,
	}
}

// NextFrame reads one frame, sleeping as needed to hold the real-time pace.
func (s *ReaderSource) NextFrame(ctx context.Context) ([]byte, error) {
	if !s.last.IsZero() {
		wait := s.interval - time.Since(s.last)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	s.last = time.Now()

	frame := make([]byte, s.frameSize)
	n, err := io.ReadFull(s.r, frame)
	if n > 0 {
		return frame[:n], nil
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return nil, io.EOF
}

// Stream sends every frame of src over the client, then signals end of audio.
// It returns when the source is exhausted, the context is cancelled, or a
// send fails.
func (c *Client) Stream(ctx context.Context, src Source) error {
	for {
		frame, err := src.NextFrame(ctx)
		if errors.Is(err, io.EOF) {
			return c.EndAudio()
		}
		if err != nil {
			return err
		}
		if err := c.SendAudio(frame); err != nil {
			return err
		}
	}
}
