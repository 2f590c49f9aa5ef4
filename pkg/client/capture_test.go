package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestReaderSourceFrames(t *testing.T) {
	// 16kHz, 10ms frames: 320 bytes each. 3.5 frames of data.
	data := make([]byte, 320*3+160)
	src := NewReaderSource(bytes.NewReader(data), 16000, 10*time.Millisecond)

	var total int
	var frames int
	for {
		frame, err := src.NextFrame(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextFrame failed: %v", err)
		}
		frames++
		total += len(frame)
		if frames < 4 && len(frame) != 320 {
			t.Errorf("Frame %d: expected 320 bytes, got %d", frames, len(frame))
		}
	}
	if frames != 4 {
		t.Errorf("Expected 4 frames, got %d", frames)
	}
	if total != len(data) {
		t.Errorf("Expected %d total bytes, got %d", len(data), total)
	}
}

func TestReaderSourceCancel(t *testing.T) {
	data := make([]byte, 3200)
	src := NewReaderSource(bytes.NewReader(data), 16000, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := src.NextFrame(ctx); err != nil {
		t.Fatalf("First frame failed: %v", err)
	}
	cancel()
	if _, err := src.NextFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestWriterSinkWritesEverything(t *testing.T) {
	var out bytes.Buffer
	sink := NewWriterSink(&out, time.Millisecond)

	pcm := make([]byte, 4410) // 100ms at 22050Hz
	if err := sink.Play(context.Background(), 22050, pcm); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if out.Len() != len(pcm) {
		t.Errorf("Expected %d bytes written, got %d", len(pcm), out.Len())
	}
}

func TestWriterSinkCancelStopsEarly(t *testing.T) {
	var out bytes.Buffer
	sink := NewWriterSink(&out, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pcm := make([]byte, 44100) // 1s at 22050Hz
	err := sink.Play(ctx, 22050, pcm)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if out.Len() >= len(pcm) {
		t.Error("Expected the write to stop before completion")
	}
}
