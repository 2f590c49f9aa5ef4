package websocket

import (
	"bytes"
	"testing"
)

// oneSecond is one second of 16-bit mono PCM at 16 kHz.
const oneSecond = 16000 * 2

func TestBufferThresholdCrossing(t *testing.T) {
	buf := NewAudioBuffer(5.0, 16000)

	drains := 0
	total := 0
	for i := 0; i < 5; i++ {
		frame := bytes.Repeat([]byte{byte(i)}, oneSecond)
		buf.Append(frame)
		total += len(frame)
		if buf.Ready() {
			unit := buf.Drain()
			drains++
			if len(unit.PCM) != total {
				t.Errorf("Expected drained unit of %d bytes, got %d", total, len(unit.PCM))
			}
		}
	}

	if drains != 1 {
		t.Errorf("Expected exactly one drain, got %d", drains)
	}
	if buf.Duration() != 0 {
		t.Errorf("Expected empty buffer after drain, got %f seconds", buf.Duration())
	}
}

func TestBufferIrregularFrameSizes(t *testing.T) {
	buf := NewAudioBuffer(1.0, 16000)

	// 0.4s + 0.4s: below threshold.
	buf.Append(make([]byte, 12800))
	buf.Append(make([]byte, 12800))
	if buf.Ready() {
		t.Fatal("Buffer should not be ready at 0.8s")
	}

	// A tiny 0.25s frame pushes it over.
	buf.Append(make([]byte, 8000))
	if !buf.Ready() {
		t.Fatal("Buffer should be ready at 1.05s")
	}

	unit := buf.Drain()
	if len(unit.PCM) != 33600 {
		t.Errorf("Expected 33600 bytes, got %d", len(unit.PCM))
	}
	if unit.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", unit.SampleRate)
	}
}

func TestBufferPreservesOrderAndContent(t *testing.T) {
	buf := NewAudioBuffer(1.0, 16000)

	buf.Append([]byte{1, 1})
	buf.Append([]byte{2})
	buf.Append([]byte{3, 3, 3})

	unit := buf.Drain()
	want := []byte{1, 1, 2, 3, 3, 3}
	if !bytes.Equal(unit.PCM, want) {
		t.Errorf("Expected %v, got %v", want, unit.PCM)
	}
}

func TestBufferFreshWindowAfterDrain(t *testing.T) {
	buf := NewAudioBuffer(1.0, 16000)

	buf.Append(make([]byte, 2*oneSecond))
	first := buf.Drain()
	if first.Seconds != 2.0 {
		t.Errorf("Expected 2.0 seconds drained, got %f", first.Seconds)
	}

	buf.Append(make([]byte, 100))
	if buf.Ready() {
		t.Error("New window should not inherit the previous window's bytes")
	}
	second := buf.Drain()
	if len(second.PCM) != 100 {
		t.Errorf("Expected 100 bytes in second window, got %d", len(second.PCM))
	}
}

func TestBufferDuration(t *testing.T) {
	buf := NewAudioBuffer(5.0, 16000)
	buf.Append(make([]byte, oneSecond/2))

	if got := buf.Duration(); got != 0.5 {
		t.Errorf("Expected 0.5 seconds, got %f", got)
	}
	if buf.Window() != 5.0 {
		t.Errorf("Expected window 5.0, got %f", buf.Window())
	}
}
