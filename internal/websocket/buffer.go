package websocket

// AudioUnit is one drained block of accumulated PCM audio, ready for the
// transcription pipeline.
type AudioUnit struct {
	PCM        []byte
	SampleRate int
	Seconds    float64
}

// AudioBuffer accumulates raw PCM frames until a target duration is reached.
// Duration is computed from the accumulated byte count (16-bit mono PCM), not
// the frame count, so irregular frame sizes are handled correctly.
//
// AudioBuffer is not safe for concurrent use. Each session owns exactly one
// buffer, appended to and drained only from that session's read loop.
type AudioBuffer struct {
	windowSeconds  float64
	sampleRate     int
	bytesPerSecond int

	chunks     [][]byte
	totalBytes int
}

// NewAudioBuffer creates a buffer that drains once windowSeconds of 16-bit
// mono PCM at sampleRate has accumulated.
func NewAudioBuffer(windowSeconds float64, sampleRate int) *AudioBuffer {
	return &AudioBuffer{
		windowSeconds:  windowSeconds,
		sampleRate:     sampleRate,
		bytesPerSecond: sampleRate * 2,
	}
}

// Append adds one audio frame to the current window. Frames are kept in
// receipt order and never reordered.
func (b *AudioBuffer) Append(data []byte) {
	b.chunks = append(b.chunks, data)
	b.totalBytes += len(data)
}

// Duration returns the seconds of audio currently buffered.
func (b *AudioBuffer) Duration() float64 {
	if b.bytesPerSecond == 0 {
		return 0
	}
	return float64(b.totalBytes) / float64(b.bytesPerSecond)
}

// Window returns the configured target duration in seconds.
func (b *AudioBuffer) Window() float64 {
	return b.windowSeconds
}

// Ready reports whether the buffered duration has reached the target window.
func (b *AudioBuffer) Ready() bool {
	return b.Duration() >= b.windowSeconds
}

// Drain concatenates the buffered frames into a single AudioUnit and resets
// the buffer so the next Append starts a fresh window. The unit's byte length
// equals the exact sum of the appended frame lengths.
func (b *AudioBuffer) Drain() AudioUnit {
	pcm := make([]byte, 0, b.totalBytes)
	for _, chunk := range b.chunks {
		pcm = append(pcm, chunk...)
	}
	unit := AudioUnit{
		PCM:        pcm,
		SampleRate: b.sampleRate,
		Seconds:    b.Duration(),
	}
	b.chunks = nil
	b.totalBytes = 0
	return unit
}
