// Package wav encodes and decodes the RIFF/WAVE container used for audio
// exchanged with the speech services and with clients.
package wav

import "encoding/binary"

const (
	// headerSize is the byte length of a canonical PCM WAV header
	// (RIFF descriptor + fmt chunk + data chunk header).
	headerSize = 44

	// sampleRateOffset is the fixed offset of the little-endian sample rate
	// field inside the fmt chunk of a canonical header.
	sampleRateOffset = 24

	// chunkScanStart is where sub-chunk scanning begins, right after the
	// RIFF descriptor ("RIFF" + size + "WAVE").
	chunkScanStart = 12

	bitsPerSample = 16
	numChannels   = 1
)

// Encode wraps raw 16-bit mono PCM in a WAV container with the given sample
// rate. The payload may be empty.
func Encode(sampleRate int, pcm []byte) []byte {
	buf := make([]byte, headerSize+len(pcm))

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], numChannels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], numChannels*bitsPerSample/8) // block align
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)

	return buf
}

// Decode extracts the sample rate and PCM payload from a WAV container.
// Payloads without a RIFF header are returned untouched as raw PCM at
// defaultRate. A recognised container whose data chunk cannot be located
// falls back to the canonical 44-byte header offset.
func Decode(b []byte, defaultRate int) (sampleRate int, pcm []byte) {
	if len(b) < chunkScanStart || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return defaultRate, b
	}

	sampleRate = defaultRate
	if len(b) >= sampleRateOffset+4 {
		if sr := binary.LittleEndian.Uint32(b[sampleRateOffset : sampleRateOffset+4]); sr > 0 {
			sampleRate = int(sr)
		}
	}

	// Walk the sub-chunks looking for the data chunk. Chunks are padded to
	// even lengths per the RIFF spec.
	off := chunkScanStart
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		if id == "data" {
			start := off + 8
			end := start + size
			if end > len(b) {
				end = len(b)
			}
			return sampleRate, b[start:end]
		}
		off += 8 + size
		if size%2 == 1 {
			off++
		}
	}

	// No data chunk found; assume a canonical header layout.
	if len(b) > headerSize {
		return sampleRate, b[headerSize:]
	}
	return sampleRate, nil
}
