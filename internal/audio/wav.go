package audio

import (
	"encoding/binary"
)

// wavHeaderSize is the size of the canonical PCM WAV header we emit.
const wavHeaderSize = 44

// EncodeWAV wraps raw little-endian 16-bit PCM samples in a minimal WAV
// container so downstream tools can decode them without out-of-band format
// information. The header encodes the true data length, not a streaming
// placeholder.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out, WAVHeader(len(pcm), sampleRate, channels))
	copy(out[wavHeaderSize:], pcm)
	return out
}

// WAVHeader builds the 44-byte canonical PCM WAV header for a data chunk of
// the given byte length.
func WAVHeader(dataLen, sampleRate, channels int) []byte {
	const bitsPerSample = 16

	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	blockAlign := uint16(channels * bitsPerSample / 8)

	h := make([]byte, wavHeaderSize)

	// RIFF chunk descriptor
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(36+dataLen))
	copy(h[8:12], "WAVE")

	// "fmt " sub-chunk (PCM)
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1)
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], byteRate)
	binary.LittleEndian.PutUint16(h[32:34], blockAlign)
	binary.LittleEndian.PutUint16(h[34:36], bitsPerSample)

	// "data" sub-chunk
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(dataLen))

	return h
}
