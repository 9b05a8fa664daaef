// Package audio handles the telephony wire format: μ-law 8kHz mono frames
// carried as base64 payloads, plus the amplitude heuristic used for
// voice-activity detection.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// JoinFrames decodes a sequence of base64 media payloads into one byte
// stream. Each frame is a self-contained base64 unit that may carry its own
// padding; naive string concatenation would splice '=' characters (and the
// zero bits they stand for) into the middle of the stream and shift every
// byte after them. Each frame is therefore decoded on its own and the raw
// bytes concatenated.
func JoinFrames(frames []string) ([]byte, error) {
	var out []byte
	for i, f := range frames {
		// Drop anything outside the base64 alphabet (whitespace, control
		// bytes smuggled in by the transport), then re-pad.
		cleaned := strings.Map(func(r rune) rune {
			switch {
			case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/':
				return r
			default:
				return -1
			}
		}, f)
		if cleaned == "" {
			continue
		}
		if pad := (4 - len(cleaned)%4) % 4; pad > 0 {
			cleaned += strings.Repeat("=", pad)
		}

		raw, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("decoding frame %d: %w", i, err)
		}
		out = append(out, raw...)
	}
	return out, nil
}

// RMS computes the root-mean-square amplitude of raw μ-law bytes.
func RMS(payload []byte) float64 {
	if len(payload) == 0 {
		return 0
	}
	var sum float64
	for _, b := range payload {
		s := float64(b)
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(payload)))
}

// HasSpeech reports whether a single base64 frame carries voice energy
// above threshold. An undecodable frame counts as speech: dropping real
// audio is worse than buffering noise.
func HasSpeech(frame string, threshold float64) bool {
	raw, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		return true
	}
	return RMS(raw) > threshold
}

// WAV format codes used in the fmt chunk.
const (
	FormatPCM  = 1
	FormatULaw = 7
)

// WAVHeader builds a 44-byte RIFF/WAVE header for the given raw audio data.
func WAVHeader(dataLen, sampleRate, channels, format, bitsPerSample int) []byte {
	h := make([]byte, 44)

	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(36+dataLen))
	copy(h[8:12], "WAVE")

	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], uint16(format))
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	byteRate := sampleRate * channels * bitsPerSample / 8
	binary.LittleEndian.PutUint32(h[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:34], uint16(channels*bitsPerSample/8))
	binary.LittleEndian.PutUint16(h[34:36], uint16(bitsPerSample))

	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(dataLen))

	return h
}

// MulawWAV wraps raw μ-law bytes in a G.711 WAV container so STT vendors
// can read the encoded duration correctly.
func MulawWAV(mulaw []byte) []byte {
	header := WAVHeader(len(mulaw), 8000, 1, FormatULaw, 8)
	return append(header, mulaw...)
}

// Chunk splits b into fixed-size pieces; the last piece may be shorter.
func Chunk(b []byte, size int) [][]byte {
	if size <= 0 || len(b) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, (len(b)+size-1)/size)
	for len(b) > size {
		chunks = append(chunks, b[:size])
		b = b[size:]
	}
	return append(chunks, b)
}
