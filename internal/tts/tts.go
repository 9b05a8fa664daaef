// Package tts defines the interface for text-to-speech synthesis.
//
// The agent's reply is synthesized in Hebrew and then transcoded to
// 8kHz mono mulaw before being sent back over the media stream, so
// backends are free to return whatever container they produce natively
// (MP3 for ElevenLabs, WAV for Piper).
package tts

import "context"

// Result holds the output of a synthesis call.
type Result struct {
	// Audio is the synthesized audio in the backend's native container.
	Audio []byte

	// ContentType is the MIME type of Audio ("audio/mpeg", "audio/wav").
	ContentType string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Name returns a short identifier for the backend (e.g. "elevenlabs").
	Name() string

	// Synthesize generates audio from the given text.
	Synthesize(ctx context.Context, text string) (*Result, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}
