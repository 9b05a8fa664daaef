// Package stt defines the speech-to-text collaborator contract.
//
// Transcribers consume a complete WAV-wrapped utterance and return plain
// text. From the caller's point of view silence and failure look the same:
// an empty string. An error is only returned for conditions the turn
// processor should recover from with an apology (network, vendor outage),
// never for "nothing was said".
package stt

import "context"

// Transcriber converts one buffered utterance to text.
type Transcriber interface {
	// Name returns the backend identifier (e.g., "whisper", "elevenlabs").
	Name() string

	// Transcribe converts WAV audio to text using the given ISO-639-1
	// language hint. An empty result means silence or unintelligible audio.
	Transcribe(ctx context.Context, wav []byte, language string) (string, error)
}
