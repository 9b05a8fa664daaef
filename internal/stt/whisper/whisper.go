// Package whisper implements the Transcriber interface using the OpenAI
// audio transcription API.
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/talmor-labs/callflow/internal/config"
)

// Transcriber calls the OpenAI transcription endpoint.
type Transcriber struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// New creates a Whisper transcriber from config.
func New(cfg config.STTConfig) *Transcriber {
	model := cfg.TranscriptionModel
	if model == "" {
		model = openai.Whisper1
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Transcriber{
		client:  openai.NewClient(cfg.OpenAIAPIKey),
		model:   model,
		timeout: timeout,
	}
}

// Name returns the backend identifier.
func (t *Transcriber) Name() string { return "whisper" }

// Transcribe uploads the WAV utterance with a language hint and returns
// the transcription text.
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(wav),
		Language: language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}

	slog.Debug("whisper transcription complete",
		"bytes", len(wav),
		"text_length", len(resp.Text),
		"duration", time.Since(start),
	)
	return resp.Text, nil
}
