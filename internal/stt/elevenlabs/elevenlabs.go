// Package elevenlabs implements the Transcriber interface using the
// ElevenLabs speech-to-text API, which handles Hebrew better than Whisper
// on narrowband telephony audio.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/talmor-labs/callflow/internal/config"
)

const apiURL = "https://api.elevenlabs.io/v1/speech-to-text"

// Transcriber calls the ElevenLabs STT endpoint.
type Transcriber struct {
	apiKey  string
	client  *http.Client
	timeout time.Duration
}

// New creates an ElevenLabs transcriber from config.
func New(cfg config.STTConfig) *Transcriber {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Transcriber{
		apiKey:  cfg.ElevenLabsAPIKey,
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Name returns the backend identifier.
func (t *Transcriber) Name() string { return "elevenlabs" }

// Transcribe uploads the WAV utterance as multipart form data.
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(wav)); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	if language != "" {
		_ = writer.WriteField("language", language)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("xi-api-key", t.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs stt request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("elevenlabs stt failed (status %d): %s", resp.StatusCode, respBody)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}

	slog.Debug("elevenlabs transcription complete", "bytes", len(wav), "text_length", len(result.Text))
	return result.Text, nil
}
