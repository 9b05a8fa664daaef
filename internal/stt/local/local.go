// Package local implements the Transcriber interface against a locally
// hosted speech-to-text server exposing the OpenAI-compatible
// /v1/audio/transcriptions endpoint (whisper.cpp server, faster-whisper).
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/talmor-labs/callflow/internal/config"
)

// Transcriber calls a self-hosted transcription server.
type Transcriber struct {
	endpoint string
	model    string
	client   *http.Client
	timeout  time.Duration
}

// New creates a local transcriber from config.
func New(cfg config.STTConfig) *Transcriber {
	endpoint := strings.TrimRight(cfg.LocalEndpoint, "/")
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Transcriber{
		endpoint: endpoint,
		model:    cfg.TranscriptionModel,
		client:   &http.Client{},
		timeout:  timeout,
	}
}

// Name returns the backend identifier.
func (t *Transcriber) Name() string { return "local" }

// Transcribe sends the WAV utterance to the local server.
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(wav)); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	if t.model != "" {
		_ = writer.WriteField("model", t.model)
	}
	if language != "" {
		_ = writer.WriteField("language", language)
	}
	writer.Close()

	url := t.endpoint + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("local stt request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("local stt failed (status %d): %s", resp.StatusCode, respBody)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}
