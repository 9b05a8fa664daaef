// Package elevenlabs implements the TTS Synthesizer using the ElevenLabs
// text-to-speech API. The multilingual v2 model gives the most natural
// Hebrew delivery; the voice settings lean expressive because flat
// delivery sounds robotic over a narrowband phone line.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/talmor-labs/callflow/internal/config"
	"github.com/talmor-labs/callflow/internal/tts"
)

const baseURL = "https://api.elevenlabs.io/v1"

// Synthesizer calls the ElevenLabs TTS endpoint.
type Synthesizer struct {
	apiKey  string
	voiceID string
	modelID string
	client  *http.Client
}

// New creates an ElevenLabs synthesizer from config.
func New(cfg config.TTSConfig) *Synthesizer {
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}
	return &Synthesizer{
		apiKey:  cfg.APIKey,
		voiceID: cfg.VoiceID,
		modelID: modelID,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "elevenlabs" }

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Synthesize generates MP3 audio for the given Hebrew text.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (*tts.Result, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text for synthesis")
	}

	reqBody := ttsRequest{
		Text:    text,
		ModelID: s.modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.35,
			SimilarityBoost: 0.85,
			Style:           0.65,
			UseSpeakerBoost: true,
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshalling tts request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", baseURL, s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating tts request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("tts failed (status %d): %s", resp.StatusCode, respBody)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading tts audio: %w", err)
	}

	slog.Debug("elevenlabs synthesis complete", "text_length", len(text), "audio_bytes", len(audio))
	return &tts.Result{Audio: audio, ContentType: "audio/mpeg"}, nil
}

// Close is a no-op — requests are stateless.
func (s *Synthesizer) Close() error { return nil }
