package config

import (
	"os"
	"path/filepath"
	"testing"
)

// setRequiredKeys provides the vendor credentials the default backends
// (whisper STT, openai LLM, elevenlabs TTS) need to pass validation.
func setRequiredKeys(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ELEVENLABS_API_KEY", "el-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredKeys(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("server port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Audio.SilenceTimeoutMs != 400 {
		t.Errorf("silence timeout = %d, want 400", cfg.Audio.SilenceTimeoutMs)
	}
	if cfg.Audio.MinChunks != 10 || cfg.Audio.MaxChunks != 60 {
		t.Errorf("chunk bounds = %d/%d, want 10/60", cfg.Audio.MinChunks, cfg.Audio.MaxChunks)
	}
	if cfg.Audio.VADThreshold != 50.0 {
		t.Errorf("vad threshold = %v, want 50", cfg.Audio.VADThreshold)
	}
	if cfg.Audio.ChunkSize != 160 || cfg.Audio.SendPacingMs != 20 {
		t.Errorf("pacing = %d bytes / %d ms, want 160/20", cfg.Audio.ChunkSize, cfg.Audio.SendPacingMs)
	}
	if cfg.STT.Backend != "whisper" || cfg.STT.Language != "he" {
		t.Errorf("stt = %s/%s, want whisper/he", cfg.STT.Backend, cfg.STT.Language)
	}
	if cfg.LLM.Backend != "openai" || cfg.LLM.Model != "gpt-4o" {
		t.Errorf("llm = %s/%s, want openai/gpt-4o", cfg.LLM.Backend, cfg.LLM.Model)
	}
	if cfg.TTS.Backend != "elevenlabs" || cfg.TTS.ModelID != "eleven_multilingual_v2" {
		t.Errorf("tts = %s/%s", cfg.TTS.Backend, cfg.TTS.ModelID)
	}
	if cfg.Agent.Name == "" || cfg.Agent.Greeting == "" || cfg.Agent.Apology == "" {
		t.Error("agent persona defaults missing")
	}
}

func TestLoadResolvesSecretRefs(t *testing.T) {
	setRequiredKeys(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.STT.OpenAIAPIKey != "sk-test" {
		t.Errorf("stt openai key = %q, want sk-test", cfg.STT.OpenAIAPIKey)
	}
	if cfg.LLM.OpenAIAPIKey != "sk-test" {
		t.Errorf("llm openai key = %q, want sk-test", cfg.LLM.OpenAIAPIKey)
	}
	if cfg.STT.ElevenLabsAPIKey != "el-test" || cfg.TTS.APIKey != "el-test" {
		t.Errorf("elevenlabs keys = %q/%q, want el-test", cfg.STT.ElevenLabsAPIKey, cfg.TTS.APIKey)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredKeys(t)
	t.Setenv("CALLFLOW_SERVER_PORT", "8080")
	t.Setenv("CALLFLOW_AUDIO_SILENCE_TIMEOUT_MS", "600")
	t.Setenv("CALLFLOW_TTS_BACKEND", "piper")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Audio.SilenceTimeoutMs != 600 {
		t.Errorf("silence timeout = %d, want 600", cfg.Audio.SilenceTimeoutMs)
	}
	if cfg.TTS.Backend != "piper" {
		t.Errorf("tts backend = %q, want piper", cfg.TTS.Backend)
	}
}

func TestLoadConfigFile(t *testing.T) {
	setRequiredKeys(t)

	path := filepath.Join(t.TempDir(), "callflow.yaml")
	body := []byte(`
server:
  port: 9090
stt:
  backend: local
agent:
  name: רוני
lexicon:
  refusal:
    - "לא תודה"
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.STT.Backend != "local" {
		t.Errorf("stt backend = %q, want local", cfg.STT.Backend)
	}
	if cfg.Agent.Name != "רוני" {
		t.Errorf("agent name = %q, want רוני", cfg.Agent.Name)
	}
	if len(cfg.Lexicon.Refusal) != 1 || cfg.Lexicon.Refusal[0] != "לא תודה" {
		t.Errorf("lexicon refusal = %v", cfg.Lexicon.Refusal)
	}
	// File values override only what they name.
	if cfg.Audio.MinChunks != 10 {
		t.Errorf("min chunks = %d, want default 10", cfg.Audio.MinChunks)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			STT:   STTConfig{Backend: "local"},
			LLM:   LLMConfig{Backend: "local"},
			TTS:   TTSConfig{Backend: "piper"},
			Audio: AudioConfig{MinChunks: 10, MaxChunks: 60},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("baseline should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown stt backend", func(c *Config) { c.STT.Backend = "dictaphone" }},
		{"whisper without key", func(c *Config) { c.STT.Backend = "whisper" }},
		{"elevenlabs stt without key", func(c *Config) { c.STT.Backend = "elevenlabs" }},
		{"openai llm without key", func(c *Config) { c.LLM.Backend = "openai" }},
		{"unknown llm backend", func(c *Config) { c.LLM.Backend = "claude" }},
		{"elevenlabs tts without key", func(c *Config) { c.TTS.Backend = "elevenlabs" }},
		{"unknown tts backend", func(c *Config) { c.TTS.Backend = "espeak" }},
		{"zero min chunks", func(c *Config) { c.Audio.MinChunks = 0 }},
		{"max not above min", func(c *Config) { c.Audio.MaxChunks = 10 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestResolveEnvRef(t *testing.T) {
	t.Setenv("CALLFLOW_TEST_SECRET", "hunter2")

	if got := resolveEnvRef("${CALLFLOW_TEST_SECRET}"); got != "hunter2" {
		t.Errorf("set ref = %q, want hunter2", got)
	}
	if got := resolveEnvRef("${CALLFLOW_TEST_UNSET}"); got != "" {
		t.Errorf("unset ref = %q, want empty", got)
	}
	if got := resolveEnvRef("plain-value"); got != "plain-value" {
		t.Errorf("literal = %q, want pass-through", got)
	}
}
