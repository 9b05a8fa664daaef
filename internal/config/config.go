// Package config handles loading and validating the callflow configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for the callflow daemon.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Audio     AudioConfig     `mapstructure:"audio"`
	STT       STTConfig       `mapstructure:"stt"`
	LLM       LLMConfig       `mapstructure:"llm"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Store     StoreConfig     `mapstructure:"store"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Lexicon   LexiconConfig   `mapstructure:"lexicon"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds the public HTTP/WebSocket server settings.
type ServerConfig struct {
	Port int `mapstructure:"port"`

	// PublicHost is the externally reachable hostname used when building
	// the TwiML stream URL. When empty, the request Host header is used.
	PublicHost string `mapstructure:"public_host"`
}

// AudioConfig holds the voice-activity and buffering tunables.
// These are operational parameters, not algorithmic invariants.
type AudioConfig struct {
	// SilenceTimeoutMs is how long after the last voiced frame a user
	// turn is considered finished.
	SilenceTimeoutMs int `mapstructure:"silence_timeout_ms"`

	// MinChunks is the minimum number of buffered frames worth
	// transcribing; shorter buffers are discarded as noise.
	MinChunks int `mapstructure:"min_chunks"`

	// MaxChunks forces a flush when the buffer reaches this many frames,
	// even if speech never pauses.
	MaxChunks int `mapstructure:"max_chunks"`

	// VADThreshold is the RMS amplitude above which a frame counts as speech.
	VADThreshold float64 `mapstructure:"vad_threshold"`

	// ChunkSize is the outbound media frame payload size in bytes.
	ChunkSize int `mapstructure:"chunk_size"`

	// SendPacingMs is the delay between outbound frames.
	SendPacingMs int `mapstructure:"send_pacing_ms"`

	// FFmpegPath locates the external transcoder binary.
	FFmpegPath string `mapstructure:"ffmpeg_path"`
}

// STTConfig selects and configures the speech-to-text backend.
type STTConfig struct {
	Backend  string `mapstructure:"backend"`  // "whisper", "elevenlabs" or "local"
	Language string `mapstructure:"language"` // ISO-639-1 hint (default "he")

	// Fallback optionally names a secondary backend that takes over after
	// FailoverThreshold consecutive primary failures. Empty disables failover.
	Fallback          string `mapstructure:"fallback"`
	FailoverThreshold int    `mapstructure:"failover_threshold"`

	OpenAIAPIKey       string `mapstructure:"openai_api_key"`
	ElevenLabsAPIKey   string `mapstructure:"elevenlabs_api_key"`
	LocalEndpoint      string `mapstructure:"local_endpoint"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
	TranscriptionModel string `mapstructure:"transcription_model"`
}

// LLMConfig selects and configures the reply-generation backend.
type LLMConfig struct {
	Backend        string  `mapstructure:"backend"` // "openai" or "local"
	OpenAIAPIKey   string  `mapstructure:"openai_api_key"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Streaming      bool    `mapstructure:"streaming"`
	LocalEndpoint  string  `mapstructure:"local_endpoint"` // OpenAI-compatible base URL (Ollama, vLLM)
	LocalModel     string  `mapstructure:"local_model"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Backend        string `mapstructure:"backend"` // "elevenlabs" or "piper"
	APIKey         string `mapstructure:"api_key"`
	VoiceID        string `mapstructure:"voice_id"`
	ModelID        string `mapstructure:"model_id"`
	PiperEndpoint  string `mapstructure:"piper_endpoint"` // Wyoming TCP endpoint (host:port)
	PiperVoice     string `mapstructure:"piper_voice"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// AnalyticsConfig holds the call-summary webhook settings.
type AnalyticsConfig struct {
	// WebhookURL receives per-turn events and terminal call summaries
	// (n8n-compatible). Empty disables analytics entirely.
	WebhookURL     string `mapstructure:"webhook_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StoreConfig holds the optional call-record persistence settings.
type StoreConfig struct {
	// DatabaseURL enables Postgres persistence of terminal call records.
	DatabaseURL string `mapstructure:"database_url"`
}

// AgentConfig holds the conversational persona settings.
type AgentConfig struct {
	Name     string `mapstructure:"name"`
	Greeting string `mapstructure:"greeting"`
	Apology  string `mapstructure:"apology"`
}

// LexiconConfig overrides the built-in Hebrew keyword tables. Any empty
// list keeps its default. Matching correctness is a localization concern,
// so every trigger list is data, not code.
type LexiconConfig struct {
	Greetings      []string `mapstructure:"greetings"`
	Agreement      []string `mapstructure:"agreement"`
	NeedsTime      []string `mapstructure:"needs_time"`
	Refusal        []string `mapstructure:"refusal"`
	Negation       string   `mapstructure:"negation"`
	NameStoplist   []string `mapstructure:"name_stoplist"`
	NeedWords      []string `mapstructure:"need_words"`
	ObjectionWords []string `mapstructure:"objection_words"`
	InterestWords  []string `mapstructure:"interest_words"`
	PositiveWords  []string `mapstructure:"positive_words"`
	NegativeWords  []string `mapstructure:"negative_words"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./callflow.yaml, ./configs/callflow.yaml,
// /etc/callflow/callflow.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("audio.silence_timeout_ms", 400)
	v.SetDefault("audio.min_chunks", 10)
	v.SetDefault("audio.max_chunks", 60)
	v.SetDefault("audio.vad_threshold", 50.0)
	v.SetDefault("audio.chunk_size", 160)
	v.SetDefault("audio.send_pacing_ms", 20)
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("stt.backend", "whisper")
	v.SetDefault("stt.language", "he")
	v.SetDefault("stt.fallback", "")
	v.SetDefault("stt.failover_threshold", 3)
	v.SetDefault("stt.local_endpoint", "http://localhost:8000")
	v.SetDefault("stt.timeout_seconds", 30)
	v.SetDefault("stt.transcription_model", "whisper-1")
	v.SetDefault("llm.backend", "openai")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 150)
	v.SetDefault("llm.streaming", true)
	v.SetDefault("llm.local_endpoint", "http://localhost:11434")
	v.SetDefault("llm.local_model", "llama3")
	v.SetDefault("llm.timeout_seconds", 30)
	v.SetDefault("tts.backend", "elevenlabs")
	v.SetDefault("tts.voice_id", "exsUS4vynmxd379XN4yO")
	v.SetDefault("tts.model_id", "eleven_multilingual_v2")
	v.SetDefault("tts.piper_endpoint", "localhost:10200")
	v.SetDefault("tts.timeout_seconds", 30)
	v.SetDefault("analytics.timeout_seconds", 10)
	v.SetDefault("agent.name", "דני")
	v.SetDefault("agent.greeting", "היי! נעים מאוד. איך קוראים לך?")
	v.SetDefault("agent.apology", "סליחה, לא שמעתי טוב. אפשר לחזור על זה?")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("callflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/callflow")
	}

	// Environment variables: CALLFLOW_SERVER_PORT, CALLFLOW_STT_BACKEND, etc.
	v.SetEnvPrefix("CALLFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional — env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}")
	cfg.STT.OpenAIAPIKey = resolveEnvRef(firstNonEmpty(cfg.STT.OpenAIAPIKey, "${OPENAI_API_KEY}"))
	cfg.STT.ElevenLabsAPIKey = resolveEnvRef(firstNonEmpty(cfg.STT.ElevenLabsAPIKey, "${ELEVENLABS_API_KEY}"))
	cfg.LLM.OpenAIAPIKey = resolveEnvRef(firstNonEmpty(cfg.LLM.OpenAIAPIKey, "${OPENAI_API_KEY}"))
	cfg.TTS.APIKey = resolveEnvRef(firstNonEmpty(cfg.TTS.APIKey, "${ELEVENLABS_API_KEY}"))
	cfg.Analytics.WebhookURL = resolveEnvRef(firstNonEmpty(cfg.Analytics.WebhookURL, "${N8N_WEBHOOK_URL}"))
	cfg.Store.DatabaseURL = resolveEnvRef(firstNonEmpty(cfg.Store.DatabaseURL, "${DATABASE_URL}"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces the fatal-at-boot class: missing vendor credentials for
// the selected backends refuse startup. Everything else degrades at runtime.
func (c *Config) Validate() error {
	switch c.STT.Backend {
	case "whisper":
		if c.STT.OpenAIAPIKey == "" {
			return fmt.Errorf("stt backend %q requires an OpenAI API key", c.STT.Backend)
		}
	case "elevenlabs":
		if c.STT.ElevenLabsAPIKey == "" {
			return fmt.Errorf("stt backend %q requires an ElevenLabs API key", c.STT.Backend)
		}
	case "local":
		// Endpoint has a default; nothing fatal.
	default:
		return fmt.Errorf("unknown stt backend %q", c.STT.Backend)
	}

	switch c.LLM.Backend {
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("llm backend %q requires an OpenAI API key", c.LLM.Backend)
		}
	case "local":
	default:
		return fmt.Errorf("unknown llm backend %q", c.LLM.Backend)
	}

	switch c.TTS.Backend {
	case "elevenlabs":
		if c.TTS.APIKey == "" {
			return fmt.Errorf("tts backend %q requires an ElevenLabs API key", c.TTS.Backend)
		}
	case "piper":
	default:
		return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
	}

	if c.Audio.MinChunks <= 0 || c.Audio.MaxChunks <= c.Audio.MinChunks {
		return fmt.Errorf("audio buffer bounds invalid: min=%d max=%d", c.Audio.MinChunks, c.Audio.MaxChunks)
	}

	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
		return ""
	}
	return val
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
