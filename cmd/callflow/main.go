// Callflow is a real-time voice-call orchestration daemon. It answers
// Twilio Media Streams calls, runs each caller's speech through a
// speech-to-text, language-model, and text-to-speech pipeline, and steers
// the conversation through a staged sales dialogue.
//
// Usage:
//
//	callflow [flags]
//	callflow --config /path/to/callflow.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/talmor-labs/callflow/internal/analytics"
	"github.com/talmor-labs/callflow/internal/audio"
	"github.com/talmor-labs/callflow/internal/config"
	"github.com/talmor-labs/callflow/internal/llm"
	locallm "github.com/talmor-labs/callflow/internal/llm/local"
	openaillm "github.com/talmor-labs/callflow/internal/llm/openai"
	"github.com/talmor-labs/callflow/internal/session"
	"github.com/talmor-labs/callflow/internal/store"
	"github.com/talmor-labs/callflow/internal/stt"
	elevenstt "github.com/talmor-labs/callflow/internal/stt/elevenlabs"
	localstt "github.com/talmor-labs/callflow/internal/stt/local"
	whisperstt "github.com/talmor-labs/callflow/internal/stt/whisper"
	"github.com/talmor-labs/callflow/internal/transport"
	"github.com/talmor-labs/callflow/internal/tts"
	eleventts "github.com/talmor-labs/callflow/internal/tts/elevenlabs"
	pipertts "github.com/talmor-labs/callflow/internal/tts/piper"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/callflow.local.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("callflow %s\n", version)
		os.Exit(0)
	}

	// Secrets commonly live in a local .env during development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	config.SetupLogging(cfg.Logging)
	slog.Info("callflow starting", "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Speech-to-text backend, with optional failover.
	transcriber, err := buildTranscriber(cfg)
	if err != nil {
		slog.Error("stt setup failed", "error", err)
		os.Exit(1)
	}
	slog.Info("using stt backend", "backend", transcriber.Name(), "language", cfg.STT.Language)

	// Reply generation backend.
	var responder llm.Responder
	switch cfg.LLM.Backend {
	case "openai":
		responder = openaillm.New(cfg.LLM, cfg.Agent.Name)
		slog.Info("using openai responder", "model", cfg.LLM.Model, "streaming", cfg.LLM.Streaming)
	case "local":
		responder = locallm.New(cfg.LLM, cfg.Agent.Name)
		slog.Info("using local responder", "endpoint", cfg.LLM.LocalEndpoint, "model", cfg.LLM.LocalModel)
	default:
		slog.Error("unknown llm backend", "backend", cfg.LLM.Backend)
		os.Exit(1)
	}

	// Text-to-speech backend.
	var synthesizer tts.Synthesizer
	switch cfg.TTS.Backend {
	case "elevenlabs":
		synthesizer = eleventts.New(cfg.TTS)
		slog.Info("using elevenlabs tts", "voice", cfg.TTS.VoiceID, "model", cfg.TTS.ModelID)
	case "piper":
		synthesizer = pipertts.New(cfg.TTS)
		slog.Info("using piper tts", "endpoint", cfg.TTS.PiperEndpoint, "voice", cfg.TTS.PiperVoice)
	default:
		slog.Error("unknown tts backend", "backend", cfg.TTS.Backend)
		os.Exit(1)
	}
	defer synthesizer.Close()

	webhook := analytics.NewWebhook(cfg.Analytics.WebhookURL,
		time.Duration(cfg.Analytics.TimeoutSeconds)*time.Second)
	if webhook.Enabled() {
		slog.Info("analytics webhook enabled")
	} else {
		slog.Info("analytics webhook disabled (no URL configured)")
	}

	// Optional Postgres persistence.
	var callStore store.Store
	if cfg.Store.DatabaseURL != "" {
		pg, err := store.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			slog.Error("store setup failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		callStore = pg
		slog.Info("call persistence enabled")
	}

	registry := session.NewRegistry()
	collab := session.Collaborators{
		STT:        transcriber,
		LLM:        responder,
		TTS:        synthesizer,
		Transcoder: audio.NewFFmpegTranscoder(cfg.Audio.FFmpegPath),
		Webhook:    webhook,
		Store:      callStore,
	}

	factory := func(_ context.Context, start *transport.StartPayload, sender transport.Sender) transport.CallSession {
		return session.New(cfg, start, sender, collab, registry)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /voice", transport.VoiceHandler(cfg.Server.PublicHost))
	mux.HandleFunc("POST /voice", transport.VoiceHandler(cfg.Server.PublicHost))
	mux.HandleFunc("GET /media-stream", transport.MediaStreamHandler(factory))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"activeCalls": registry.Len(),
			"calls":       registry.Snapshot(),
		})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("callflow ready", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")

	// Stop accepting new calls, then flush summaries for live ones.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	registry.CloseAll()

	slog.Info("callflow stopped")
}

// buildTranscriber assembles the configured STT backend, wrapped in a
// failover layer when a fallback backend is configured.
func buildTranscriber(cfg *config.Config) (stt.Transcriber, error) {
	build := func(backend string) (stt.Transcriber, error) {
		switch backend {
		case "whisper":
			return whisperstt.New(cfg.STT), nil
		case "elevenlabs":
			return elevenstt.New(cfg.STT), nil
		case "local":
			return localstt.New(cfg.STT), nil
		case "":
			return nil, nil
		default:
			return nil, fmt.Errorf("unknown stt backend %q", backend)
		}
	}

	primary, err := build(cfg.STT.Backend)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, fmt.Errorf("no stt backend configured")
	}
	secondary, err := build(cfg.STT.Fallback)
	if err != nil {
		return nil, err
	}
	return stt.NewFailover(primary, secondary, cfg.STT.FailoverThreshold), nil
}
