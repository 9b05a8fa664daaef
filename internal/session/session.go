package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/talmor-labs/callflow/internal/analytics"
	"github.com/talmor-labs/callflow/internal/audio"
	"github.com/talmor-labs/callflow/internal/config"
	"github.com/talmor-labs/callflow/internal/flow"
	"github.com/talmor-labs/callflow/internal/llm"
	"github.com/talmor-labs/callflow/internal/memory"
	"github.com/talmor-labs/callflow/internal/metrics"
	"github.com/talmor-labs/callflow/internal/store"
	"github.com/talmor-labs/callflow/internal/stt"
	"github.com/talmor-labs/callflow/internal/transport"
	"github.com/talmor-labs/callflow/internal/tts"
)

// Collaborators bundles the external services a session talks to. The
// store may be nil (persistence is optional).
type Collaborators struct {
	STT        stt.Transcriber
	LLM        llm.Responder
	TTS        tts.Synthesizer
	Transcoder audio.Transcoder
	Webhook    *analytics.Webhook
	Store      store.Store
}

// Session is the per-call orchestrator. It owns the conversation memory,
// the flow engine, the ingest gate, and the turn processor, and ties
// their lifecycle to the media stream.
type Session struct {
	callID    string
	streamSid string
	startedAt time.Time

	gate      *Gate
	processor *TurnProcessor
	registry  *Registry

	webhook *analytics.Webhook
	store   store.Store

	cancel    context.CancelFunc
	closeOnce sync.Once
	finalOnce sync.Once
}

// New creates and registers a session for a started media stream, and
// kicks off the greeting.
func New(cfg *config.Config, start *transport.StartPayload, sender transport.Sender, collab Collaborators, registry *Registry) *Session {
	callID := start.CallSid
	if callID == "" {
		callID = uuid.NewString()
	}

	mem := memory.New(callID, memory.NewKeywordExtractor(extractorConfig(cfg.Lexicon)))
	engine := flow.NewEngine(mem, flowLexicon(cfg.Lexicon))

	ctx, cancel := context.WithCancel(context.Background())
	speaking := &atomic.Bool{}

	processor := &TurnProcessor{
		cfg: ProcessorConfig{
			Language:   cfg.STT.Language,
			Apology:    cfg.Agent.Apology,
			ChunkSize:  cfg.Audio.ChunkSize,
			SendPacing: time.Duration(cfg.Audio.SendPacingMs) * time.Millisecond,
		},
		callID:     callID,
		streamSid:  start.StreamSid,
		stt:        collab.STT,
		llm:        collab.LLM,
		tts:        collab.TTS,
		transcoder: collab.Transcoder,
		sender:     sender,
		webhook:    collab.Webhook,
		mem:        mem,
		engine:     engine,
		speaking:   speaking,
		ctx:        ctx,
	}

	s := &Session{
		callID:    callID,
		streamSid: start.StreamSid,
		startedAt: time.Now(),
		processor: processor,
		registry:  registry,
		webhook:   collab.Webhook,
		store:     collab.Store,
		cancel:    cancel,
	}
	processor.onTerminal = s.finalize

	s.gate = NewGate(GateConfig{
		SilenceTimeout: time.Duration(cfg.Audio.SilenceTimeoutMs) * time.Millisecond,
		MinChunks:      cfg.Audio.MinChunks,
		MaxChunks:      cfg.Audio.MaxChunks,
		VADThreshold:   cfg.Audio.VADThreshold,
	}, processor, speaking)

	registry.Add(s)
	metrics.CallsStarted.Inc()
	metrics.ActiveCalls.Inc()

	slog.Info("session started", "call_id", callID, "stream_sid", start.StreamSid)

	processor.Greet(cfg.Agent.Greeting)
	return s
}

// HandleMedia feeds one inbound frame to the ingest gate.
func (s *Session) HandleMedia(payload string) {
	s.gate.Ingest(payload)
}

// HandleMark is informational; playback completion is tracked by pacing,
// not marks.
func (s *Session) HandleMark(name string) {
	slog.Debug("mark acknowledged", "call_id", s.callID, "mark", name)
}

// finalize stamps the outcome and ships the summary. It runs at most
// once per call, whether the conversation ended naturally or the caller
// hung up mid-flow.
func (s *Session) finalize() {
	s.finalOnce.Do(func() {
		var summary memory.Summary
		s.processor.WithMemory(func(m *memory.Memory) {
			m.SetOutcome(memory.OutcomeIncomplete)
			summary = m.Summary()
		})

		metrics.CallsCompleted.WithLabelValues(string(summary.Outcome)).Inc()
		slog.Info("call finalized",
			"call_id", s.callID,
			"outcome", summary.Outcome,
			"turns", summary.TotalTurns,
			"duration_secs", summary.Duration)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := s.webhook.SendSummary(ctx, summary); err != nil {
			slog.Warn("summary delivery failed", "call_id", s.callID, "error", err)
		}
		if s.store != nil {
			if err := s.store.SaveCall(ctx, summary); err != nil {
				slog.Warn("call record persist failed", "call_id", s.callID, "error", err)
			}
		}
	})
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.gate.Stop()
		s.finalize()
		s.cancel()
		s.registry.Remove(s.callID)
		metrics.ActiveCalls.Dec()
		slog.Info("session closed", "call_id", s.callID)
	})
}

// extractorConfig maps the configured keyword overrides onto the
// extractor tables; empty lists fall back to the Hebrew defaults inside
// NewKeywordExtractor.
func extractorConfig(lex config.LexiconConfig) memory.ExtractorConfig {
	return memory.ExtractorConfig{
		NameStoplist:   lex.NameStoplist,
		NeedWords:      lex.NeedWords,
		ObjectionWords: lex.ObjectionWords,
		InterestWords:  lex.InterestWords,
		PositiveWords:  lex.PositiveWords,
		NegativeWords:  lex.NegativeWords,
	}
}

// flowLexicon maps the configured trigger phrases onto the flow engine;
// a zero lexicon keeps the defaults inside NewEngine.
func flowLexicon(lex config.LexiconConfig) flow.Lexicon {
	return flow.Lexicon{
		Greetings: lex.Greetings,
		Agreement: lex.Agreement,
		NeedsTime: lex.NeedsTime,
		Refusal:   lex.Refusal,
		Negation:  lex.Negation,
	}
}

// Stats returns a point-in-time view of the call for the /stats endpoint.
func (s *Session) Stats() CallStats {
	var st CallStats
	s.processor.WithMemory(func(m *memory.Memory) {
		st = CallStats{
			CallID:    s.callID,
			StreamSid: s.streamSid,
			StartedAt: s.startedAt,
			Stage:     m.CurrentStage,
			Turns:     m.TurnCount,
			Customer:  m.Customer.Name,
			Sentiment: string(m.Sentiment),
		}
	})
	return st
}
