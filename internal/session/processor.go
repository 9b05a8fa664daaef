package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talmor-labs/callflow/internal/analytics"
	"github.com/talmor-labs/callflow/internal/audio"
	"github.com/talmor-labs/callflow/internal/flow"
	"github.com/talmor-labs/callflow/internal/llm"
	"github.com/talmor-labs/callflow/internal/memory"
	"github.com/talmor-labs/callflow/internal/metrics"
	"github.com/talmor-labs/callflow/internal/stt"
	"github.com/talmor-labs/callflow/internal/transport"
	"github.com/talmor-labs/callflow/internal/tts"
)

// ProcessorConfig holds the turn-processing tunables.
type ProcessorConfig struct {
	Language   string
	Apology    string
	ChunkSize  int
	SendPacing time.Duration
}

// TurnProcessor runs one buffered utterance through the full pipeline:
// decode, transcribe, remember, maybe transition, generate, synthesize,
// transcode, and stream back. Turns are single-flight per call; Submit
// rejects a second utterance while one is in flight.
type TurnProcessor struct {
	cfg       ProcessorConfig
	callID    string
	streamSid string

	stt        stt.Transcriber
	llm        llm.Responder
	tts        tts.Synthesizer
	transcoder audio.Transcoder
	sender     transport.Sender
	webhook    *analytics.Webhook

	memMu  sync.Mutex
	mem    *memory.Memory
	engine *flow.Engine

	speaking *atomic.Bool
	busy     atomic.Bool

	// onTerminal fires after a turn lands on a terminal stage. The
	// session wraps it in a sync.Once so a hangup and a natural ending
	// cannot both emit a summary.
	onTerminal func()

	ctx context.Context
}

// Submit starts processing the utterance on its own goroutine. It returns
// false, without taking the frames, when a turn is already running.
func (p *TurnProcessor) Submit(frames []string) bool {
	if !p.busy.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer p.busy.Store(false)
		p.process(frames)
	}()
	return true
}

// WithMemory runs f while holding the memory lock. Used by the session
// for snapshots and terminal finalization.
func (p *TurnProcessor) WithMemory(f func(*memory.Memory)) {
	p.memMu.Lock()
	defer p.memMu.Unlock()
	f(p.mem)
}

func (p *TurnProcessor) process(frames []string) {
	start := time.Now()
	log := slog.With("call_id", p.callID)

	p.memMu.Lock()
	done := p.engine.IsFinal()
	p.memMu.Unlock()
	if done {
		log.Debug("call already terminal, ignoring utterance")
		return
	}

	joined, err := audio.JoinFrames(frames)
	if err != nil {
		log.Warn("dropping undecodable utterance", "frames", len(frames), "error", err)
		return
	}
	wav := audio.MulawWAV(joined)

	text, err := p.stt.Transcribe(p.ctx, wav, p.cfg.Language)
	if err != nil {
		log.Error("transcription failed", "backend", p.stt.Name(), "error", err)
		p.apologize()
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		// Ambient noise. Not a turn; nothing in memory moves.
		log.Debug("empty transcription, skipping turn", "frames", len(frames))
		return
	}

	metrics.Turns.Inc()

	p.memMu.Lock()
	p.mem.AddMessage(memory.RoleCustomer, text)
	from := p.mem.CurrentStage
	transitioned := p.engine.ProcessTransition(text)
	to := p.mem.CurrentStage
	pc := p.mem.PromptContext()
	turn := p.mem.TurnCount
	p.memMu.Unlock()

	if transitioned {
		log.Info("stage transition", "from", from, "to", to)
		metrics.StageTransitions.WithLabelValues(from, to).Inc()
	}
	log.Info("customer turn", "turn", turn, "stage", to, "text", text)

	reply, err := p.llm.Reply(p.ctx, text, pc)
	if err != nil {
		log.Error("reply generation failed", "backend", p.llm.Name(), "error", err)
		p.apologize()
		return
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		// The utterance stays recorded: the customer did speak.
		log.Warn("empty reply, skipping synthesis")
		return
	}

	p.memMu.Lock()
	p.mem.AddMessage(memory.RoleAgent, reply)
	p.memMu.Unlock()

	if err := p.say(reply); err != nil {
		log.Error("reply playback failed", "error", err)
		p.apologize()
		return
	}

	elapsed := time.Since(start)
	metrics.TurnDuration.Observe(elapsed.Seconds())
	log.Info("turn complete", "turn", turn, "stage", to, "elapsed", elapsed)

	go p.webhook.LogEvent(context.Background(), "turn", map[string]any{
		"callId": p.callID,
		"turn":   turn,
		"stage":  to,
	})

	p.memMu.Lock()
	final := p.engine.IsFinal()
	p.memMu.Unlock()
	if final {
		log.Info("conversation reached terminal stage", "stage", to)
		p.onTerminal()
	}
}

// say synthesizes text, transcodes it to 8kHz mulaw, and streams it to
// the caller at the wire cadence. The speaking flag mutes the ingest
// gate for the duration so we do not transcribe our own audio.
func (p *TurnProcessor) say(text string) error {
	res, err := p.tts.Synthesize(p.ctx, text)
	if err != nil {
		return err
	}
	mulaw, err := p.transcoder.Transcode(p.ctx, res.Audio)
	if err != nil {
		return err
	}

	p.speaking.Store(true)
	defer p.speaking.Store(false)

	for _, chunk := range audio.Chunk(mulaw, p.cfg.ChunkSize) {
		if err := p.sender.SendMedia(p.streamSid, chunk); err != nil {
			// Delivery is best-effort; bookkeeping already happened.
			slog.Warn("media send failed", "call_id", p.callID, "error", err)
			return nil
		}
		select {
		case <-p.ctx.Done():
			return nil
		case <-time.After(p.cfg.SendPacing):
		}
	}

	// Twilio echoes the mark back once everything queued before it has
	// actually played; the session logs the acknowledgement.
	if err := p.sender.SendMark(p.streamSid, "reply-complete"); err != nil {
		slog.Debug("mark send failed", "call_id", p.callID, "error", err)
	}
	return nil
}

// apologize plays the fixed apology line. Best-effort: a failure here is
// only logged, the caller simply hears silence.
func (p *TurnProcessor) apologize() {
	if p.cfg.Apology == "" {
		return
	}
	if err := p.say(p.cfg.Apology); err != nil {
		slog.Warn("apology playback failed", "call_id", p.callID, "error", err)
	}
}

// Greet speaks the opening line and records it as the agent's first
// message. Runs under the same single-flight guard as a normal turn.
func (p *TurnProcessor) Greet(text string) {
	if text == "" {
		return
	}
	if !p.busy.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer p.busy.Store(false)

		p.memMu.Lock()
		p.mem.AddMessage(memory.RoleAgent, text)
		p.memMu.Unlock()

		if err := p.say(text); err != nil {
			slog.Error("greeting playback failed", "call_id", p.callID, "error", err)
		}
	}()
}
