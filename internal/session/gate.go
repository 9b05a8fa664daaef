// Package session owns the per-call pipeline: the ingest gate that turns
// a raw frame stream into utterances, the turn processor that runs each
// utterance through STT, the flow engine, the LLM and TTS, and the
// registry of live calls. Every call gets its own instances of all of
// these; nothing here is shared between calls.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/talmor-labs/callflow/internal/audio"
)

// TurnRunner accepts a flushed utterance. Submit returns false when a
// turn is already in flight; the gate then keeps the frames buffered so
// they feed the next turn instead of being dropped.
type TurnRunner interface {
	Submit(frames []string) bool
}

// GateConfig holds the voice-activity tunables. These are operating
// parameters, not invariants; they arrive from the config layer.
type GateConfig struct {
	SilenceTimeout time.Duration
	MinChunks      int
	MaxChunks      int
	VADThreshold   float64
}

// Gate buffers inbound audio frames and decides when a complete
// utterance has been spoken. Speech frames keep pushing a silence timer
// forward; when the caller stops talking the timer fires and the buffer
// is flushed to the runner. A full buffer flushes immediately so a
// stuck-open VAD cannot grow the buffer without bound.
type Gate struct {
	cfg      GateConfig
	runner   TurnRunner
	speaking *atomic.Bool // true while we are playing audio to the caller

	mu     sync.Mutex
	buffer []string
	timer  *time.Timer
	closed bool
}

// NewGate creates a gate feeding the given runner. speaking is owned by
// the turn processor; frames arriving while it is set are echo of our
// own playback and are discarded.
func NewGate(cfg GateConfig, runner TurnRunner, speaking *atomic.Bool) *Gate {
	return &Gate{cfg: cfg, runner: runner, speaking: speaking}
}

// Ingest accepts one base64 mulaw frame in arrival order.
func (g *Gate) Ingest(frame string) {
	if g.speaking.Load() {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}

	g.buffer = append(g.buffer, frame)

	if len(g.buffer) >= g.cfg.MaxChunks {
		g.stopTimerLocked()
		g.flushLocked()
		return
	}

	if audio.HasSpeech(frame, g.cfg.VADThreshold) {
		g.stopTimerLocked()
		if len(g.buffer) >= g.cfg.MinChunks {
			g.timer = time.AfterFunc(g.cfg.SilenceTimeout, g.onSilence)
		}
	}
	// A low-energy frame leaves any running timer alone: a run of them
	// is exactly what lets the timer expire.
}

func (g *Gate) onSilence() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.flushLocked()
}

// flushLocked hands the buffer to the runner. Buffers shorter than the
// minimum are discarded as noise. If a turn is already in flight the
// frames stay buffered for the next trigger.
func (g *Gate) flushLocked() {
	if len(g.buffer) == 0 {
		return
	}
	if len(g.buffer) < g.cfg.MinChunks {
		g.buffer = g.buffer[:0]
		return
	}
	if g.runner.Submit(g.buffer) {
		g.buffer = nil
	}
}

func (g *Gate) stopTimerLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// Stop cancels any pending timer and drops buffered frames. Further
// Ingest calls are no-ops.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.stopTimerLocked()
	g.buffer = nil
}
