package stt

import (
	"context"
	"log/slog"
	"sync"
)

// Failover wraps a primary and secondary transcriber. After the primary
// fails a configured number of consecutive times it is benched and the
// secondary takes over for the rest of the process lifetime. A single
// success on the primary resets the failure count.
type Failover struct {
	primary   Transcriber
	secondary Transcriber
	threshold int

	mu       sync.Mutex
	failures int
	switched bool
}

// NewFailover builds a failover transcriber. A threshold of zero or less
// defaults to 3. If secondary is nil the primary is returned unwrapped.
func NewFailover(primary, secondary Transcriber, threshold int) Transcriber {
	if secondary == nil {
		return primary
	}
	if threshold <= 0 {
		threshold = 3
	}
	return &Failover{primary: primary, secondary: secondary, threshold: threshold}
}

// Name reports the currently active backend.
func (f *Failover) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.switched {
		return f.secondary.Name()
	}
	return f.primary.Name()
}

// Transcribe routes to the active backend. On a primary error the call is
// retried once on the secondary so the turn is not lost.
func (f *Failover) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	f.mu.Lock()
	switched := f.switched
	f.mu.Unlock()

	if switched {
		return f.secondary.Transcribe(ctx, wav, language)
	}

	text, err := f.primary.Transcribe(ctx, wav, language)
	if err == nil {
		f.mu.Lock()
		f.failures = 0
		f.mu.Unlock()
		return text, nil
	}

	f.mu.Lock()
	f.failures++
	if f.failures >= f.threshold && !f.switched {
		f.switched = true
		slog.Warn("stt primary benched after repeated failures",
			"primary", f.primary.Name(),
			"secondary", f.secondary.Name(),
			"failures", f.failures)
	}
	f.mu.Unlock()

	slog.Warn("stt primary failed, retrying on secondary",
		"primary", f.primary.Name(), "error", err)
	return f.secondary.Transcribe(ctx, wav, language)
}
