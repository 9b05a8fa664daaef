package session

import (
	"sync"
	"time"
)

// CallStats is the public view of one live call.
type CallStats struct {
	CallID    string    `json:"callId"`
	StreamSid string    `json:"streamSid"`
	StartedAt time.Time `json:"startedAt"`
	Stage     string    `json:"stage"`
	Turns     int       `json:"turns"`
	Customer  string    `json:"customer,omitempty"`
	Sentiment string    `json:"sentiment"`
}

// Registry tracks live sessions. It is injected into the transport layer
// rather than living as package state, so tests can run registries in
// isolation.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session under its call id.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.callID] = s
}

// Remove drops a session. Unknown ids are ignored.
func (r *Registry) Remove(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callID)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns stats for every live call.
func (r *Registry) Snapshot() []CallStats {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	// Stats takes the per-session memory lock; collect outside r.mu so a
	// busy turn cannot stall the whole registry.
	stats := make([]CallStats, 0, len(sessions))
	for _, s := range sessions {
		stats = append(stats, s.Stats())
	}
	return stats
}

// CloseAll tears down every live session. Used during shutdown so
// in-flight calls still flush their summaries.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
