// Package memory tracks everything learned during a call: the message
// ledger, customer identity, collected needs/objections/interests, point-in-
// time sentiment, and per-stage counters the flow engine transitions on.
//
// A Memory is single-writer: all mutation happens on the owning session's
// turn-processing path, so no locking lives here.
package memory

import (
	"strings"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// Sentiment is the point-in-time read of the customer's last utterance.
// It is recomputed from scratch on every customer message, never blended
// with previous values.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Outcome is the terminal disposition of a call. Set at most once.
type Outcome string

const (
	OutcomeSale       Outcome = "SALE"
	OutcomeFollowUp   Outcome = "FOLLOW_UP"
	OutcomeNoSale     Outcome = "NO_SALE"
	OutcomeIncomplete Outcome = "INCOMPLETE"
)

// InitialStage is the stage every call starts in. The stage vocabulary
// itself is owned by the flow package; memory records stages as strings.
const InitialStage = "GREETING"

// Customer holds extracted identity fields. Name is write-once: the first
// successful extraction wins and later utterances never overwrite it.
type Customer struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Message is one entry in the append-only conversation ledger.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
}

// StageRecord is appended exactly once each time a stage is exited.
type StageRecord struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
	Turns    int           `json:"turns"`
}

// Memory is the per-call conversation state.
type Memory struct {
	CallID    string
	StartTime time.Time

	Customer Customer

	CurrentStage   string
	StageTurnCount int
	TurnCount      int
	stageStart     time.Time

	Needs      []string
	Objections []string
	Interests  []string
	Sentiment  Sentiment

	// LastObjectionTurn is the TurnCount at which an objection was most
	// recently appended; the flow engine uses it to tell a fresh objection
	// from an old one.
	LastObjectionTurn int

	Messages     []Message
	StageHistory []StageRecord

	Outcome    Outcome
	NextAction string

	extractor SignalExtractor
	now       func() time.Time
}

// New creates an empty Memory for a call. A nil extractor gets the default
// Hebrew keyword extractor.
func New(callID string, extractor SignalExtractor) *Memory {
	if extractor == nil {
		extractor = NewKeywordExtractor(DefaultExtractorConfig())
	}
	now := time.Now()
	return &Memory{
		CallID:       callID,
		StartTime:    now,
		CurrentStage: InitialStage,
		Sentiment:    SentimentNeutral,
		stageStart:   now,
		extractor:    extractor,
		now:          time.Now,
	}
}

// AddMessage appends a message to the ledger and bumps both turn counters.
// Customer messages additionally run entity extraction and sentiment
// analysis over the raw utterance.
func (m *Memory) AddMessage(role Role, text string) {
	m.Messages = append(m.Messages, Message{
		Role:      role,
		Text:      text,
		Timestamp: m.now(),
		Stage:     m.CurrentStage,
	})

	m.TurnCount++
	m.StageTurnCount++

	if role == RoleCustomer {
		m.extract(text)
	}
}

func (m *Memory) extract(text string) {
	if m.Customer.Name == "" {
		if name := m.extractor.ExtractName(text); name != "" {
			m.Customer.Name = name
		}
	}

	sig := m.extractor.ExtractSignals(text)
	for _, n := range sig.Needs {
		m.Needs = appendUnlessContained(m.Needs, n)
	}
	objBefore := len(m.Objections)
	for _, o := range sig.Objections {
		m.Objections = appendUnlessContained(m.Objections, o)
	}
	if len(m.Objections) > objBefore {
		m.LastObjectionTurn = m.TurnCount
	}
	for _, i := range sig.Interests {
		m.Interests = appendUnlessContained(m.Interests, i)
	}

	// Replaces, never accumulates: sentiment is a point-in-time signal.
	m.Sentiment = m.extractor.AnalyzeSentiment(text)
}

// ObjectionJustAdded reports whether the most recent customer message
// contributed a new objection.
func (m *Memory) ObjectionJustAdded() bool {
	return m.LastObjectionTurn != 0 && m.LastObjectionTurn == m.TurnCount
}

// MoveToStage records the exit of the current stage and enters next,
// resetting the per-stage turn counter.
func (m *Memory) MoveToStage(next string) {
	m.StageHistory = append(m.StageHistory, StageRecord{
		Stage:    m.CurrentStage,
		Duration: m.now().Sub(m.stageStart),
		Turns:    m.StageTurnCount,
	})

	m.CurrentStage = next
	m.StageTurnCount = 0
	m.stageStart = m.now()
}

// SetOutcome sets the terminal disposition. The first value sticks.
func (m *Memory) SetOutcome(o Outcome) {
	if m.Outcome == "" {
		m.Outcome = o
	}
}

// PromptContext is the derived snapshot handed to the LLM collaborator.
type PromptContext struct {
	CustomerName   string
	Needs          []string
	Objections     []string
	Interests      []string
	Sentiment      Sentiment
	RecentMessages []Message
	CurrentStage   string
	TurnCount      int
	StageTurnCount int
}

// recentWindow is the number of trailing messages included in prompts
// (three customer/agent exchanges).
const recentWindow = 6

// PromptContext snapshots the fields the LLM prompt is built from.
func (m *Memory) PromptContext() PromptContext {
	recent := m.Messages
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}
	return PromptContext{
		CustomerName:   m.Customer.Name,
		Needs:          append([]string(nil), m.Needs...),
		Objections:     append([]string(nil), m.Objections...),
		Interests:      append([]string(nil), m.Interests...),
		Sentiment:      m.Sentiment,
		RecentMessages: append([]Message(nil), recent...),
		CurrentStage:   m.CurrentStage,
		TurnCount:      m.TurnCount,
		StageTurnCount: m.StageTurnCount,
	}
}

// TranscriptEntry is one line of the exported transcript.
type TranscriptEntry struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
}

// Summary is the terminal record of a call, shipped to the analytics
// webhook and optionally persisted.
type Summary struct {
	CallID    string    `json:"callId"`
	StartedAt time.Time `json:"startedAt"`
	Duration  int       `json:"duration"` // seconds
	Timestamp time.Time `json:"timestamp"` // summary generation time

	Customer Customer `json:"customer"`

	Needs      []string  `json:"needs"`
	Objections []string  `json:"objections"`
	Interests  []string  `json:"interests"`
	Sentiment  Sentiment `json:"sentiment"`

	Outcome    Outcome `json:"outcome,omitempty"`
	NextAction string  `json:"nextAction,omitempty"`

	TotalTurns      int               `json:"totalTurns"`
	StagesCompleted []string          `json:"stagesCompleted"`
	TimePerStage    map[string]int    `json:"timePerStage"` // seconds
	Transcript      []TranscriptEntry `json:"transcript"`
}

// Summary builds the terminal record from the current state.
func (m *Memory) Summary() Summary {
	stages := make([]string, 0, len(m.StageHistory))
	perStage := make(map[string]int, len(m.StageHistory))
	for _, rec := range m.StageHistory {
		stages = append(stages, rec.Stage)
		perStage[rec.Stage] = int(rec.Duration.Round(time.Second) / time.Second)
	}

	transcript := make([]TranscriptEntry, 0, len(m.Messages))
	for _, msg := range m.Messages {
		transcript = append(transcript, TranscriptEntry{
			Role:      msg.Role,
			Text:      msg.Text,
			Timestamp: msg.Timestamp,
			Stage:     msg.Stage,
		})
	}

	return Summary{
		CallID:          m.CallID,
		StartedAt:       m.StartTime,
		Duration:        int(m.now().Sub(m.StartTime).Round(time.Second) / time.Second),
		Timestamp:       m.now(),
		Customer:        m.Customer,
		Needs:           append([]string(nil), m.Needs...),
		Objections:      append([]string(nil), m.Objections...),
		Interests:       append([]string(nil), m.Interests...),
		Sentiment:       m.Sentiment,
		Outcome:         m.Outcome,
		NextAction:      m.NextAction,
		TotalTurns:      m.TurnCount,
		StagesCompleted: stages,
		TimePerStage:    perStage,
		Transcript:      transcript,
	}
}

// QuickSummary is a one-line digest for logs.
func (m *Memory) QuickSummary() string {
	name := m.Customer.Name
	if name == "" {
		name = "Unknown"
	}
	need := "No needs identified"
	if len(m.Needs) > 0 {
		need = m.Needs[0]
	}
	outcome := string(m.Outcome)
	if outcome == "" {
		outcome = "In progress"
	}
	return name + " | " + need + " | " + outcome
}

// appendUnlessContained adds candidate to list unless it duplicates an
// existing entry by substring containment in either direction.
func appendUnlessContained(list []string, candidate string) []string {
	if candidate == "" {
		return list
	}
	for _, existing := range list {
		if strings.Contains(existing, candidate) || strings.Contains(candidate, existing) {
			return list
		}
	}
	return append(list, candidate)
}
