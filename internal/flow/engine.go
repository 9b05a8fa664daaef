package flow

import (
	"log/slog"
	"strings"

	"github.com/talmor-labs/callflow/internal/memory"
)

// FollowUpAction is the next-step note recorded when a customer asks for
// time to think during closing.
const FollowUpAction = "Follow up in 1-2 days"

// Engine evaluates stage transitions over a call's memory. It owns no
// mutable state beyond the memory view it was built with.
type Engine struct {
	mem *memory.Memory
	lex Lexicon
}

// NewEngine creates an engine over mem. Empty lexicon fields keep their
// Hebrew defaults, so partial overrides are safe.
func NewEngine(mem *memory.Memory, lex Lexicon) *Engine {
	def := DefaultLexicon()
	if len(lex.Greetings) == 0 {
		lex.Greetings = def.Greetings
	}
	if len(lex.Agreement) == 0 {
		lex.Agreement = def.Agreement
	}
	if len(lex.NeedsTime) == 0 {
		lex.NeedsTime = def.NeedsTime
	}
	if len(lex.Refusal) == 0 {
		lex.Refusal = def.Refusal
	}
	if lex.Negation == "" {
		lex.Negation = def.Negation
	}
	return &Engine{mem: mem, lex: lex}
}

// Current returns the definition of the stage the call is in.
func (e *Engine) Current() Stage {
	s, ok := Lookup(StageID(e.mem.CurrentStage))
	if !ok {
		// Unknown stage in memory means a programming error upstream;
		// treat it as the soft-close tail so the call still terminates.
		s = stages[StageSoftClose]
	}
	return s
}

// IsFinal reports whether the call sits in a terminal stage.
func (e *Engine) IsFinal() bool {
	return e.Current().Final
}

// Evaluate decides whether the just-recorded customer utterance should
// move the call to a new stage. It may set the memory outcome and next
// action as a side effect of closing-stage detection, but it never applies
// the transition itself — callers do that via ProcessTransition.
func (e *Engine) Evaluate(utterance string) (StageID, bool) {
	current := e.Current()

	if current.Final {
		return "", false
	}

	// The soft-close tail completes unconditionally on the next customer
	// utterance. It has to resolve before the turn-cap check: the agent's
	// own reply on entering the stage already consumed the single turn,
	// and the cap fallback from SOFT_CLOSE leads nowhere else.
	if current.ID == StageSoftClose {
		return StageCompletedFollowUp, true
	}

	if current.MaxTurns > 0 && e.mem.StageTurnCount >= current.MaxTurns {
		slog.Debug("stage turn cap reached", "stage", current.ID, "turns", e.mem.StageTurnCount)
		return e.fallback(current.ID), true
	}

	lower := strings.ToLower(utterance)

	switch current.ID {
	case StageGreeting:
		return e.fromGreeting(lower)
	case StageNameCollection:
		return e.fromNameCollection()
	case StageRapportBuilding:
		return e.fromRapport()
	case StageNeedsDiscovery:
		return e.fromNeedsDiscovery()
	case StageSolutionPitch:
		return e.fromSolutionPitch()
	case StageObjectionHandling:
		return e.fromObjectionHandling()
	case StageClosing:
		return e.fromClosing(lower)
	default:
		return "", false
	}
}

// ProcessTransition evaluates and applies a transition if one is due.
func (e *Engine) ProcessTransition(utterance string) bool {
	next, ok := e.Evaluate(utterance)
	if !ok || string(next) == e.mem.CurrentStage {
		return false
	}
	e.mem.MoveToStage(string(next))
	if s, found := Lookup(next); found && s.Final && s.Outcome != "" {
		e.mem.SetOutcome(s.Outcome)
	}
	return true
}

func (e *Engine) fromGreeting(lower string) (StageID, bool) {
	if e.mem.Customer.Name != "" {
		return StageRapportBuilding, true
	}
	if containsAny(lower, e.lex.Greetings) {
		return StageNameCollection, true
	}
	if e.mem.StageTurnCount >= 2 {
		return StageNameCollection, true
	}
	return "", false
}

func (e *Engine) fromNameCollection() (StageID, bool) {
	if e.mem.Customer.Name != "" {
		return StageRapportBuilding, true
	}
	// Two attempts is enough; don't force it.
	if e.mem.StageTurnCount >= 2 {
		return StageRapportBuilding, true
	}
	return "", false
}

func (e *Engine) fromRapport() (StageID, bool) {
	if e.mem.Sentiment == memory.SentimentNegative {
		return StageObjectionHandling, true
	}
	return StageNeedsDiscovery, true
}

func (e *Engine) fromNeedsDiscovery() (StageID, bool) {
	if len(e.mem.Needs) >= 1 {
		return StageSolutionPitch, true
	}
	if e.mem.StageTurnCount >= 3 {
		return StageSolutionPitch, true
	}
	return "", false
}

func (e *Engine) fromSolutionPitch() (StageID, bool) {
	if e.mem.ObjectionJustAdded() {
		return StageObjectionHandling, true
	}
	if e.mem.Sentiment == memory.SentimentPositive && len(e.mem.Interests) > 0 {
		return StageClosing, true
	}
	if e.mem.StageTurnCount >= 3 {
		return StageClosing, true
	}
	return "", false
}

func (e *Engine) fromObjectionHandling() (StageID, bool) {
	if e.mem.Sentiment == memory.SentimentPositive {
		return StageSolutionPitch, true
	}
	if e.mem.StageTurnCount >= 2 && e.mem.Sentiment == memory.SentimentNegative {
		return StageSoftClose, true
	}
	if e.mem.StageTurnCount >= 1 && e.mem.Sentiment == memory.SentimentNeutral {
		return StageSolutionPitch, true
	}
	return "", false
}

func (e *Engine) fromClosing(lower string) (StageID, bool) {
	if containsAny(lower, e.lex.Agreement) && !strings.Contains(lower, e.lex.Negation) {
		e.mem.SetOutcome(memory.OutcomeSale)
		return StageCompletedSuccess, true
	}

	if containsAny(lower, e.lex.NeedsTime) {
		e.mem.SetOutcome(memory.OutcomeFollowUp)
		e.mem.NextAction = FollowUpAction
		return StageSoftClose, true
	}

	if containsAny(lower, e.lex.Refusal) {
		e.mem.SetOutcome(memory.OutcomeNoSale)
		return StageCompletedNoSale, true
	}

	if e.mem.StageTurnCount >= 2 {
		return StageSoftClose, true
	}
	return "", false
}

// fallback returns the stage after current in the linear order, or
// SOFT_CLOSE when current is last or unlisted (OBJECTION_HANDLING and the
// terminal stages are unlisted on purpose).
func (e *Engine) fallback(current StageID) StageID {
	for i, id := range fallbackOrder {
		if id == current {
			if i < len(fallbackOrder)-1 {
				return fallbackOrder[i+1]
			}
			break
		}
	}
	return StageSoftClose
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
