package memory

import (
	"strings"
	"testing"
	"time"
)

func TestExtractName(t *testing.T) {
	e := NewKeywordExtractor(ExtractorConfig{})

	tests := []struct {
		name string
		text string
		want string
	}{
		{"introduction phrase", "קוראים לי דוד", "דוד"},
		{"i am phrase", "אני משה", "משה"},
		{"my name phrase", "שמי רחל", "רחל"},
		{"bare single token", "יוסי", "יוסי"},
		{"stoplisted ack word", "כן", ""},
		{"stoplisted greeting", "שלום", ""},
		{"too short", "א", ""},
		{"no name present", "מה אתם מוכרים בעצם", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.ExtractName(tt.text); got != tt.want {
				t.Errorf("ExtractName(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestNameLockIn(t *testing.T) {
	m := New("call-1", nil)

	m.AddMessage(RoleCustomer, "קוראים לי דוד")
	if m.Customer.Name != "דוד" {
		t.Fatalf("name = %q, want דוד", m.Customer.Name)
	}

	// A later utterance matching a name pattern must not overwrite.
	m.AddMessage(RoleCustomer, "אני מתלבט")
	if m.Customer.Name != "דוד" {
		t.Errorf("name overwritten to %q, want דוד", m.Customer.Name)
	}
}

func TestContainmentDedup(t *testing.T) {
	m := New("call-1", nil)

	m.AddMessage(RoleCustomer, "אני צריך פתרון לניהול לקוחות")
	if len(m.Needs) != 1 {
		t.Fatalf("needs = %v, want one entry", m.Needs)
	}

	// Same segment again: superstring/substring of an existing entry is
	// dropped, not appended.
	m.AddMessage(RoleCustomer, "כמו שאמרתי אני צריך פתרון לניהול לקוחות")
	if len(m.Needs) != 1 {
		t.Errorf("needs after repeat = %v, want still one entry", m.Needs)
	}

	// A genuinely different need is appended.
	m.AddMessage(RoleCustomer, "חשוב לי גם מחיר הוגן")
	if len(m.Needs) != 2 {
		t.Errorf("needs = %v, want two entries", m.Needs)
	}
}

func TestSentimentReplacement(t *testing.T) {
	m := New("call-1", nil)

	m.AddMessage(RoleCustomer, "זה נשמע מעולה, תודה")
	if m.Sentiment != SentimentPositive {
		t.Fatalf("sentiment = %q, want positive", m.Sentiment)
	}

	// Sentiment is recomputed per utterance, not blended.
	m.AddMessage(RoleCustomer, "זה גרוע, לא בשבילי")
	if m.Sentiment != SentimentNegative {
		t.Errorf("sentiment = %q, want negative", m.Sentiment)
	}
}

func TestSentimentTieIsNeutral(t *testing.T) {
	e := NewKeywordExtractor(ExtractorConfig{})
	if got := e.AnalyzeSentiment("מה השעה"); got != SentimentNeutral {
		t.Errorf("sentiment = %q, want neutral", got)
	}
}

func TestObjectionJustAdded(t *testing.T) {
	m := New("call-1", nil)

	m.AddMessage(RoleCustomer, "זה יקר מדי בשבילי")
	if !m.ObjectionJustAdded() {
		t.Error("expected objection flagged on the turn it was recorded")
	}

	m.AddMessage(RoleAgent, "אני מבין")
	if m.ObjectionJustAdded() {
		t.Error("objection flag must clear on the next message")
	}
}

func TestMoveToStage(t *testing.T) {
	m := New("call-1", nil)
	base := time.Now()
	m.now = func() time.Time { return base.Add(30 * time.Second) }

	m.AddMessage(RoleCustomer, "שלום")
	m.AddMessage(RoleAgent, "היי")
	m.MoveToStage("NAME_COLLECTION")

	if m.CurrentStage != "NAME_COLLECTION" {
		t.Errorf("stage = %q, want NAME_COLLECTION", m.CurrentStage)
	}
	if m.StageTurnCount != 0 {
		t.Errorf("stageTurnCount = %d, want 0 after transition", m.StageTurnCount)
	}
	if len(m.StageHistory) != 1 {
		t.Fatalf("stageHistory length = %d, want 1", len(m.StageHistory))
	}
	rec := m.StageHistory[0]
	if rec.Stage != InitialStage {
		t.Errorf("history stage = %q, want %q", rec.Stage, InitialStage)
	}
	if rec.Turns != 2 {
		t.Errorf("history turns = %d, want 2", rec.Turns)
	}
}

func TestOutcomeFirstWins(t *testing.T) {
	m := New("call-1", nil)
	m.SetOutcome(OutcomeSale)
	m.SetOutcome(OutcomeNoSale)
	if m.Outcome != OutcomeSale {
		t.Errorf("outcome = %q, want first-set SALE", m.Outcome)
	}
}

func TestPromptContextWindow(t *testing.T) {
	m := New("call-1", nil)
	for i := 0; i < 10; i++ {
		m.AddMessage(RoleCustomer, "הודעה")
		m.AddMessage(RoleAgent, "תשובה")
	}

	pc := m.PromptContext()
	if len(pc.RecentMessages) != 6 {
		t.Errorf("recent messages = %d, want 6", len(pc.RecentMessages))
	}
	if pc.TurnCount != 20 {
		t.Errorf("turn count = %d, want 20", pc.TurnCount)
	}
}

func TestSummary(t *testing.T) {
	m := New("call-7", nil)
	m.AddMessage(RoleCustomer, "קוראים לי דוד")
	m.MoveToStage("NAME_COLLECTION")
	m.AddMessage(RoleCustomer, "אני צריך מערכת לניהול")
	m.SetOutcome(OutcomeFollowUp)

	s := m.Summary()
	if s.CallID != "call-7" {
		t.Errorf("callId = %q, want call-7", s.CallID)
	}
	if s.Customer.Name != "דוד" {
		t.Errorf("customer = %q, want דוד", s.Customer.Name)
	}
	if s.Outcome != OutcomeFollowUp {
		t.Errorf("outcome = %q, want FOLLOW_UP", s.Outcome)
	}
	if len(s.StagesCompleted) != 1 || s.StagesCompleted[0] != InitialStage {
		t.Errorf("stagesCompleted = %v, want [%s]", s.StagesCompleted, InitialStage)
	}
	if len(s.Transcript) != 2 {
		t.Errorf("transcript length = %d, want 2", len(s.Transcript))
	}
	if !s.StartedAt.Equal(m.StartTime) {
		t.Errorf("startedAt = %v, want call start %v", s.StartedAt, m.StartTime)
	}
	if s.Timestamp.Before(s.StartedAt) {
		t.Error("summary timestamp precedes call start")
	}
}

func TestQuickSummary(t *testing.T) {
	m := New("call-1", nil)
	got := m.QuickSummary()
	if !strings.Contains(got, "Unknown") {
		t.Errorf("quick summary %q should report unknown customer", got)
	}
}
