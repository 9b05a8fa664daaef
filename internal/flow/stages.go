// Package flow drives the sales-dialogue state machine. The engine is a
// pure function of the conversation memory: it holds no state of its own
// beyond a read view, and every transition decision is derived from the
// just-recorded utterance plus the memory's counters and signals.
package flow

import "github.com/talmor-labs/callflow/internal/memory"

// StageID names a stage in the closed stage set.
type StageID string

const (
	StageGreeting          StageID = "GREETING"
	StageNameCollection    StageID = "NAME_COLLECTION"
	StageRapportBuilding   StageID = "RAPPORT_BUILDING"
	StageNeedsDiscovery    StageID = "NEEDS_DISCOVERY"
	StageSolutionPitch     StageID = "SOLUTION_PITCH"
	StageObjectionHandling StageID = "OBJECTION_HANDLING"
	StageClosing           StageID = "CLOSING"
	StageSoftClose         StageID = "SOFT_CLOSE"
	StageCompletedSuccess  StageID = "COMPLETED_SUCCESS"
	StageCompletedFollowUp StageID = "COMPLETED_FOLLOW_UP"
	StageCompletedNoSale   StageID = "COMPLETED_NO_SALE"
)

// Stage describes one stage: the agent's goal and scripted behavior for
// prompt building, plus the cap that guarantees the dialogue keeps moving.
type Stage struct {
	ID            StageID
	Goal          string
	Action        string
	ExpectedInput string

	// MaxTurns forces a fallback transition once the stage has consumed
	// this many messages; zero means uncapped. The caps are the liveness
	// guarantee: no stage can hold the conversation forever.
	MaxTurns int

	Final   bool
	Outcome memory.Outcome
}

// stages is the closed stage table. Goal/action texts are the agent-facing
// Hebrew script used for prompt construction.
var stages = map[StageID]Stage{
	StageGreeting: {
		ID:            StageGreeting,
		Goal:          "קבל את תשומת הלב של הלקוח וצור אווירה חמה",
		Action:        "אמור שלום, הצג את עצמך בקצרה, ושאל איך קוראים ללקוח",
		ExpectedInput: "הלו / שלום / שם",
		MaxTurns:      2,
	},
	StageNameCollection: {
		ID:            StageNameCollection,
		Goal:          "קבל את שם הלקוח",
		Action:        `שאל בצורה ישירה וחמה: "איך קוראים לך?" או "מה שמך?"`,
		ExpectedInput: "שם",
		MaxTurns:      2,
	},
	StageRapportBuilding: {
		ID:            StageRapportBuilding,
		Goal:          "צור קשר אישי וגרום ללקוח להרגיש בנוח",
		Action:        "השתמש בשם הלקוח, הראה עניין אמיתי, שאל איך הוא מרגיש",
		ExpectedInput: "סטטוס רגשי / תגובה",
		MaxTurns:      1,
	},
	StageNeedsDiscovery: {
		ID:            StageNeedsDiscovery,
		Goal:          "הבן מה הלקוח צריך ולמה הוא התקשר",
		Action:        `שאל שאלות פתוחות: "מה הביא אותך להתקשר?", "ספר לי קצת על המצב שלך"`,
		ExpectedInput: "צרכים / בעיות / מטרות",
		MaxTurns:      3,
	},
	StageSolutionPitch: {
		ID:            StageSolutionPitch,
		Goal:          "הצג את הפתרון שמתאים לצרכים שזיהית",
		Action:        "קשר בין הצרכים שהלקוח אמר לבין הפתרון שלך. השתמש בשם הלקוח",
		ExpectedInput: "שאלות / עניין / התנגדות",
		MaxTurns:      3,
	},
	StageObjectionHandling: {
		ID:            StageObjectionHandling,
		Goal:          "הבן את ההתנגדות, הראה אמפתיה, תן מענה",
		Action:        "הקשב, אמת את התחושה של הלקוח, תן פתרון או הסבר",
		ExpectedInput: "התנגדות / חשש / שאלה",
		MaxTurns:      2,
	},
	StageClosing: {
		ID:            StageClosing,
		Goal:          "הנע את הלקוח לפעולה ברורה",
		Action:        `תן next step ברור: "אז מה נעשה? אני יכול לשלוח לך...", "בוא נקבע..."`,
		ExpectedInput: "הסכמה / דחייה / בקשה לזמן",
		MaxTurns:      2,
	},
	StageSoftClose: {
		ID:            StageSoftClose,
		Goal:          "שמור על הקשר, השאר דלת פתוחה",
		Action:        `הציע follow-up: "בסדר גמור! אשלח לך פרטים, תרגיש חופשי לחזור אליי"`,
		ExpectedInput: "הסכמה / תודה",
		MaxTurns:      1,
	},
	StageCompletedSuccess: {
		ID:      StageCompletedSuccess,
		Goal:    "סיום חיובי של השיחה",
		Action:  "תודה, אשר את הפעולה הבאה, סיום חם",
		Final:   true,
		Outcome: memory.OutcomeSale,
	},
	StageCompletedFollowUp: {
		ID:      StageCompletedFollowUp,
		Goal:    "סיום עם התחייבות ל-follow up",
		Action:  "תודה, אשר את ה-follow up, סיום חם",
		Final:   true,
		Outcome: memory.OutcomeFollowUp,
	},
	StageCompletedNoSale: {
		ID:      StageCompletedNoSale,
		Goal:    "סיום מכבד",
		Action:  "תודה על הזמן, השאר דלת פתוחה לעתיד",
		Final:   true,
		Outcome: memory.OutcomeNoSale,
	},
}

// fallbackOrder is the linear progression used when a stage's turn cap
// fires without a clear signal. OBJECTION_HANDLING is deliberately absent:
// a capped objection stage falls through to SOFT_CLOSE rather than looping
// back into the pitch.
var fallbackOrder = []StageID{
	StageGreeting,
	StageNameCollection,
	StageRapportBuilding,
	StageNeedsDiscovery,
	StageSolutionPitch,
	StageClosing,
	StageSoftClose,
}

// Lookup returns the stage definition for id; ok is false for unknown ids.
func Lookup(id StageID) (Stage, bool) {
	s, ok := stages[id]
	return s, ok
}

// Lexicon holds the transition trigger phrases. Like the extractor tables,
// these are localization data with Hebrew defaults.
type Lexicon struct {
	Greetings []string
	Agreement []string
	NeedsTime []string
	Refusal   []string

	// Negation cancels an agreement match when it appears in the same
	// utterance ("כן... אבל לא").
	Negation string
}

// DefaultLexicon returns the built-in Hebrew trigger phrases.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Greetings: []string{"הלו", "שלום", "היי", "מה נשמע", "בוקר טוב", "ערב טוב"},
		Agreement: []string{"כן", "בטח", "אוקיי", "טוב", "נשמע טוב", "בסדר", "מעולה", "נהדר"},
		NeedsTime: []string{"אחשוב", "אחזור", "תן לי זמן", "נדבר", "מחר", "אשקול"},
		Refusal:   []string{"לא", "לא מעוניין", "לא בשבילי", "לא מתאים", "תודה אבל"},
		Negation:  "לא",
	}
}
