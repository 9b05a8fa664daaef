package memory

import (
	"regexp"
	"strings"
)

// Signals is what one customer utterance contributes to the derived state.
type Signals struct {
	Needs      []string
	Objections []string
	Interests  []string
}

// SignalExtractor turns raw utterance text into derived signals. The
// default implementation is keyword matching over configurable word lists;
// swapping in a model-backed extractor only requires satisfying this
// interface.
type SignalExtractor interface {
	// ExtractName returns the customer name found in text, or "".
	ExtractName(text string) string

	// ExtractSignals returns candidate needs/objections/interests.
	ExtractSignals(text string) Signals

	// AnalyzeSentiment classifies this single utterance in isolation.
	AnalyzeSentiment(text string) Sentiment
}

// ExtractorConfig is the keyword data table driving the default extractor.
// The lists are localization data, not algorithm: the defaults are Hebrew
// and every list can be replaced wholesale through configuration.
type ExtractorConfig struct {
	// NameStoplist holds common acknowledgement words that must never be
	// mistaken for a name.
	NameStoplist []string

	NeedWords      []string
	ObjectionWords []string
	InterestWords  []string

	PositiveWords []string
	NegativeWords []string
}

// DefaultExtractorConfig returns the built-in Hebrew keyword tables.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		NameStoplist: []string{"כן", "לא", "טוב", "רע", "אוקיי", "בסדר", "הלו", "שלום"},
		NeedWords:    []string{"צריך", "רוצה", "מחפש", "מעוניין", "בעיה", "קשה", "חשוב", "דרוש"},
		ObjectionWords: []string{
			"יקר", "לא בטוח", "לא מתאים", "לא מעוניין",
			"אין לי זמן", "לא עכשיו", "צריך לחשוב", "לא בשבילי",
		},
		InterestWords: []string{"מעניין", "נשמע טוב", "אהבתי", "נחמד", "כן"},
		PositiveWords: []string{
			"מעולה", "נהדר", "כן", "בטח", "מעניין", "טוב", "מצוין",
			"אהבתי", "נחמד", "כיף", "שמח", "תודה", "נשמע טוב",
		},
		NegativeWords: []string{
			"לא", "רע", "גרוע", "לא מעניין", "אין", "בעיה", "קשה",
			"יקר", "לא בשבילי", "לא מתאים", "לא בטוח",
		},
	}
}

// namePatterns are tried in order; the first capture that passes the
// stoplist and length check wins. The single-token pattern comes last so
// bare one-word replies ("משה") still count as a name.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`קוראים לי ([\p{Hebrew}]+)`),
	regexp.MustCompile(`אני ([\p{Hebrew}]+)`),
	regexp.MustCompile(`שמי ([\p{Hebrew}]+)`),
	regexp.MustCompile(`זה ([\p{Hebrew}]+)`),
	regexp.MustCompile(`^([\p{Hebrew}]+)$`),
}

// KeywordExtractor is the default SignalExtractor: pattern matchers for
// names and substring-containment keyword matching for everything else.
type KeywordExtractor struct {
	cfg ExtractorConfig
}

// NewKeywordExtractor builds an extractor from the given tables. Empty
// lists fall back to the defaults so partial overrides behave sensibly.
func NewKeywordExtractor(cfg ExtractorConfig) *KeywordExtractor {
	def := DefaultExtractorConfig()
	if len(cfg.NameStoplist) == 0 {
		cfg.NameStoplist = def.NameStoplist
	}
	if len(cfg.NeedWords) == 0 {
		cfg.NeedWords = def.NeedWords
	}
	if len(cfg.ObjectionWords) == 0 {
		cfg.ObjectionWords = def.ObjectionWords
	}
	if len(cfg.InterestWords) == 0 {
		cfg.InterestWords = def.InterestWords
	}
	if len(cfg.PositiveWords) == 0 {
		cfg.PositiveWords = def.PositiveWords
	}
	if len(cfg.NegativeWords) == 0 {
		cfg.NegativeWords = def.NegativeWords
	}
	return &KeywordExtractor{cfg: cfg}
}

// ExtractName applies the ordered name patterns to the raw utterance.
func (e *KeywordExtractor) ExtractName(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, pat := range namePatterns {
		match := pat.FindStringSubmatch(trimmed)
		if len(match) < 2 {
			continue
		}
		candidate := match[1]
		if len([]rune(candidate)) < 2 {
			continue
		}
		if e.stoplisted(candidate) {
			continue
		}
		return candidate
	}
	return ""
}

func (e *KeywordExtractor) stoplisted(word string) bool {
	for _, s := range e.cfg.NameStoplist {
		if word == s {
			return true
		}
	}
	return false
}

// sentenceSplit breaks an utterance on sentence-terminal punctuation.
var sentenceSplit = regexp.MustCompile(`[.!?]`)

// ExtractSignals finds sentence-like segments containing a keyword from
// each of the three tables. Dedup against already-recorded entries happens
// in Memory; this only reports candidates.
func (e *KeywordExtractor) ExtractSignals(text string) Signals {
	lower := strings.ToLower(text)
	segments := sentenceSplit.Split(text, -1)

	pick := func(keywords []string) []string {
		var out []string
		for _, kw := range keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			for _, seg := range segments {
				if strings.Contains(strings.ToLower(seg), kw) {
					if trimmed := strings.TrimSpace(seg); trimmed != "" {
						out = append(out, trimmed)
					}
					break
				}
			}
		}
		return out
	}

	return Signals{
		Needs:      pick(e.cfg.NeedWords),
		Objections: pick(e.cfg.ObjectionWords),
		Interests:  pick(e.cfg.InterestWords),
	}
}

// AnalyzeSentiment counts positive and negative keyword hits by substring
// containment and lets the majority win; ties are neutral. Each call looks
// only at the given utterance.
func (e *KeywordExtractor) AnalyzeSentiment(text string) Sentiment {
	lower := strings.ToLower(text)

	var pos, neg int
	for _, w := range e.cfg.PositiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range e.cfg.NegativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}

	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
