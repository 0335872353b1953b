package analysis

import "strings"

// SentimentScorer assigns a bounded [-1, 1] score to a brand mention.
// The keyword heuristic below is deliberately replaceable; anything
// smarter (an LLM judge, a cognitive-services call) slots in behind
// this interface without touching the pipeline.
type SentimentScorer interface {
	Score(content string, mentionPosition int) float64
}

// KeywordScorer scores sentiment by counting positive and negative
// keywords within a fixed character window around the brand's first
// mention.
type KeywordScorer struct {
	Window        int
	PositiveWords []string
	NegativeWords []string
}

var _ SentimentScorer = (*KeywordScorer)(nil)

// NewKeywordScorer returns a scorer with the default lexicon and a
// 300-character window.
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{
		Window: 300,
		PositiveWords: []string{
			"good", "great", "excellent", "best", "leading", "recommended",
			"reliable", "popular", "trusted", "innovative", "top",
		},
		NegativeWords: []string{
			"bad", "poor", "worst", "avoid", "unreliable", "expensive",
			"complaint", "problem", "issue", "scam", "outdated",
		},
	}
}

// Score counts keyword occurrences in the window around mentionPosition
// and returns (positive - negative) / (positive + negative), which is
// bounded in [-1, 1] by construction. No keywords at all scores 0.
func (k *KeywordScorer) Score(content string, mentionPosition int) float64 {
	if content == "" || mentionPosition < 0 {
		return 0
	}

	window := k.Window
	if window <= 0 {
		window = 300
	}

	start := mentionPosition - window/2
	if start < 0 {
		start = 0
	}
	end := mentionPosition + window/2
	if end > len(content) {
		end = len(content)
	}

	snippet := strings.ToLower(content[start:end])

	positive := 0
	for _, word := range k.PositiveWords {
		positive += strings.Count(snippet, word)
	}

	negative := 0
	for _, word := range k.NegativeWords {
		negative += strings.Count(snippet, word)
	}

	if positive+negative == 0 {
		return 0
	}
	return float64(positive-negative) / float64(positive+negative)
}

// Sentiment bucket thresholds shared by the aggregator and dashboard.
const (
	PositiveThreshold = 0.1
	NegativeThreshold = -0.1
)

// Bucket maps a score to its sentiment bucket name.
func Bucket(score float64) string {
	switch {
	case score > PositiveThreshold:
		return "positive"
	case score < NegativeThreshold:
		return "negative"
	default:
		return "neutral"
	}
}
