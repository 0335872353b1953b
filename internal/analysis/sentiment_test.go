package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordScorer_Score(t *testing.T) {
	scorer := NewKeywordScorer()

	tests := []struct {
		name    string
		content string
		want    func(t *testing.T, score float64)
	}{
		{
			name:    "Positive content",
			content: "Acme is a great and reliable supplier, the best in its class",
			want: func(t *testing.T, score float64) {
				assert.Greater(t, score, PositiveThreshold)
			},
		},
		{
			name:    "Negative content",
			content: "Acme is the worst choice, avoid it, an expensive problem",
			want: func(t *testing.T, score float64) {
				assert.Less(t, score, NegativeThreshold)
			},
		},
		{
			name:    "Neutral content",
			content: "Acme manufactures industrial widgets in three factories",
			want: func(t *testing.T, score float64) {
				assert.Equal(t, 0.0, score)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := scorer.Score(tt.content, strings.Index(tt.content, "Acme"))
			assert.GreaterOrEqual(t, score, -1.0)
			assert.LessOrEqual(t, score, 1.0)
			tt.want(t, score)
		})
	}
}

func TestKeywordScorer_WindowLimitsContext(t *testing.T) {
	scorer := NewKeywordScorer()
	scorer.Window = 20

	// Negative keywords sit far outside the window around the mention.
	padding := strings.Repeat(".", 500)
	content := "worst terrible scam" + padding + "Acme" + padding + "avoid problem issue"

	score := scorer.Score(content, strings.Index(content, "Acme"))
	assert.Equal(t, 0.0, score)
}

func TestKeywordScorer_NoMention(t *testing.T) {
	scorer := NewKeywordScorer()
	assert.Equal(t, 0.0, scorer.Score("great great great", -1))
}

func TestBucket(t *testing.T) {
	assert.Equal(t, "positive", Bucket(0.5))
	assert.Equal(t, "negative", Bucket(-0.5))
	assert.Equal(t, "neutral", Bucket(0.05))
	assert.Equal(t, "neutral", Bucket(-0.1))
	assert.Equal(t, "neutral", Bucket(0.1))
}
