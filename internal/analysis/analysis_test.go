package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindMention(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		entity       string
		wantFound    bool
		wantPosition int
		wantCount    int
	}{
		{
			name:         "Case-insensitive match",
			content:      "Many people recommend ACME Widgets for this.",
			entity:       "Acme Widgets",
			wantFound:    true,
			wantPosition: 22,
			wantCount:    1,
		},
		{
			name:         "Repeated mention counts all occurrences",
			content:      "acme is great. Acme ships fast. ACME wins.",
			entity:       "acme",
			wantFound:    true,
			wantPosition: 0,
			wantCount:    3,
		},
		{
			name:      "No match",
			content:   "Widget World dominates the market",
			entity:    "Acme",
			wantFound: false,
		},
		{
			name:      "Empty entity never matches",
			content:   "anything",
			entity:    "",
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mention, found := FindMention(tt.content, tt.entity)
			assert.Equal(t, tt.wantFound, found)
			if found {
				assert.Equal(t, tt.wantPosition, mention.Position)
				assert.Equal(t, tt.wantCount, mention.Count)
			} else {
				assert.Equal(t, -1, mention.Position)
			}
		})
	}
}

func TestBrandRank(t *testing.T) {
	t.Run("Brand ranks second between two competitors", func(t *testing.T) {
		// brand at 5, competitors at 2 and 8: sorted order is 2, 5, 8
		rank, ok := BrandRank(5, []int{2, 8})
		assert.True(t, ok)
		assert.Equal(t, 2, rank)
	})

	t.Run("Brand first", func(t *testing.T) {
		rank, ok := BrandRank(1, []int{10, 20})
		assert.True(t, ok)
		assert.Equal(t, 1, rank)
	})

	t.Run("No competitors means no ranking signal", func(t *testing.T) {
		_, ok := BrandRank(5, nil)
		assert.False(t, ok)
	})

	t.Run("Brand not mentioned", func(t *testing.T) {
		_, ok := BrandRank(-1, []int{2})
		assert.False(t, ok)
	})
}

func TestPortrayal(t *testing.T) {
	assert.Equal(t, PortrayalProminent, Portrayal(EntityMention{Count: 3}))
	assert.Equal(t, PortrayalMentioned, Portrayal(EntityMention{Count: 1}))
}
