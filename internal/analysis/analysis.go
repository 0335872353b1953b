package analysis

import (
	"sort"
	"strings"
)

// EntityMention describes where and how often one entity appears in an
// answer. Position is the byte offset of the first case-insensitive match.
type EntityMention struct {
	Name     string
	Count    int
	Position int
}

// PortrayalType buckets how prominently an entity features in an answer.
const (
	PortrayalProminent = "prominent"
	PortrayalMentioned = "mentioned"
)

// FindMention locates an entity in content. Matching is a
// case-insensitive substring search; position is the first match offset.
func FindMention(content, name string) (EntityMention, bool) {
	if name == "" || content == "" {
		return EntityMention{Name: name, Position: -1}, false
	}

	lowerContent := strings.ToLower(content)
	lowerName := strings.ToLower(name)

	first := strings.Index(lowerContent, lowerName)
	if first < 0 {
		return EntityMention{Name: name, Position: -1}, false
	}

	return EntityMention{
		Name:     name,
		Count:    strings.Count(lowerContent, lowerName),
		Position: first,
	}, true
}

// Portrayal classifies a mention by repetition. Three or more
// occurrences reads as the answer being substantially about the entity.
func Portrayal(m EntityMention) string {
	if m.Count >= 3 {
		return PortrayalProminent
	}
	return PortrayalMentioned
}

// BrandRank computes the brand's 1-based rank among all mentioned
// entities, ordered by first-mention position ascending. It returns
// false when no competitor was found: a prompt where the brand stands
// alone carries no ranking signal and must be excluded from averages.
func BrandRank(brandPosition int, competitorPositions []int) (int, bool) {
	if brandPosition < 0 || len(competitorPositions) == 0 {
		return 0, false
	}

	positions := make([]int, 0, len(competitorPositions)+1)
	positions = append(positions, brandPosition)
	positions = append(positions, competitorPositions...)
	sort.Ints(positions)

	for i, p := range positions {
		if p == brandPosition {
			return i + 1, true
		}
	}
	return 0, false
}
