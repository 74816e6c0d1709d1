package match

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"bike_hotels/internal/domain"
	"bike_hotels/internal/geo"
)

// FuzzyMatcher compares whole names by Levenshtein similarity and ignores
// the search origin.
type FuzzyMatcher struct {
	threshold float64
}

func NewFuzzyMatcher(threshold float64) *FuzzyMatcher {
	return &FuzzyMatcher{threshold: threshold}
}

func (m *FuzzyMatcher) Name() string { return StrategyFuzzy }

func (m *FuzzyMatcher) Match(hotels []domain.ClientHotel, freeText string, _ *geo.Point) domain.MatchResult {
	query := Normalize(freeText)
	if query == "" || len(hotels) == 0 {
		return domain.MatchResult{}
	}

	best, bestScore := -1, 0.0
	for i := range hotels {
		if s := Similarity(query, Normalize(hotels[i].Name)); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < m.threshold {
		return domain.MatchResult{}
	}
	h := hotels[best]
	return domain.MatchResult{Hotel: &h, Confidence: bestScore}
}

// Similarity is 1 - editDistance/maxLen over runes, in [0,1].
func Similarity(a, b string) float64 {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	n := max(la, lb)
	if n == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(n)
}
