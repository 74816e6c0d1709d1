// Package match picks the hotel a free-text venue name refers to.
//
// Two strategies exist. CoverageMatcher first keeps only hotels within a
// short radius of the searched point and then accepts the nearest one whose
// name covers enough of the query's words; it copes with abbreviated names
// and with two branches of one chain in the same city. FuzzyMatcher scores
// whole-name edit distance with no geographic filter; it forgives typos but
// can pick the wrong branch of a chain.
//
// Without an origin CoverageMatcher has no distance order to walk, so it
// returns the highest-coverage hotel at or above the threshold rather than
// the first in input order; ties go to the earlier hotel.
package match

import (
	"sort"

	"bike_hotels/internal/domain"
	"bike_hotels/internal/geo"
)

const (
	StrategyCoverage = "coverage"
	StrategyFuzzy    = "fuzzy"

	DefaultRadiusMeters = 150.0
	DefaultThreshold    = 0.6
)

// Matcher never fails: no match is a zero MatchResult.
type Matcher interface {
	Match(hotels []domain.ClientHotel, freeText string, origin *geo.Point) domain.MatchResult
	Name() string
}

// New returns the matcher for a strategy name, defaulting to coverage.
func New(strategy string) Matcher {
	if strategy == StrategyFuzzy {
		return NewFuzzyMatcher(DefaultThreshold)
	}
	return NewCoverageMatcher(DefaultRadiusMeters, DefaultThreshold)
}

type CoverageMatcher struct {
	radiusM   float64
	threshold float64
}

func NewCoverageMatcher(radiusMeters, threshold float64) *CoverageMatcher {
	return &CoverageMatcher{radiusM: radiusMeters, threshold: threshold}
}

func (m *CoverageMatcher) Name() string { return StrategyCoverage }

type candidate struct {
	idx  int
	dist float64
}

// Match walks hotels within the radius nearest first and accepts the first
// whose coverage reaches the threshold. With a nil origin there is no radius
// filter and the best coverage wins, earliest on ties.
func (m *CoverageMatcher) Match(hotels []domain.ClientHotel, freeText string, origin *geo.Point) domain.MatchResult {
	query := Tokens(freeText)
	if len(query) == 0 || len(hotels) == 0 {
		return domain.MatchResult{}
	}

	if origin == nil {
		// No point to anchor on: best coverage wins, earliest on ties.
		best, bestCov := -1, 0.0
		for i := range hotels {
			if c := Coverage(query, Tokens(hotels[i].Name)); c > bestCov {
				best, bestCov = i, c
			}
		}
		if best < 0 || bestCov < m.threshold {
			return domain.MatchResult{}
		}
		h := hotels[best]
		return domain.MatchResult{Hotel: &h, Confidence: bestCov}
	}

	near := make([]candidate, 0, len(hotels))
	for i, h := range hotels {
		d := geo.DistanceMeters(origin.Lat, origin.Lng, h.Lat, h.Lng)
		if d <= m.radiusM {
			near = append(near, candidate{idx: i, dist: d})
		}
	}
	sort.SliceStable(near, func(i, j int) bool { return near[i].dist < near[j].dist })

	for _, c := range near {
		if cov := Coverage(query, Tokens(hotels[c.idx].Name)); cov >= m.threshold {
			h := hotels[c.idx]
			return domain.MatchResult{Hotel: &h, Confidence: cov}
		}
	}
	return domain.MatchResult{}
}
