package app

import (
	"slices"

	"github.com/samber/lo"

	"bike_hotels/internal/domain"
)

// Filters narrows and orders a result list. Loyalty entries are either a
// program from LoyaltyPrograms, "Other", or a raw brand name.
type Filters struct {
	Loyalty []string `json:"loyalty,omitempty"`
	InRoom  bool     `json:"inRoom,omitempty"`
	InGym   bool     `json:"inGym,omitempty"`
	Rank    bool     `json:"rank,omitempty"`
}

func (f Filters) Active() bool {
	return len(f.Loyalty) > 0 || f.InRoom || f.InGym || f.Rank
}

// Rank filters hotels, orders them by in-room bikes, then gym bikes, then
// distance (unknown last), and moves matchedID to the front when present.
// The input slice is not modified.
func Rank(hotels []domain.ClientHotel, f Filters, matchedID *int64) []domain.ClientHotel {
	out := lo.Filter(hotels, func(h domain.ClientHotel, _ int) bool {
		if len(f.Loyalty) > 0 && !lo.SomeBy(f.Loyalty, func(p string) bool { return loyaltyMatches(h, p) }) {
			return false
		}
		if f.InRoom && !h.InRoom {
			return false
		}
		if f.InGym && !h.InGym {
			return false
		}
		return true
	})

	slices.SortStableFunc(out, compareRank)

	if matchedID != nil {
		moveFirst(out, *matchedID)
	}
	return out
}

// moveFirst shifts the hotel with id to index 0 in place, keeping the
// relative order of the rest.
func moveFirst(hotels []domain.ClientHotel, id int64) {
	if _, idx, ok := lo.FindIndexOf(hotels, func(h domain.ClientHotel) bool { return h.ID == id }); ok && idx > 0 {
		m := hotels[idx]
		copy(hotels[1:idx+1], hotels[:idx])
		hotels[0] = m
	}
}

func loyaltyMatches(h domain.ClientHotel, filter string) bool {
	switch {
	case filter == OtherProgram:
		return h.LoyaltyProgram == OtherProgram
	case lo.Contains(LoyaltyPrograms, filter):
		return h.LoyaltyProgram == filter
	default:
		return h.Brand == filter && (h.LoyaltyProgram == OtherProgram || h.LoyaltyProgram == h.Brand)
	}
}

func compareRank(a, b domain.ClientHotel) int {
	if a.InRoom != b.InRoom {
		if a.InRoom {
			return -1
		}
		return 1
	}
	if a.InGym != b.InGym {
		if a.InGym {
			return -1
		}
		return 1
	}
	return compareDistance(a.DistanceM, b.DistanceM)
}

// compareDistance orders ascending with nil last.
func compareDistance(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}
