package domain

// ClientHotel is the normalized hotel record served to clients.
type ClientHotel struct {
	ID             int64    `json:"id"`
	PlaceID        string   `json:"place_id"`
	Name           string   `json:"name"`
	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	DistanceM      *float64 `json:"distance_m"`
	Brand          string   `json:"brand"`
	LoyaltyProgram string   `json:"loyaltyProgram"`
	TotalBikes     int      `json:"total_bikes"`
	InGym          bool     `json:"in_gym"`
	InRoom         bool     `json:"in_room"`
	BikeFeatures   []string `json:"bike_features"`
	URL            *string  `json:"url"`
	Tel            *string  `json:"tel"`
}

// HasBikes reports whether the hotel lists at least one bike.
func (h ClientHotel) HasBikes() bool { return h.TotalBikes > 0 }

// Credentials is the short-lived session bundle produced by the search-page
// handshake and consumed by exactly one data request.
type Credentials struct {
	Token   string
	Cookie  string // "a=1; b=2", empty when the upstream set none
	Referer string // search page URL the token was issued for
}

// MatchResult is the outcome of a venue-name lookup. A nil Hotel with zero
// confidence means no confident match.
type MatchResult struct {
	Hotel      *ClientHotel
	Confidence float64
}

// SearchResponse is the unified answer of a hotel search.
type SearchResponse struct {
	Hotels          []ClientHotel `json:"hotels"`
	CityCenter      [2]float64    `json:"cityCenter"` // [lng, lat]
	CityBBox        string        `json:"cityBbox"`
	MatchedHotel    *ClientHotel  `json:"matchedHotel"`
	MatchConfidence *float64      `json:"matchConfidence"`
}

// BookingCheck answers "does the hotel I booked have bikes?".
type BookingCheck struct {
	MatchConfidence *float64     `json:"matchConfidence"`
	Hotel           *ClientHotel `json:"hotel"`
	HasBikes        bool         `json:"hasBikes"`
	Message         string       `json:"message,omitempty"`
}

// MatchMiss records a free-text query that found no confident hotel.
type MatchMiss struct {
	FreeText   string  `json:"freeText"`
	SearchTerm string  `json:"searchTerm"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	BBox       string  `json:"bbox"`
	Candidates int     `json:"candidates"`
	Strategy   string  `json:"strategy"`
}
