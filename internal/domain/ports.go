package domain

import (
	"context"
	"time"
)

// Upstream is the hotel-finder site: a search page that hands out a session,
// and a data endpoint that answers bounding-box queries for that session.
type Upstream interface {
	AcquireSession(ctx context.Context, term string) (Credentials, error)
	FetchHotels(ctx context.Context, bboxJSON string, creds Credentials) (any, error)
}

// MatchMissRepository keeps a log of unmatched venue queries for operators.
type MatchMissRepository interface {
	LogMatchMiss(ctx context.Context, m MatchMiss) error
	RecentMatchMisses(ctx context.Context, limit int) ([]MatchMissView, error)
}

type MatchMissView struct {
	MatchMiss
	SeenAt time.Time `json:"seenAt"`
	Count  int       `json:"count"`
}
