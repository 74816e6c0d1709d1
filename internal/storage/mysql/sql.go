package mysql

// A repeated miss (same text, term, box and strategy) bumps hits instead of
// adding a row.
const upsertMatchMissSQL = `
INSERT INTO match_misses
  (query_hash, free_text, search_term, lat, lng, bbox, candidates, strategy)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  hits       = hits + 1,
  candidates = VALUES(candidates),
  seen_at    = CURRENT_TIMESTAMP
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const recentMatchMissesSQL = `
SELECT free_text, search_term, lat, lng, bbox, candidates, strategy, hits, seen_at
FROM match_misses
ORDER BY seen_at DESC, id DESC
LIMIT ?
`
