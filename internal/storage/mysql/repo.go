package mysql

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"

	"bike_hotels/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Open connects with the driver and verifies the connection. The DSN is
// normalized first; seen_at is scanned into time.Time.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	dsn, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NormalizeDSN forces parseTime so DATETIME columns decode into time.Time
// whatever the operator put in MYSQL_DSN.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (r *Repo) LogMatchMiss(ctx context.Context, m domain.MatchMiss) error {
	_, err := r.db.ExecContext(ctx, upsertMatchMissSQL,
		missHash(m),
		truncate(m.FreeText, 512),
		truncate(m.SearchTerm, 255),
		m.Lat,
		m.Lng,
		m.BBox,
		m.Candidates,
		m.Strategy,
	)
	return err
}

func (r *Repo) RecentMatchMisses(ctx context.Context, limit int) ([]domain.MatchMissView, error) {
	rows, err := r.db.QueryContext(ctx, recentMatchMissesSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.MatchMissView, 0, limit)
	for rows.Next() {
		var v domain.MatchMissView
		if err := rows.Scan(
			&v.FreeText, &v.SearchTerm, &v.Lat, &v.Lng, &v.BBox,
			&v.Candidates, &v.Strategy, &v.Count, &v.SeenAt,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// missHash identifies a miss case-insensitively on its text.
func missHash(m domain.MatchMiss) string {
	sig := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(m.FreeText)),
		strings.ToLower(strings.TrimSpace(m.SearchTerm)),
		m.BBox,
		m.Strategy,
	}, "|")
	sum := sha1.Sum([]byte(sig))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
