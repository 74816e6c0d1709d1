//go:build integration || !unit

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	server "bike_hotels/internal/adapters/http_server"
	"bike_hotels/internal/adapters/peloton/pelotontest"
	"bike_hotels/internal/bootstrap"
	"bike_hotels/internal/domain"
	"bike_hotels/internal/shared"
)

// ---------- helpers ----------

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// startMySQL returns a DSN for a migrated throwaway database.
func startMySQL(t *testing.T) string {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=bike_hotels"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/bike_hotels?parseTime=true&multiStatements=true&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	defer db.Close()
	applyMigrations(t, db)
	return dsn
}

func getJSON(t *testing.T, u string, out any) int {
	t.Helper()
	res, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer res.Body.Close()
	if out != nil && res.StatusCode == http.StatusOK {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", u, err)
		}
	}
	return res.StatusCode
}

// ---------- the test ----------

// Full stack: fake hotel finder, redis cache, mysql miss log and the real router.
func TestHTTP_EndToEnd_SearchCacheAndMisses(t *testing.T) {
	dsn := startMySQL(t)
	mr := miniredis.RunT(t)
	up := pelotontest.New([]any{
		map[string]any{
			"id": 7.0, "name": "Club Quarters Hotel Central Loop", "brand_name": "Club Quarters",
			"latitude": "41.879266", "longitude": "-87.6311861",
			"has_bikes_fitness_center": 1.0, "has_bikes_rooms": 0.0, "total_bikes": 2.0,
		},
		map[string]any{
			"id": 8.0, "name": "Hilton Chicago", "brand_name": "Hilton",
			"latitude": "41.8723", "longitude": "-87.6244",
			"has_bikes_fitness_center": 0.0, "has_bikes_rooms": 1.0, "total_bikes": 0.0,
		},
	})
	t.Cleanup(up.Close)

	cfg := shared.Config{
		AppEnv:           "test",
		MySQLDSN:         dsn,
		RedisAddr:        mr.Addr(),
		UpstreamBase:     up.BaseURL(),
		UpstreamRPS:      50,
		UpstreamTimeout:  2 * time.Second,
		UpstreamAttempts: 2,
		CacheTTL:         time.Hour,
		CacheMaxEntries:  16,
		MatchStrategy:    "coverage",
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	deps, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() { _ = deps.Close() })

	srv := server.New(5 * time.Second)
	srv.MountHandlers(server.NewHandlers(deps.Service))
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	q := url.Values{
		"lat": {"41.878"}, "lng": {"-87.629"}, "searchTerm": {"Chicago, IL"},
		"featureType": {"place"}, "freeText": {"Club Quarters Central Loop"},
	}
	var first domain.SearchResponse
	if code := getJSON(t, ts.URL+"/v1/hotels?"+q.Encode(), &first); code != http.StatusOK {
		t.Fatalf("search status %d", code)
	}
	if first.MatchedHotel == nil || first.MatchedHotel.ID != 7 || first.Hotels[0].ID != 7 {
		t.Fatalf("expected Club Quarters matched and first, got %+v", first)
	}
	if len(mr.Keys()) == 0 {
		t.Fatalf("expected the area to be cached in redis")
	}

	// an unknown venue is logged, twice from the same area
	q.Set("freeText", "Grand Budapest")
	for i := 0; i < 2; i++ {
		var resp domain.SearchResponse
		if code := getJSON(t, ts.URL+"/v1/hotels?"+q.Encode(), &resp); code != http.StatusOK {
			t.Fatalf("search status %d", code)
		}
		if resp.MatchedHotel != nil || resp.MatchConfidence == nil || *resp.MatchConfidence != 0 {
			t.Fatalf("expected no match with zero confidence, got %+v", resp)
		}
	}
	if got := up.Handshakes.Load(); got != 1 {
		t.Fatalf("expected 1 upstream handshake, got %d", got)
	}

	var misses struct {
		Items []domain.MatchMissView `json:"items"`
	}
	if code := getJSON(t, ts.URL+"/v1/admin/match-misses?limit=5", &misses); code != http.StatusOK {
		t.Fatalf("misses status %d", code)
	}
	if len(misses.Items) != 1 || misses.Items[0].Count != 2 || misses.Items[0].FreeText != "Grand Budapest" {
		t.Fatalf("unexpected misses: %+v", misses.Items)
	}

	// a booking check in the same area reuses the cache
	var bc domain.BookingCheck
	bq := url.Values{"lat": {"41.878"}, "lng": {"-87.629"}, "searchTerm": {"Chicago, IL"}, "freeText": {"hilton chicago"}}
	if code := getJSON(t, ts.URL+"/v1/booking/check?"+bq.Encode(), &bc); code != http.StatusOK {
		t.Fatalf("booking status %d", code)
	}
	if bc.Hotel == nil || bc.Hotel.ID != 8 || bc.HasBikes {
		t.Fatalf("unexpected booking check: %+v", bc)
	}
	if got := up.Handshakes.Load(); got != 1 {
		t.Fatalf("booking check must be served from cache, handshakes=%d", got)
	}
}
