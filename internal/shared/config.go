package shared

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string // empty disables the match-miss log
	RedisAddr   string // empty selects the in-process cache store
	RedisDB     int
	RedisPass   string

	UpstreamBase      string
	UpstreamUserAgent string
	UpstreamRPS       int
	UpstreamTimeout   time.Duration
	UpstreamAttempts  int

	CacheTTL        time.Duration
	CacheMaxEntries int
	MatchStrategy   string

	WarmWorkers int
	WarmCities  []City
}

// City is a warmer target.
type City struct {
	Name     string
	Lat, Lng float64
}

const defaultWarmCities = "Chicago, IL:41.878:-87.629;New York, NY:40.7128:-74.006;San Francisco, CA:37.7749:-122.4194"

func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "prod")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9100")
	v.SetDefault("MYSQL_DSN", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("UPSTREAM_BASE_URL", "https://hotelfinder.onepeloton.com/en")
	v.SetDefault("UPSTREAM_USER_AGENT", "")
	v.SetDefault("UPSTREAM_RPS", 5)
	v.SetDefault("UPSTREAM_TIMEOUT_SECONDS", 20)
	v.SetDefault("UPSTREAM_ATTEMPTS", 3)
	v.SetDefault("CACHE_TTL_SECONDS", 3600)
	v.SetDefault("CACHE_MAX_ENTRIES", 1024)
	v.SetDefault("MATCH_STRATEGY", "coverage")
	v.SetDefault("WARM_WORKERS", 4)
	v.SetDefault("WARM_CITIES", defaultWarmCities)

	c := Config{
		AppEnv:            v.GetString("APP_ENV"),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		MetricsAddr:       v.GetString("METRICS_ADDR"),
		MySQLDSN:          v.GetString("MYSQL_DSN"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPass:         v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		UpstreamBase:      v.GetString("UPSTREAM_BASE_URL"),
		UpstreamUserAgent: v.GetString("UPSTREAM_USER_AGENT"),
		UpstreamRPS:       v.GetInt("UPSTREAM_RPS"),
		UpstreamTimeout:   time.Duration(v.GetInt("UPSTREAM_TIMEOUT_SECONDS")) * time.Second,
		UpstreamAttempts:  v.GetInt("UPSTREAM_ATTEMPTS"),
		CacheTTL:          time.Duration(v.GetInt("CACHE_TTL_SECONDS")) * time.Second,
		CacheMaxEntries:   v.GetInt("CACHE_MAX_ENTRIES"),
		MatchStrategy:     strings.ToLower(v.GetString("MATCH_STRATEGY")),
		WarmWorkers:       v.GetInt("WARM_WORKERS"),
	}

	cities, err := ParseCities(v.GetString("WARM_CITIES"))
	if err != nil {
		log.Warn().Err(err).Msg("WARM_CITIES is invalid; using defaults")
		cities, _ = ParseCities(defaultWarmCities)
	}
	c.WarmCities = cities

	if c.MatchStrategy != "coverage" && c.MatchStrategy != "fuzzy" {
		log.Warn().Str("strategy", c.MatchStrategy).Msg("unknown MATCH_STRATEGY; using coverage")
		c.MatchStrategy = "coverage"
	}
	if c.RedisAddr == "" {
		log.Info().Msg("REDIS_ADDR is empty; using in-process cache")
	}
	return c
}

// ParseCities reads "name:lat:lng" entries separated by ";". The name may
// itself contain colons; the last two fields are the coordinates.
func ParseCities(s string) ([]City, error) {
	var out []City
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) < 3 {
			return nil, fmt.Errorf("city %q: want name:lat:lng", part)
		}
		n := len(fields)
		lat, err := strconv.ParseFloat(strings.TrimSpace(fields[n-2]), 64)
		if err != nil {
			return nil, fmt.Errorf("city %q: lat: %w", part, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(fields[n-1]), 64)
		if err != nil {
			return nil, fmt.Errorf("city %q: lng: %w", part, err)
		}
		name := strings.TrimSpace(strings.Join(fields[:n-2], ":"))
		if name == "" {
			return nil, fmt.Errorf("city %q: empty name", part)
		}
		out = append(out, City{Name: name, Lat: lat, Lng: lng})
	}
	return out, nil
}
