// Package peloton talks to the hotel finder site: a search page that hands
// out a CSRF token and cookies, and a data endpoint that answers bbox queries
// for that session.
package peloton

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"bike_hotels/internal/adapters/observability"
	"bike_hotels/internal/domain"
)

const (
	DefaultBaseURL   = "https://hotelfinder.onepeloton.com/en"
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36"

	service      = "peloton"
	searchPath   = "/search"
	dataPath     = "/hotel-map-data"
	maxBodyBytes = 16 << 20
)

var csrfPattern = regexp.MustCompile(`window\._crsf\s*=\s*'([^']+)'`)

type Client struct {
	base   string
	origin string
	ua     string
	hc     *http.Client
	rl     *rate.Limiter
}

type Options struct {
	BaseURL   string
	UserAgent string
	RPS       int
	Timeout   time.Duration
	HTTP      *http.Client // optional, tests inject httptest clients
}

func New(o Options) (*Client, error) {
	base := strings.TrimRight(o.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream base url %q", o.BaseURL)
	}
	ua := o.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	rps := o.RPS
	if rps <= 0 {
		rps = 5
	}
	hc := o.HTTP
	if hc == nil {
		timeout := o.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:   base,
		origin: u.Scheme + "://" + u.Host,
		ua:     ua,
		hc:     hc,
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// AcquireSession loads the search page for term and returns the token and
// cookies needed by exactly one FetchHotels call. No retries happen here.
func (c *Client) AcquireSession(ctx context.Context, term string) (domain.Credentials, error) {
	searchURL := c.base + searchPath + "?q=" + url.QueryEscape(term)
	fail := func(status int, err error) (domain.Credentials, error) {
		return domain.Credentials{}, &domain.UpstreamError{Kind: domain.ErrSessionAcquisition, Op: "search page", Status: status, Err: err}
	}

	if err := c.rl.Wait(ctx); err != nil {
		return fail(0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Cache-Control", "no-store")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(service, searchPath, 0, time.Since(start))
		return fail(0, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal(service, searchPath, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Error().Int("status", resp.StatusCode).Str("url", searchURL).
			Str("body", strings.TrimSpace(string(b))).Msg("search page request failed")
		return domain.Credentials{}, &domain.UpstreamError{
			Kind: domain.ErrSessionAcquisition, Op: "search page", Status: resp.StatusCode, RetryAfter: retryAfter(resp),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fail(resp.StatusCode, err)
	}

	token, ok := ExtractCSRFToken(string(body))
	if !ok {
		log.Error().Str("context", "csrf").Str("url", searchURL).Msg("csrf token not found on search page; markup may have changed")
		return domain.Credentials{}, &domain.UpstreamError{Kind: domain.ErrCSRFTokenNotFound, Op: "search page", Status: resp.StatusCode}
	}

	return domain.Credentials{
		Token:   token,
		Cookie:  JoinCookies(resp.Header.Values("Set-Cookie")),
		Referer: searchURL,
	}, nil
}

// FetchHotels posts bboxJSON verbatim and returns the decoded payload. A
// valid JSON body that is not an array is returned as-is.
func (c *Client) FetchHotels(ctx context.Context, bboxJSON string, creds domain.Credentials) (any, error) {
	fail := func(status int, err error) (any, error) {
		return nil, &domain.UpstreamError{Kind: domain.ErrUpstreamFetch, Op: "hotel map data", Status: status, Err: err}
	}

	if err := c.rl.Wait(ctx); err != nil {
		return fail(0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+dataPath, bytes.NewBufferString(bboxJSON))
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Referer", creds.Referer)
	req.Header.Set("Origin", c.origin)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-CSRF-TOKEN", creds.Token)
	if creds.Cookie != "" {
		req.Header.Set("Cookie", creds.Cookie)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(service, dataPath, 0, time.Since(start))
		return fail(0, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal(service, dataPath, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Error().Int("status", resp.StatusCode).Str("body", strings.TrimSpace(string(b))).Msg("hotel map data request failed")
		return nil, &domain.UpstreamError{
			Kind: domain.ErrUpstreamFetch, Op: "hotel map data", Status: resp.StatusCode, RetryAfter: retryAfter(resp),
		}
	}

	var out any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode: %w", err))
	}
	return out, nil
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	// seconds form
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	// HTTP-date form
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// ExtractCSRFToken finds the token assigned in an inline script. Script
// elements are searched first; the raw document is the fallback, since the
// assignment is not always inside a parseable <script>.
func ExtractCSRFToken(html string) (string, bool) {
	if html == "" {
		return "", false
	}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		var token string
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m := csrfPattern.FindStringSubmatch(s.Text()); m != nil {
				token = m[1]
				return false
			}
			return true
		})
		if token != "" {
			return token, true
		}
	}
	if m := csrfPattern.FindStringSubmatch(html); m != nil {
		return m[1], true
	}
	return "", false
}

// JoinCookies reduces Set-Cookie values to name=value pairs joined by "; ".
func JoinCookies(setCookies []string) string {
	pairs := make([]string, 0, len(setCookies))
	for _, sc := range setCookies {
		nv, _, _ := strings.Cut(sc, ";")
		if nv = strings.TrimSpace(nv); nv != "" {
			pairs = append(pairs, nv)
		}
	}
	return strings.Join(pairs, "; ")
}
