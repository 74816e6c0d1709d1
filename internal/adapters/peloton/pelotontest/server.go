// Package pelotontest runs an in-process stand-in for the hotel finder site.
package pelotontest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	Token  = "tok-123"
	Cookie = "session=abc"
)

// Server serves /en/search and /en/hotel-map-data. Payload is returned
// verbatim for every valid data request.
type Server struct {
	*httptest.Server

	Payload any

	// SearchStatus, when non-zero, replaces the search page response.
	SearchStatus int
	// DataStatus, when non-zero, replaces the data response.
	DataStatus int
	// OmitToken serves a search page without the token assignment.
	OmitToken bool

	Handshakes atomic.Int32
	Fetches    atomic.Int32

	mu     sync.Mutex
	bodies []string
}

func New(payload any) *Server {
	s := &Server{Payload: payload}
	mux := http.NewServeMux()
	mux.HandleFunc("/en/search", s.search)
	mux.HandleFunc("/en/hotel-map-data", s.data)
	s.Server = httptest.NewServer(mux)
	return s
}

// BaseURL is the value to configure as the upstream base.
func (s *Server) BaseURL() string { return s.URL + "/en" }

// Bodies returns the POST bodies received so far.
func (s *Server) Bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies...)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	s.Handshakes.Add(1)
	if r.Method != http.MethodGet || r.Header.Get("User-Agent") == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if s.SearchStatus != 0 {
		w.WriteHeader(s.SearchStatus)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/", HttpOnly: true})
	w.Header().Set("Content-Type", "text/html")
	if s.OmitToken {
		_, _ = io.WriteString(w, "<html><body><p>maintenance</p></body></html>")
		return
	}
	_, _ = io.WriteString(w, "<html><head><script>window._crsf = '"+Token+"';</script></head><body></body></html>")
}

func (s *Server) data(w http.ResponseWriter, r *http.Request) {
	s.Fetches.Add(1)
	if r.Method != http.MethodPost ||
		r.Header.Get("X-CSRF-TOKEN") != Token ||
		r.Header.Get("Cookie") != Cookie ||
		!strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	b, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.bodies = append(s.bodies, string(b))
	s.mu.Unlock()

	if s.DataStatus != 0 {
		w.WriteHeader(s.DataStatus)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Payload)
}
