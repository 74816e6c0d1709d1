package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"bike_hotels/internal/app"
	"bike_hotels/internal/domain"
)

type Handlers struct {
	S *app.SearchService
	v *validator.Validate
}

func NewHandlers(s *app.SearchService) *Handlers {
	return &Handlers{S: s, v: validator.New()}
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/hotels", h.searchHotels)
	s.mux.Get("/v1/booking/check", h.bookingCheck)
	s.mux.Post("/v1/admin/cache/invalidate", h.invalidate)
	s.mux.Get("/v1/admin/match-misses", h.matchMisses)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses. Upstream failures
// keep distinct titles so operators can tell markup changes from outages.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		writeProblem(w, http.StatusBadRequest, "Invalid Query", err.Error())
		return
	case errors.Is(err, domain.ErrNoHotels):
		writeProblem(w, http.StatusNotFound, "Not Found", "no hotel data found for this area")
		return
	}

	l := log.Error().Err(err).Str("path", r.URL.Path)
	switch {
	case errors.Is(err, domain.ErrCSRFTokenNotFound):
		l.Str("kind", "csrf_not_found").Msg("upstream markup changed")
		writeProblem(w, http.StatusBadGateway, "Upstream Token Missing", "could not retrieve hotel data")
	case errors.Is(err, domain.ErrSessionAcquisition):
		l.Str("kind", "session").Msg("upstream session failed")
		writeProblem(w, http.StatusBadGateway, "Upstream Session Failed", "could not retrieve hotel data")
	case errors.Is(err, domain.ErrUpstreamFetch):
		l.Str("kind", "fetch").Msg("upstream fetch failed")
		writeProblem(w, http.StatusBadGateway, "Upstream Fetch Failed", "could not retrieve hotel data")
	case errors.Is(err, context.DeadlineExceeded):
		l.Msg("request timed out")
		writeProblem(w, http.StatusGatewayTimeout, "Timeout", "could not retrieve hotel data in time")
	default:
		l.Msg("unhandled error")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// ---- /v1/hotels ----

type hotelsQuery struct {
	Lat         *float64 `validate:"required,latitude"`
	Lng         *float64 `validate:"required,longitude"`
	SearchTerm  string   `validate:"required,max=200"`
	FeatureType string   `validate:"omitempty,oneof=country region postcode district place locality neighborhood address poi"`
	FreeText    string   `validate:"max=300"`
	CityBBox    string   `validate:"omitempty,max=2048"`
	BBox        *[4]float64
	Loyalty     []string `validate:"max=20,dive,required,max=100"`
	InRoom      bool
	InGym       bool
	Rank        bool
}

func parseHotelsQuery(q url.Values) (hotelsQuery, error) {
	var out hotelsQuery
	var err error
	if out.Lat, err = optFloat(q, "lat"); err != nil {
		return out, err
	}
	if out.Lng, err = optFloat(q, "lng"); err != nil {
		return out, err
	}
	out.SearchTerm = strings.TrimSpace(q.Get("searchTerm"))
	out.FeatureType = q.Get("featureType")
	out.FreeText = strings.TrimSpace(q.Get("freeText"))
	out.CityBBox = q.Get("cityBbox")
	if s := q.Get("bbox"); s != "" {
		if out.BBox, err = parseBBoxParam(s); err != nil {
			return out, err
		}
	}
	for _, v := range q["loyalty"] {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out.Loyalty = append(out.Loyalty, p)
			}
		}
	}
	for name, dst := range map[string]*bool{"inRoom": &out.InRoom, "inGym": &out.InGym, "rank": &out.Rank} {
		if s := q.Get(name); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return out, fmt.Errorf("%s must be a boolean", name)
			}
			*dst = b
		}
	}
	return out, nil
}

func optFloat(q url.Values, key string) (*float64, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &f, nil
}

// parseBBoxParam reads "minLng,minLat,maxLng,maxLat".
func parseBBoxParam(s string) (*[4]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, errors.New("bbox must be minLng,minLat,maxLng,maxLat")
	}
	var b [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.New("bbox must be minLng,minLat,maxLng,maxLat")
		}
		b[i] = f
	}
	return &b, nil
}

func (h *Handlers) validationDetail(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
	}
	return err.Error()
}

func (h *Handlers) searchHotels(w http.ResponseWriter, r *http.Request) {
	hq, err := parseHotelsQuery(r.URL.Query())
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Query", err.Error())
		return
	}
	if err := h.v.Struct(hq); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Query", h.validationDetail(err))
		return
	}

	resp, err := h.S.Search(r.Context(), app.SearchCriteria{
		Lat:          *hq.Lat,
		Lng:          *hq.Lng,
		SearchTerm:   hq.SearchTerm,
		FeatureType:  hq.FeatureType,
		FreeText:     hq.FreeText,
		CityBBox:     hq.CityBBox,
		ExternalBBox: hq.BBox,
		Filters:      app.Filters{Loyalty: hq.Loyalty, InRoom: hq.InRoom, InGym: hq.InGym, Rank: hq.Rank},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	etag, body := calcETagAndBody(resp)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write searchHotels body")
	}
}

// ---- /v1/booking/check ----

type bookingQuery struct {
	Lat        *float64 `validate:"required,latitude"`
	Lng        *float64 `validate:"required,longitude"`
	SearchTerm string   `validate:"required,max=200"`
	FreeText   string   `validate:"required,max=300"`
}

func (h *Handlers) bookingCheck(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var bq bookingQuery
	var err error
	if bq.Lat, err = optFloat(q, "lat"); err == nil {
		bq.Lng, err = optFloat(q, "lng")
	}
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Query", err.Error())
		return
	}
	bq.SearchTerm = strings.TrimSpace(q.Get("searchTerm"))
	bq.FreeText = strings.TrimSpace(q.Get("freeText"))
	if err := h.v.Struct(bq); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Query", h.validationDetail(err))
		return
	}

	res, err := h.S.BookingCheck(r.Context(), *bq.Lat, *bq.Lng, bq.SearchTerm, bq.FreeText)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---- admin ----

func (h *Handlers) invalidate(w http.ResponseWriter, r *http.Request) {
	var req app.InvalidateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "expected {\"all\":true} or {\"bbox\":\"...\"}")
		return
	}
	n, err := h.S.Invalidate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (h *Handlers) matchMisses(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 500 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 500")
			return
		}
		limit = l
	}
	out, err := h.S.RecentMatchMisses(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}
