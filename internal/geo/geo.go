// Package geo holds the distance math and the bounding boxes sent to the
// hotel-finder data endpoint. Coordinates are always (lat, lng) here,
// whatever order the caller supplied them in.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	kgeo "github.com/kellydunn/golang-geo"
)

const (
	// EarthRadiusKm matches the radius golang-geo uses for great-circle math.
	EarthRadiusKm = 6371.0

	WideOffset   = 0.1  // ~10 km, city searches
	NarrowOffset = 0.02 // ~2 km, venue searches
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lng) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// DistanceKm is the haversine distance between two points in kilometres.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	return kgeo.NewPoint(lat1, lng1).GreatCircleDistance(kgeo.NewPoint(lat2, lng2))
}

// DistanceMeters is DistanceKm scaled to metres.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	return DistanceKm(lat1, lng1, lat2, lng2) * 1000
}

// BoundingBox is four corners ordered SW, NW, NE, SE plus a center.
// It is a value type; nothing mutates it after construction.
type BoundingBox struct {
	Coords [4]Point
	Center Point
}

// wire is the exact shape the upstream expects:
// {"coords":[[lat,lng],...],"center":{"lat":n,"lng":n}}
type wire struct {
	Coords [][2]float64 `json:"coords"`
	Center Point        `json:"center"`
}

func WideBox(lat, lng float64) BoundingBox   { return symmetricBox(lat, lng, WideOffset) }
func NarrowBox(lat, lng float64) BoundingBox { return symmetricBox(lat, lng, NarrowOffset) }

func symmetricBox(lat, lng, offset float64) BoundingBox {
	return BoundingBox{
		Coords: [4]Point{
			{Lat: lat - offset, Lng: lng - offset}, // SW
			{Lat: lat + offset, Lng: lng - offset}, // NW
			{Lat: lat + offset, Lng: lng + offset}, // NE
			{Lat: lat - offset, Lng: lng + offset}, // SE
		},
		Center: Point{Lat: lat, Lng: lng},
	}
}

// ConvertExternalBox reorders a [minLng, minLat, maxLng, maxLat] box (the
// geocoder's format) into corner order.
func ConvertExternalBox(ext [4]float64, center Point) BoundingBox {
	minLng, minLat, maxLng, maxLat := ext[0], ext[1], ext[2], ext[3]
	return BoundingBox{
		Coords: [4]Point{
			{Lat: minLat, Lng: minLng},
			{Lat: maxLat, Lng: minLng},
			{Lat: maxLat, Lng: maxLng},
			{Lat: minLat, Lng: maxLng},
		},
		Center: center,
	}
}

// Canonical serializes the box to the upstream body. The same string is the
// cache key, so it must be stable for equal boxes.
func (b BoundingBox) Canonical() string {
	w := wire{Coords: make([][2]float64, 0, 4), Center: b.Center}
	for _, c := range b.Coords {
		w.Coords = append(w.Coords, [2]float64{c.Lat, c.Lng})
	}
	out, _ := json.Marshal(w) // plain floats never fail to marshal
	return string(out)
}

func (b BoundingBox) String() string { return b.Canonical() }

func (b BoundingBox) MarshalJSON() ([]byte, error) { return []byte(b.Canonical()), nil }

var ErrBadBox = errors.New("geo: malformed bounding box")

// ParseCanonical decodes a box previously produced by Canonical, e.g. one a
// client echoes back to reuse the cache entry of an earlier search.
func ParseCanonical(s string) (BoundingBox, error) {
	var w wire
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return BoundingBox{}, fmt.Errorf("%w: %v", ErrBadBox, err)
	}
	if len(w.Coords) != 4 {
		return BoundingBox{}, fmt.Errorf("%w: want 4 corners, got %d", ErrBadBox, len(w.Coords))
	}
	var b BoundingBox
	for i, c := range w.Coords {
		b.Coords[i] = Point{Lat: c[0], Lng: c[1]}
		if !b.Coords[i].Valid() {
			return BoundingBox{}, fmt.Errorf("%w: corner %d out of range", ErrBadBox, i)
		}
	}
	b.Center = w.Center
	if !b.Center.Valid() {
		return BoundingBox{}, fmt.Errorf("%w: center out of range", ErrBadBox)
	}
	return b, nil
}

// Bounds returns the min/max latitude and longitude covered by the corners.
func (b BoundingBox) Bounds() (minLat, minLng, maxLat, maxLng float64) {
	sw, nw, ne, se := b.Coords[0], b.Coords[1], b.Coords[2], b.Coords[3]
	minLat = math.Min(sw.Lat, se.Lat)
	maxLat = math.Max(nw.Lat, ne.Lat)
	minLng = math.Min(sw.Lng, nw.Lng)
	maxLng = math.Max(se.Lng, ne.Lng)
	return
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lng float64) bool {
	minLat, minLng, maxLat, maxLng := b.Bounds()
	return lat >= minLat && lat <= maxLat && lng >= minLng && lng <= maxLng
}

// ContainsBox reports whether o lies entirely inside b.
func (b BoundingBox) ContainsBox(o BoundingBox) bool {
	for _, c := range o.Coords {
		if !b.Contains(c.Lat, c.Lng) {
			return false
		}
	}
	return true
}
