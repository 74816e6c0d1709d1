package app

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"bike_hotels/internal/domain"
	"bike_hotels/internal/geo"
)

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if s, ok := lookupAny(m, path).(string); ok {
		return s
	}
	return ""
}

// optStr keeps the upstream's null vs string distinction.
func optStr(m map[string]any, path string) *string {
	if s, ok := lookupAny(m, path).(string); ok {
		return &s
	}
	return nil
}

// getFloatFlexible: number from several paths (float64/int/decimal string).
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// firstInt64Flexible: int64 from several paths (float64/int/string).
func firstInt64Flexible(m map[string]any, paths ...string) *int64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int64(v)
			return &x
		case int:
			x := int64(v)
			return &x
		case int64:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &n
			}
		}
	}
	return nil
}

// flagSet is true only for a literal 1 (number or "1").
func flagSet(m map[string]any, path string) bool {
	v := firstInt64Flexible(m, path)
	return v != nil && *v == 1
}

// enabledFeatures returns names of bike_features entries whose has is true,
// in upstream order. Never nil.
func enabledFeatures(m map[string]any) []string {
	out := []string{}
	raw, ok := lookupAny(m, "bike_features").([]any)
	if !ok {
		return out
	}
	for _, it := range raw {
		f, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if has, _ := f["has"].(bool); !has {
			continue
		}
		if name, ok := f["name"].(string); ok {
			out = append(out, name)
		}
	}
	return out
}

/********** hotel mapper **********/

// Transform turns the raw upstream payload into client hotels. Anything
// other than a JSON array yields an empty slice. Records without usable
// coordinates are dropped; the rest of the batch is kept.
func Transform(raw any) []domain.ClientHotel {
	arr, ok := raw.([]any)
	if !ok {
		log.Warn().Str("context", "Transform").Str("type", typeName(raw)).
			Msg("hotel payload is not an array; ignoring")
		return []domain.ClientHotel{}
	}

	out := make([]domain.ClientHotel, 0, len(arr))
	for i, it := range arr {
		p, ok := it.(map[string]any)
		if !ok {
			log.Warn().Str("context", "Transform").Int("index", i).Msg("hotel record is not an object; skipping")
			continue
		}
		h, ok := mapHotel(p)
		if !ok {
			log.Warn().Str("context", "Transform").Int("index", i).
				Str("name", lookupStr(p, "name")).
				Interface("latitude", lookupAny(p, "latitude")).
				Interface("longitude", lookupAny(p, "longitude")).
				Msg("hotel record has unusable coordinates; skipping")
			continue
		}
		out = append(out, h)
	}
	return out
}

func mapHotel(p map[string]any) (domain.ClientHotel, bool) {
	lat := getFloatFlexible(p, "latitude")
	lng := getFloatFlexible(p, "longitude")
	if lat == nil || lng == nil || !(geo.Point{Lat: *lat, Lng: *lng}).Valid() {
		return domain.ClientHotel{}, false
	}

	var id int64
	if v := firstInt64Flexible(p, "id"); v != nil {
		id = *v
	}
	var bikes int
	if v := firstInt64Flexible(p, "total_bikes"); v != nil {
		bikes = int(*v)
	}
	brand := optStr(p, "brand_name")

	h := domain.ClientHotel{
		ID:             id,
		PlaceID:        lookupStr(p, "google_place_id"),
		Name:           lookupStr(p, "name"),
		Lat:            *lat,
		Lng:            *lng,
		DistanceM:      getFloatFlexible(p, "distance"),
		LoyaltyProgram: LoyaltyProgram(brand),
		TotalBikes:     bikes,
		InGym:          flagSet(p, "has_bikes_fitness_center"),
		InRoom:         flagSet(p, "has_bikes_rooms"),
		BikeFeatures:   enabledFeatures(p),
		URL:            optStr(p, "website"),
		Tel:            optStr(p, "phone"),
	}
	if brand != nil {
		h.Brand = *brand
	}
	return h, true
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	}
	return "unknown"
}
