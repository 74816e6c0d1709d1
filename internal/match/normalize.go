package match

import (
	"strings"
	"unicode"
)

// stopWords are dropped before comparing names: articles, joiners and the
// generic hospitality words every other hotel name carries.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {},
	"and": {}, "by": {}, "at": {}, "of": {},
	"hotel": {}, "hotels": {}, "inn": {}, "suite": {}, "suites": {},
	"resort": {}, "spa": {},
}

// Normalize lowercases s, turns punctuation into spaces and collapses runs of
// whitespace. Letters of any script and digits survive.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case r == '\'' || r == '’':
			// "Hilton's" -> "hiltons"
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens is Normalize split into words with stop words removed. Order is
// kept and duplicates dropped.
func Tokens(s string) []string {
	fields := strings.Fields(Normalize(s))
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Coverage is the fraction of query tokens present in the candidate's
// tokens, in [0,1]. An empty query covers nothing.
func Coverage(query, candidate []string) float64 {
	if len(query) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(candidate))
	for _, t := range candidate {
		set[t] = struct{}{}
	}
	hit := 0
	for _, t := range query {
		if _, ok := set[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(query))
}
