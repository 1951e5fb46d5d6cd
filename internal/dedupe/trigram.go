package dedupe

import "strings"

// trigramSet extracts the set of 3-character shingles from s, after
// lowercasing and collapsing runs of whitespace. Matches the postgres
// pg_trgm convention of padding word boundaries with two leading spaces and
// one trailing space, so in-memory scores track the ones the search index
// produces.
func trigramSet(s string) map[string]struct{} {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return map[string]struct{}{}
	}
	out := make(map[string]struct{})
	for _, word := range strings.Fields(s) {
		padded := "  " + word + " "
		for i := 0; i+3 <= len(padded); i++ {
			out[padded[i:i+3]] = struct{}{}
		}
	}
	return out
}

// TrigramSimilarity returns the Jaccard similarity of the two strings'
// trigram sets, in [0, 1]. Two empty strings score 0, not 1: an empty
// keyword blob must never match anything.
func TrigramSimilarity(a, b string) float64 {
	ta := trigramSet(a)
	tb := trigramSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if len(tb) < len(ta) {
		ta, tb = tb, ta
	}
	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
