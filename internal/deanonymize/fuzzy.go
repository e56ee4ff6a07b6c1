package deanonymize

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// fuzzyMatcher finds approximate occurrences of a pattern. Bitap locates a
// candidate; the exact window is then chosen by edit distance.
type fuzzyMatcher struct {
	maxDistance int
	// placeholders are every placeholder in the vault. A window closer to
	// another placeholder than to the pattern belongs to that placeholder.
	placeholders []string
}

func (m fuzzyMatcher) newDMP(pattern string) *diffmatchpatch.DiffMatchPatch {
	dmp := diffmatchpatch.New()
	dmp.MatchDistance = math.MaxInt32
	dmp.MatchThreshold = math.Min(1, (float64(m.maxDistance)+0.5)/float64(len(pattern)))
	return dmp
}

// limit caps the edit distance at a quarter of the pattern length so short
// values such as faker names only match near-verbatim.
func (m fuzzyMatcher) limit(pattern string) int {
	return min(m.maxDistance, utf8.RuneCountInString(pattern)/4)
}

// replace substitutes every near match of pattern in text with original.
// Windows overlapping an exact occurrence of another placeholder are left
// for that placeholder.
func (m fuzzyMatcher) replace(text, pattern, original string) string {
	if pattern == "" || text == "" {
		return text
	}
	m.maxDistance = m.limit(pattern)
	dmp := m.newDMP(pattern)
	if dmp.MatchMaxBits != 0 && len(pattern) > dmp.MatchMaxBits {
		return strings.ReplaceAll(text, pattern, original)
	}
	others := m.exactOthers(text, pattern)

	var b strings.Builder
	cursor := 0
	for cursor < len(text) {
		rel := dmp.MatchMain(text[cursor:], pattern, 0)
		if rel < 0 {
			break
		}
		at := cursor + rel

		start, end, dist := m.refine(dmp, text, pattern, cursor, at)
		if dist > m.maxDistance {
			_, size := utf8.DecodeRuneInString(text[at:])
			b.WriteString(text[cursor : at+size])
			cursor = at + size
			continue
		}
		if dist > 0 {
			if skip := overlapEnd(others, start, end); skip > 0 {
				b.WriteString(text[cursor:skip])
				cursor = skip
				continue
			}
			if m.closerToOther(dmp, text[start:end], pattern, dist) {
				b.WriteString(text[cursor:end])
				cursor = end
				continue
			}
		}

		b.WriteString(text[cursor:start])
		b.WriteString(original)
		cursor = end
	}
	b.WriteString(text[cursor:])
	return b.String()
}

type span struct{ start, end int }

// exactOthers returns the spans of literal occurrences of every other
// placeholder in text.
func (m fuzzyMatcher) exactOthers(text, pattern string) []span {
	var out []span
	for _, p := range m.placeholders {
		if p == pattern || p == "" {
			continue
		}
		for from := 0; ; {
			i := strings.Index(text[from:], p)
			if i < 0 {
				break
			}
			out = append(out, span{from + i, from + i + len(p)})
			from += i + len(p)
		}
	}
	return out
}

// overlapEnd returns the furthest end among start..end and the spans it
// overlaps, or 0 when it overlaps none.
func overlapEnd(spans []span, start, end int) int {
	skip := 0
	for _, s := range spans {
		if start < s.end && s.start < end {
			skip = max(skip, end, s.end)
		}
	}
	return skip
}

// refine searches windows whose start lies within maxDistance bytes of at
// and whose length is within maxDistance of the pattern's, returning the
// closest one. Ties prefer the length nearest the pattern, then the start
// nearest at.
func (m fuzzyMatcher) refine(dmp *diffmatchpatch.DiffMatchPatch, text, pattern string, floor, at int) (int, int, int) {
	k := m.maxDistance
	bestStart, bestEnd, bestDist := at, at, math.MaxInt
	bestLenGap, bestStartGap := math.MaxInt, math.MaxInt

	for start := max(floor, at-k); start <= min(len(text), at+k); start++ {
		if start < len(text) && !utf8.RuneStart(text[start]) {
			continue
		}
		for l := max(1, len(pattern)-k); l <= len(pattern)+k; l++ {
			end := start + l
			if end > len(text) {
				break
			}
			if end < len(text) && !utf8.RuneStart(text[end]) {
				continue
			}
			dist := dmp.DiffLevenshtein(dmp.DiffMain(text[start:end], pattern, false))
			lenGap := abs(l - len(pattern))
			startGap := abs(start - at)
			if dist < bestDist ||
				(dist == bestDist && lenGap < bestLenGap) ||
				(dist == bestDist && lenGap == bestLenGap && startGap < bestStartGap) {
				bestStart, bestEnd, bestDist = start, end, dist
				bestLenGap, bestStartGap = lenGap, startGap
			}
		}
	}
	return bestStart, bestEnd, bestDist
}

func (m fuzzyMatcher) closerToOther(dmp *diffmatchpatch.DiffMatchPatch, window, pattern string, dist int) bool {
	for _, p := range m.placeholders {
		if p == pattern {
			continue
		}
		if dmp.DiffLevenshtein(dmp.DiffMain(window, p, false)) < dist {
			return true
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
