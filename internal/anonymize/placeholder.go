package anonymize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/valinor-ai/llmguard/internal/vault"
)

// Indexed is a detection with its original text and per-type index.
type Indexed struct {
	Detection
	Original string
	Index    int
}

// Replacement is a span of text and the value that replaces it.
type Replacement struct {
	Start    int
	End      int
	Original string
	Value    string
}

// Placeholder renders the redaction marker for an entity type and index.
func Placeholder(entityType string, index int) string {
	return fmt.Sprintf("[REDACTED_%s_%d]", entityType, index)
}

// AssignIndexes walks dets left to right and gives each distinct original
// value a 1-based index within its entity type. Repeats of a value reuse
// its index. The returned slice is sorted by start.
func AssignIndexes(text string, dets []Detection) []Indexed {
	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sortByStart(sorted)

	next := make(map[string]int)
	seen := make(map[string]map[string]int)
	out := make([]Indexed, 0, len(sorted))
	for _, d := range sorted {
		original := text[d.Start:d.End]
		byValue, ok := seen[d.EntityType]
		if !ok {
			byValue = make(map[string]int)
			seen[d.EntityType] = byValue
		}
		idx, ok := byValue[original]
		if !ok {
			next[d.EntityType]++
			idx = next[d.EntityType]
			byValue[original] = idx
		}
		out = append(out, Indexed{Detection: d, Original: original, Index: idx})
	}
	return out
}

// Substitute splices replacements into text from the last to the first,
// so every offset still refers to the untouched prefix. It returns the new
// text and one vault entry per replacement, in the same right-to-left order.
// Replacements must not overlap.
func Substitute(text string, reps []Replacement) (string, []vault.Entry) {
	if len(reps) == 0 {
		return text, nil
	}
	sorted := make([]Replacement, len(reps))
	copy(sorted, reps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	pieces := make([]string, 0, 2*len(sorted)+1)
	entries := make([]vault.Entry, 0, len(sorted))
	cursor := len(text)
	for _, r := range sorted {
		pieces = append(pieces, text[r.End:cursor], r.Value)
		entries = append(entries, vault.Entry{Placeholder: r.Value, Original: r.Original})
		cursor = r.Start
	}
	pieces = append(pieces, text[:cursor])

	var b strings.Builder
	b.Grow(len(text))
	for i := len(pieces) - 1; i >= 0; i-- {
		b.WriteString(pieces[i])
	}
	return b.String(), entries
}
