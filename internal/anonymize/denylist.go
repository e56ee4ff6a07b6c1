package anonymize

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// DenyListRecognizer flags caller-supplied names as CUSTOM entities.
type DenyListRecognizer struct {
	re *regexp.Regexp
}

// NewDenyListRecognizer builds a case-insensitive whole-word matcher. It
// returns nil when names is empty.
func NewDenyListRecognizer(names []string) *DenyListRecognizer {
	var quoted []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			quoted = append(quoted, regexp.QuoteMeta(n))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	// Longest first so alternation prefers "Acme Corp" over "Acme".
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return &DenyListRecognizer{
		re: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
	}
}

// Recognize returns every deny-listed occurrence with score 1.
func (r *DenyListRecognizer) Recognize(_ context.Context, text string, entities []string) ([]Detection, error) {
	if !wants(entities, EntityCustom) {
		return nil, nil
	}
	var out []Detection
	for _, loc := range r.re.FindAllStringIndex(text, -1) {
		out = append(out, Detection{EntityType: EntityCustom, Start: loc[0], End: loc[1], Score: 1.0})
	}
	return out, nil
}
