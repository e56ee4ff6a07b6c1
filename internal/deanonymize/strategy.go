// Package deanonymize restores vault originals in model outputs.
package deanonymize

import (
	"fmt"
	"strings"

	"github.com/valinor-ai/llmguard/internal/scan"
)

// Strategy selects how placeholders are located in the output.
type Strategy int

const (
	// Exact replaces literal occurrences.
	Exact Strategy = iota
	// CaseInsensitive replaces occurrences regardless of letter case.
	CaseInsensitive
	// Fuzzy replaces near matches within the configured edit distance.
	Fuzzy
	// CombinedExactFuzzy runs Exact, then Fuzzy on the result.
	CombinedExactFuzzy
)

var strategyNames = map[Strategy]string{
	Exact:              "exact",
	CaseInsensitive:    "case_insensitive",
	Fuzzy:              "fuzzy",
	CombinedExactFuzzy: "combined_exact_fuzzy",
}

func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy maps a configuration name to a Strategy. An empty name
// selects Exact.
func ParseStrategy(name string) (Strategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Exact, nil
	}
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown deanonymize strategy %q", scan.ErrInvalidConfig, name)
}
