package sentinel

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/valinor-ai/llmguard/internal/scan"
)

// Pattern is a named regex pattern for detecting prompt injection.
type Pattern struct {
	Name   string
	Regexp *regexp.Regexp
}

// PatternMatcher scans prompts against a list of regex patterns.
type PatternMatcher struct {
	patterns []Pattern
}

// NewPatternMatcher creates a PatternMatcher from compiled patterns.
func NewPatternMatcher(patterns []Pattern) *PatternMatcher {
	return &PatternMatcher{patterns: patterns}
}

// DefaultPatterns returns the built-in prompt injection detection patterns.
func DefaultPatterns() []Pattern {
	raw := []struct {
		name    string
		pattern string
	}{
		{"ignore_instructions", `(?i)ignore\s+(all\s+)?(the\s+)?(previous|prior|above|earlier)\s+(instructions|prompts|rules|directions)`},
		{"system_prompt_extract", `(?i)(repeat|show|print|reveal|output|leak)\s+(me\s+)?(your\s+|the\s+)?(system\s+prompt|hidden\s+instructions|initial\s+instructions)`},
		{"role_injection", `(?i)\[\[?\s*system\s*\]?\]|<\|?\s*(system|im_start)\s*\|?>`},
		{"jailbreak_dan", `(?i)you\s+are\s+now\s+DAN`},
		{"developer_mode", `(?i)(enable|enter|activate)\s+developer\s+mode`},
		{"prompt_override", `(?i)(disregard|forget|override)\s+(all\s+)?(previous|prior|above|your)\s+(instructions|rules|guidelines)`},
		{"act_as_bypass", `(?i)act\s+as\s+(an?\s+)?(unrestricted|unfiltered|uncensored)`},
	}

	patterns := make([]Pattern, 0, len(raw))
	for _, r := range raw {
		patterns = append(patterns, Pattern{
			Name:   r.name,
			Regexp: regexp.MustCompile(r.pattern),
		})
	}
	return patterns
}

// Match returns the name of the first pattern matching prompt.
func (pm *PatternMatcher) Match(prompt string) (string, bool) {
	content := strings.TrimSpace(prompt)
	for _, p := range pm.patterns {
		if p.Regexp.MatchString(content) {
			return p.Name, true
		}
	}
	return "", false
}

// Scan flags prompt as invalid with risk 1 when any pattern matches.
func (pm *PatternMatcher) Scan(_ context.Context, prompt string) (scan.Result, error) {
	if name, ok := pm.Match(prompt); ok {
		slog.Warn("prompt injection pattern matched", "pattern", name)
		return scan.Result{Text: prompt, Valid: false, Risk: 1.0}, nil
	}
	return scan.Valid(prompt), nil
}
