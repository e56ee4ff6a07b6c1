package scanners

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/valinor-ai/llmguard/internal/scan"
)

// Redacted replaces matched text when a scanner redacts.
const Redacted = "[REDACTED]"

type regexParams struct {
	GoodPatterns []string `mapstructure:"good_patterns"`
	BadPatterns  []string `mapstructure:"bad_patterns"`
	Redact       bool     `mapstructure:"redact"`
}

// Regex validates text against either an allow list or a deny list of
// regular expressions.
type Regex struct {
	good   []*regexp.Regexp
	bad    []*regexp.Regexp
	redact bool
}

// NewRegex compiles the patterns. Exactly one of good and bad must be set.
func NewRegex(good, bad []string, redact bool) (*Regex, error) {
	if (len(good) == 0) == (len(bad) == 0) {
		return nil, fmt.Errorf("%w: regex: provide either good_patterns or bad_patterns", scan.ErrInvalidConfig)
	}
	r := &Regex{redact: redact}
	var err error
	if r.good, err = compileAll(good); err != nil {
		return nil, err
	}
	if r.bad, err = compileAll(bad); err != nil {
		return nil, err
	}
	return r, nil
}

func newRegex(params map[string]any) (*Regex, error) {
	var p regexParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return NewRegex(p.GoodPatterns, p.BadPatterns, p.Redact)
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: regex: compiling %q: %w", scan.ErrInvalidConfig, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Scan checks a prompt.
func (r *Regex) Scan(_ context.Context, prompt string) (scan.Result, error) {
	return r.check(prompt), nil
}

// ScanOutput checks a model output.
func (r *Regex) ScanOutput(_ context.Context, _, output string) (scan.Result, error) {
	return r.check(output), nil
}

func (r *Regex) check(text string) scan.Result {
	if text == "" {
		return scan.Valid(text)
	}

	if len(r.good) > 0 {
		for _, re := range r.good {
			if re.MatchString(text) {
				return scan.Valid(text)
			}
		}
		slog.Warn("no allowed pattern matched")
		return scan.Result{Text: text, Valid: false, Risk: 1}
	}

	matched := false
	for _, re := range r.bad {
		if !re.MatchString(text) {
			continue
		}
		slog.Warn("denied pattern matched", "pattern", re.String())
		matched = true
		if !r.redact {
			break
		}
		text = re.ReplaceAllLiteralString(text, Redacted)
	}
	if !matched {
		return scan.Valid(text)
	}
	return scan.Result{Text: text, Valid: false, Risk: 1}
}
