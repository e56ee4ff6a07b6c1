package scanners

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/valinor-ai/llmguard/internal/scan"
)

// SubstringMatch selects how banned substrings are compared.
type SubstringMatch string

const (
	// MatchStr finds the substring anywhere.
	MatchStr SubstringMatch = "str"
	// MatchWord only matches whole words.
	MatchWord SubstringMatch = "word"
)

type banSubstringsParams struct {
	Substrings    []string `mapstructure:"substrings"`
	MatchType     string   `mapstructure:"match_type"`
	CaseSensitive bool     `mapstructure:"case_sensitive"`
	ContainsAll   bool     `mapstructure:"contains_all"`
	Redact        bool     `mapstructure:"redact"`
}

// BanSubstrings rejects text containing banned substrings.
type BanSubstrings struct {
	substrings  []string
	matchers    []*regexp.Regexp
	containsAll bool
	redact      bool
}

// NewBanSubstrings builds one matcher per substring.
func NewBanSubstrings(substrings []string, match SubstringMatch, caseSensitive, containsAll, redact bool) (*BanSubstrings, error) {
	if len(substrings) == 0 {
		return nil, fmt.Errorf("%w: ban substrings: substrings are required", scan.ErrInvalidConfig)
	}
	switch match {
	case "":
		match = MatchStr
	case MatchStr, MatchWord:
	default:
		return nil, fmt.Errorf("%w: ban substrings: unknown match type %q", scan.ErrInvalidConfig, match)
	}

	b := &BanSubstrings{substrings: substrings, containsAll: containsAll, redact: redact}
	for _, s := range substrings {
		expr := regexp.QuoteMeta(s)
		if match == MatchWord {
			expr = `\b` + expr + `\b`
		}
		if !caseSensitive {
			expr = `(?i)` + expr
		}
		b.matchers = append(b.matchers, regexp.MustCompile(expr))
	}
	return b, nil
}

func newBanSubstrings(params map[string]any) (*BanSubstrings, error) {
	var p banSubstringsParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return NewBanSubstrings(p.Substrings, SubstringMatch(p.MatchType), p.CaseSensitive, p.ContainsAll, p.Redact)
}

// Scan checks a prompt.
func (b *BanSubstrings) Scan(_ context.Context, prompt string) (scan.Result, error) {
	return b.check(prompt), nil
}

// ScanOutput checks a model output.
func (b *BanSubstrings) ScanOutput(_ context.Context, _, output string) (scan.Result, error) {
	return b.check(output), nil
}

func (b *BanSubstrings) check(text string) scan.Result {
	if text == "" {
		return scan.Valid(text)
	}

	var found []int
	for i, m := range b.matchers {
		if m.MatchString(text) {
			found = append(found, i)
		}
	}
	if len(found) == 0 || (b.containsAll && len(found) != len(b.matchers)) {
		return scan.Valid(text)
	}

	names := make([]string, 0, len(found))
	for _, i := range found {
		names = append(names, b.substrings[i])
		if b.redact {
			text = b.matchers[i].ReplaceAllLiteralString(text, Redacted)
		}
	}
	slog.Warn("found banned substrings", "substrings", strings.Join(names, ", "))
	return scan.Result{Text: text, Valid: false, Risk: 1}
}
