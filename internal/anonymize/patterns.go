package anonymize

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	contextBoost    = 0.35
	contextMinScore = 0.4
	contextWindow   = 5
)

// PatternGroup is a named set of expressions detecting one entity type.
type PatternGroup struct {
	Name        string
	EntityType  string
	Expressions []string
	// Context words raise the score when one of them appears among the
	// words preceding a match.
	Context []string
	Score   float64
	// Validate, when set, rejects matches that fit the expression but are
	// not valid values (e.g. a failed checksum).
	Validate func(match string) bool
}

type compiledGroup struct {
	PatternGroup
	res     []*regexp.Regexp
	context map[string]struct{}
}

// PatternRecognizer detects entities with regular expressions.
type PatternRecognizer struct {
	groups []compiledGroup
}

// NewPatternRecognizer compiles the groups. A group with no expressions or
// a bad expression is an error.
func NewPatternRecognizer(groups []PatternGroup) (*PatternRecognizer, error) {
	r := &PatternRecognizer{}
	for _, g := range groups {
		if g.EntityType == "" || len(g.Expressions) == 0 {
			return nil, fmt.Errorf("pattern group %q: entity type and expressions are required", g.Name)
		}
		cg := compiledGroup{PatternGroup: g, context: make(map[string]struct{}, len(g.Context))}
		for _, expr := range g.Expressions {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("pattern group %q: compiling %q: %w", g.Name, expr, err)
			}
			cg.res = append(cg.res, re)
		}
		for _, w := range g.Context {
			cg.context[strings.ToLower(w)] = struct{}{}
		}
		r.groups = append(r.groups, cg)
	}
	return r, nil
}

// EntityTypes returns the entity types this recognizer can produce.
func (r *PatternRecognizer) EntityTypes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range r.groups {
		if !seen[g.EntityType] {
			seen[g.EntityType] = true
			out = append(out, g.EntityType)
		}
	}
	return out
}

// Recognize runs every requested group over text.
func (r *PatternRecognizer) Recognize(_ context.Context, text string, entities []string) ([]Detection, error) {
	var out []Detection
	for _, g := range r.groups {
		if !wants(entities, g.EntityType) {
			continue
		}
		for _, re := range g.res {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				if loc[0] == loc[1] {
					continue
				}
				match := text[loc[0]:loc[1]]
				if g.Validate != nil && !g.Validate(match) {
					continue
				}
				score := g.Score
				if len(g.context) > 0 && hasContext(text[:loc[0]], g.context) {
					score = max(min(score+contextBoost, 1), contextMinScore)
				}
				out = append(out, Detection{
					EntityType: g.EntityType,
					Start:      loc[0],
					End:        loc[1],
					Score:      score,
				})
			}
		}
	}
	return out, nil
}

// hasContext reports whether one of the last contextWindow words of prefix
// is a context word.
func hasContext(prefix string, words map[string]struct{}) bool {
	fields := strings.FieldsFunc(strings.ToLower(prefix), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) > contextWindow {
		fields = fields[len(fields)-contextWindow:]
	}
	for _, f := range fields {
		if _, ok := words[f]; ok {
			return true
		}
	}
	return false
}

// DefaultPatternGroups returns the built-in regex recognizers.
func DefaultPatternGroups() []PatternGroup {
	return []PatternGroup{
		{
			Name:        "email",
			EntityType:  EntityEmail,
			Expressions: []string{`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`},
			Context:     []string{"email", "mail", "e-mail", "contact"},
			Score:       1.0,
		},
		{
			Name:       "phone",
			EntityType: EntityPhone,
			Expressions: []string{
				`(?:\+?1[\-.\s]?)?\(?\b[2-9][0-9]{2}\)?[\-.\s]?[0-9]{3}[\-.\s]?[0-9]{4}\b`,
				`\+[1-9][0-9]{0,2}[\-.\s]?[0-9]{2,4}[\-.\s]?[0-9]{3,4}[\-.\s]?[0-9]{3,4}\b`,
			},
			Context: []string{"phone", "number", "telephone", "cell", "mobile", "call", "tel", "fax"},
			Score:   0.75,
		},
		{
			Name:        "us_ssn",
			EntityType:  EntitySSN,
			Expressions: []string{`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`},
			Context:     []string{"ssn", "social", "security"},
			Score:       0.85,
			Validate:    validSSN,
		},
		{
			Name:        "credit_card",
			EntityType:  EntityCreditCard,
			Expressions: []string{`\b(?:[0-9]{4}[\-\s]?){3}[0-9]{4}\b`, `\b3[47][0-9]{2}[\-\s]?[0-9]{6}[\-\s]?[0-9]{5}\b`},
			Context:     []string{"credit", "card", "visa", "mastercard", "amex", "cc"},
			Score:       1.0,
			Validate:    luhnValid,
		},
		{
			Name:        "ip_address",
			EntityType:  EntityIP,
			Expressions: []string{`\b(?:(?:25[0-5]|2[0-4][0-9]|1?[0-9]?[0-9])\.){3}(?:25[0-5]|2[0-4][0-9]|1?[0-9]?[0-9])\b`},
			Context:     []string{"ip", "address", "host", "server"},
			Score:       0.6,
		},
		{
			Name:        "uuid",
			EntityType:  EntityUUID,
			Expressions: []string{`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`},
			Score:       0.9,
		},
		{
			Name:        "url",
			EntityType:  EntityURL,
			Expressions: []string{`\bhttps?://[^\s<>"'\])]+`},
			Context:     []string{"url", "link", "website", "site"},
			Score:       0.6,
		},
		{
			Name:        "iban",
			EntityType:  EntityIBAN,
			Expressions: []string{`\b[A-Z]{2}[0-9]{2}(?:\s?[A-Z0-9]{4}){2,7}(?:\s?[A-Z0-9]{1,3})?\b`},
			Context:     []string{"iban", "bank", "account"},
			Score:       0.9,
			Validate:    ibanValid,
		},
		{
			Name:        "bitcoin",
			EntityType:  EntityCrypto,
			Expressions: []string{`\b(?:bc1[a-z0-9]{25,39}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})\b`},
			Context:     []string{"wallet", "btc", "bitcoin", "crypto"},
			Score:       0.9,
		},
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func luhnValid(s string) bool {
	digits := digitsOnly(s)
	if len(digits) < 13 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func validSSN(s string) bool {
	digits := digitsOnly(s)
	if len(digits) != 9 {
		return false
	}
	area, group, serial := digits[:3], digits[3:5], digits[5:]
	return area != "000" && area != "666" && area[0] != '9' && group != "00" && serial != "0000"
}

// ibanValid applies the ISO 13616 mod-97 check.
func ibanValid(s string) bool {
	compact := strings.ReplaceAll(s, " ", "")
	if len(compact) < 15 || len(compact) > 34 {
		return false
	}
	rearranged := compact[4:] + compact[:4]
	rem := 0
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			rem = (rem*10 + int(r-'0')) % 97
		case r >= 'A' && r <= 'Z':
			rem = (rem*100 + int(r-'A') + 10) % 97
		default:
			return false
		}
	}
	return rem == 1
}
