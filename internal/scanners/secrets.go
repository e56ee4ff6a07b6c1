package scanners

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/valinor-ai/llmguard/internal/platform/telemetry"
	"github.com/valinor-ai/llmguard/internal/scan"
)

// SecretCategory identifies a kind of credential.
type SecretCategory string

const (
	SecretPrivateKey    SecretCategory = "PRIVATE_KEY"
	SecretAnthropicKey  SecretCategory = "ANTHROPIC_KEY"
	SecretOpenAIKey     SecretCategory = "OPENAI_KEY"
	SecretAWSAccessKey  SecretCategory = "AWS_ACCESS_KEY"
	SecretGitHubToken   SecretCategory = "GITHUB_TOKEN"
	SecretSlackToken    SecretCategory = "SLACK_TOKEN"
	SecretStripeKey     SecretCategory = "STRIPE_KEY"
	SecretGoogleAPIKey  SecretCategory = "GOOGLE_API_KEY"
	SecretJWT           SecretCategory = "JWT"
	SecretDatabaseURL   SecretCategory = "DATABASE_URL"
	SecretBearerToken   SecretCategory = "BEARER_TOKEN"
	SecretPassword      SecretCategory = "PASSWORD"
	SecretGenericAPIKey SecretCategory = "GENERIC_API_KEY"
)

// RedactMode decides how a found secret is rewritten.
type RedactMode string

const (
	// RedactAll replaces the whole secret with asterisks.
	RedactAll RedactMode = "all"
	// RedactPartial keeps the first and last two characters.
	RedactPartial RedactMode = "partial"
	// RedactHash replaces the secret with a truncated SHA-256 digest.
	RedactHash RedactMode = "hash"
)

type secretPattern struct {
	category SecretCategory
	re       *regexp.Regexp
	priority int
}

// Overlapping matches are settled by priority.
var secretPatterns = []secretPattern{
	{SecretPrivateKey, regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`), 100},
	{SecretAnthropicKey, regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_\-]{20,}`), 95},
	{SecretAWSAccessKey, regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`), 90},
	{SecretGitHubToken, regexp.MustCompile(`\b(?:gh[pousr]_[A-Za-z0-9]{36,}|github_pat_[A-Za-z0-9_]{22,})`), 90},
	{SecretSlackToken, regexp.MustCompile(`\bxox[abprs]-[A-Za-z0-9\-]{10,}`), 90},
	{SecretStripeKey, regexp.MustCompile(`\b(?:sk|rk)_(?:live|test)_[A-Za-z0-9]{16,}`), 90},
	{SecretGoogleAPIKey, regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}`), 90},
	{SecretOpenAIKey, regexp.MustCompile(`\bsk-(?:proj-)?[A-Za-z0-9_\-]{20,}`), 85},
	{SecretJWT, regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]{8,}\.eyJ[A-Za-z0-9_\-]{8,}\.[A-Za-z0-9_\-]{8,}`), 80},
	{SecretDatabaseURL, regexp.MustCompile(`\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^\s:/@]+:[^\s@/]+@\S+`), 75},
	{SecretBearerToken, regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-._~+/]{20,}=*`), 70},
	{SecretPassword, regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)\s*[:=]\s*["']?[^\s"']{6,}`), 60},
	{SecretGenericAPIKey, regexp.MustCompile(`(?i)\b(?:api[_\-]?key|secret|access[_\-]?token)\s*[:=]\s*["']?[A-Za-z0-9_\-]{16,}`), 50},
}

type secretsParams struct {
	RedactMode         string   `mapstructure:"redact_mode"`
	AllowList          []string `mapstructure:"allow_list"`
	DisabledCategories []string `mapstructure:"disabled_categories"`
	UseGitleaks        bool     `mapstructure:"use_gitleaks"`
}

// gitleaksPriority ranks gitleaks findings below every built-in category.
const gitleaksPriority = 40

// gitleaksDetector compiles the gitleaks default rule set once.
var gitleaksDetector = sync.OnceValues(detect.NewDetectorDefaultConfig)

// Secrets finds credentials in prompts and redacts them.
type Secrets struct {
	mode     RedactMode
	patterns []secretPattern
	allow    []*regexp.Regexp
	off      map[SecretCategory]bool

	gitleaksMu sync.Mutex
	gitleaks   *detect.Detector
}

// SecretsOption configures optional engines.
type SecretsOption func(*Secrets) error

// WithGitleaks adds the gitleaks default rules to the built-in table.
// Categories are the upper-cased gitleaks rule IDs, e.g. GITHUB_PAT.
func WithGitleaks() SecretsOption {
	return func(s *Secrets) error {
		d, err := gitleaksDetector()
		if err != nil {
			return fmt.Errorf("%w: secrets: loading gitleaks rules: %w", scan.ErrInvalidConfig, err)
		}
		s.gitleaks = d
		return nil
	}
}

// NewSecrets validates the redact mode and builds the category table.
func NewSecrets(mode RedactMode, allowList []string, disabled []SecretCategory, opts ...SecretsOption) (*Secrets, error) {
	switch mode {
	case "":
		mode = RedactAll
	case RedactAll, RedactPartial, RedactHash:
	default:
		return nil, fmt.Errorf("%w: secrets: unknown redact mode %q", scan.ErrInvalidConfig, mode)
	}

	off := make(map[SecretCategory]bool, len(disabled))
	for _, c := range disabled {
		off[c] = true
	}
	s := &Secrets{mode: mode, off: off}
	for _, p := range secretPatterns {
		if !off[p.category] {
			s.patterns = append(s.patterns, p)
		}
	}

	allow, err := compileAll(allowList)
	if err != nil {
		return nil, err
	}
	s.allow = allow
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newSecrets(params map[string]any, _ Deps) (scan.InputScanner, error) {
	var p secretsParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	disabled := make([]SecretCategory, 0, len(p.DisabledCategories))
	for _, c := range p.DisabledCategories {
		disabled = append(disabled, SecretCategory(c))
	}
	var opts []SecretsOption
	if p.UseGitleaks {
		opts = append(opts, WithGitleaks())
	}
	return NewSecrets(RedactMode(p.RedactMode), p.AllowList, disabled, opts...)
}

// SecretFinding is one detected credential.
type SecretFinding struct {
	Category SecretCategory
	Start    int
	End      int
	priority int
}

// Find returns non-overlapping findings sorted by start. Higher priority
// categories win overlaps.
func (s *Secrets) Find(text string) []SecretFinding {
	var all []SecretFinding
	for _, p := range s.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			all = append(all, SecretFinding{Category: p.category, Start: loc[0], End: loc[1], priority: p.priority})
		}
	}
	all = append(all, s.findGitleaks(text)...)
	if len(all) == 0 {
		return nil
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].priority != all[j].priority {
			return all[i].priority > all[j].priority
		}
		return all[i].Start < all[j].Start
	})

	var kept []SecretFinding
	for _, f := range all {
		overlaps := false
		for _, k := range kept {
			if f.Start < k.End && k.Start < f.End {
				overlaps = true
				break
			}
		}
		if !overlaps && !s.allowed(text[f.Start:f.End]) {
			kept = append(kept, f)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}

// findGitleaks locates every occurrence of each secret gitleaks reports.
func (s *Secrets) findGitleaks(text string) []SecretFinding {
	if s.gitleaks == nil {
		return nil
	}
	s.gitleaksMu.Lock()
	found := s.gitleaks.DetectString(text)
	s.gitleaksMu.Unlock()

	var out []SecretFinding
	for _, f := range found {
		category := SecretCategory(strings.ToUpper(strings.ReplaceAll(f.RuleID, "-", "_")))
		secret := f.Secret
		if secret == "" {
			secret = f.Match
		}
		if secret == "" || s.off[category] {
			continue
		}
		for from := 0; ; {
			i := strings.Index(text[from:], secret)
			if i < 0 {
				break
			}
			start := from + i
			out = append(out, SecretFinding{Category: category, Start: start, End: start + len(secret), priority: gitleaksPriority})
			from = start + len(secret)
		}
	}
	return out
}

func (s *Secrets) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

// Scan redacts every secret in prompt. A prompt with secrets is invalid.
func (s *Secrets) Scan(_ context.Context, prompt string) (scan.Result, error) {
	findings := s.Find(prompt)
	if len(findings) == 0 {
		return scan.Valid(prompt), nil
	}

	out := prompt
	for i := len(findings) - 1; i >= 0; i-- {
		f := findings[i]
		out = out[:f.Start] + s.mask(out[f.Start:f.End]) + out[f.End:]
	}

	categories := make([]string, 0, len(findings))
	for _, f := range findings {
		categories = append(categories, string(f.Category))
	}
	telemetry.Scanner("secrets").Warn("detected secrets", "count", len(findings), "categories", categories)
	return scan.Result{Text: out, Valid: false, Risk: 1}, nil
}

func (s *Secrets) mask(secret string) string {
	switch s.mode {
	case RedactPartial:
		if len(secret) <= 6 {
			return "******"
		}
		return secret[:2] + "..." + secret[len(secret)-2:]
	case RedactHash:
		sum := sha256.Sum256([]byte(secret))
		return hex.EncodeToString(sum[:8])
	default:
		return "******"
	}
}
