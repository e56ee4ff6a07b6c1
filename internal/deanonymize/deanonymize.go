package deanonymize

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/valinor-ai/llmguard/internal/platform/telemetry"
	"github.com/valinor-ai/llmguard/internal/scan"
	"github.com/valinor-ai/llmguard/internal/vault"
)

// DefaultMaxDistance is the fuzzy edit distance used when none is set.
const DefaultMaxDistance = 3

// Config configures the Deanonymize scanner.
type Config struct {
	Strategy Strategy
	// MaxDistance bounds fuzzy matches; zero means DefaultMaxDistance.
	MaxDistance int
}

// Scanner replaces placeholders in model outputs with the originals held
// in a vault. It never marks an output invalid.
type Scanner struct {
	vault    *vault.Vault
	strategy Strategy
	maxDist  int
	logger   *slog.Logger
}

// New creates a Deanonymize scanner reading from v.
func New(v *vault.Vault, cfg Config) (*Scanner, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: deanonymize: vault is required", scan.ErrInvalidConfig)
	}
	if _, ok := strategyNames[cfg.Strategy]; !ok {
		return nil, fmt.Errorf("%w: deanonymize: unknown strategy %v", scan.ErrInvalidConfig, cfg.Strategy)
	}
	if cfg.MaxDistance < 0 {
		return nil, fmt.Errorf("%w: deanonymize: max distance %d is negative", scan.ErrInvalidConfig, cfg.MaxDistance)
	}
	if cfg.MaxDistance == 0 {
		cfg.MaxDistance = DefaultMaxDistance
	}
	return &Scanner{
		vault:    v,
		strategy: cfg.Strategy,
		maxDist:  cfg.MaxDistance,
		logger:   telemetry.Scanner("deanonymize"),
	}, nil
}

// ScanOutput restores vault originals in output.
func (s *Scanner) ScanOutput(_ context.Context, _, output string) (scan.Result, error) {
	entries := s.vault.Get()
	if len(entries) == 0 {
		s.logger.Warn("no entries in the vault, output returned unchanged")
		return scan.Valid(output), nil
	}
	return scan.Valid(s.Restore(output, entries)), nil
}

// Restore applies the configured strategy over entries in vault order.
func (s *Scanner) Restore(text string, entries []vault.Entry) string {
	switch s.strategy {
	case CaseInsensitive:
		return restoreCaseInsensitive(text, entries)
	case Fuzzy:
		return s.restoreFuzzy(text, entries)
	case CombinedExactFuzzy:
		return s.restoreFuzzy(restoreExact(text, entries), entries)
	default:
		return restoreExact(text, entries)
	}
}

func restoreExact(text string, entries []vault.Entry) string {
	for _, e := range entries {
		if e.Placeholder == "" {
			continue
		}
		text = strings.ReplaceAll(text, e.Placeholder, e.Original)
	}
	return text
}

func restoreCaseInsensitive(text string, entries []vault.Entry) string {
	for _, e := range entries {
		if e.Placeholder == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(e.Placeholder))
		text = re.ReplaceAllLiteralString(text, e.Original)
	}
	return text
}

func (s *Scanner) restoreFuzzy(text string, entries []vault.Entry) string {
	var placeholders []string
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Placeholder != "" && !seen[e.Placeholder] {
			seen[e.Placeholder] = true
			placeholders = append(placeholders, e.Placeholder)
		}
	}
	m := fuzzyMatcher{maxDistance: s.maxDist, placeholders: placeholders}

	done := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Placeholder == "" || done[e.Placeholder] {
			continue
		}
		done[e.Placeholder] = true
		text = m.replace(text, e.Placeholder, e.Original)
	}
	return text
}
