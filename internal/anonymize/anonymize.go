package anonymize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/valinor-ai/llmguard/internal/platform/telemetry"
	"github.com/valinor-ai/llmguard/internal/scan"
	"github.com/valinor-ai/llmguard/internal/vault"
)

// Config configures the Anonymize scanner.
type Config struct {
	// EntityTypes to redact; empty means every supported type.
	EntityTypes []string
	// AllowList values are never redacted.
	AllowList []string
	// HiddenNames are always redacted as CUSTOM.
	HiddenNames []string
	// Preamble is prepended to the prompt when something was redacted.
	Preamble string
	// UseFaker replaces spans with synthetic values instead of placeholders.
	UseFaker bool
	// Seed for the faker; zero picks a time-based seed.
	Seed int64
	// Threshold drops detections scoring below it.
	Threshold float64
	// BridgePattern overrides DefaultBridgePattern.
	BridgePattern string
	// Patterns overrides DefaultPatternGroups when non-nil.
	Patterns []PatternGroup
	// Recognizers run before the pattern and deny-list recognizers,
	// typically a NERRecognizer.
	Recognizers []Recognizer
}

// Scanner redacts sensitive spans from prompts and records the originals
// in a vault.
type Scanner struct {
	vault    *vault.Vault
	analyzer *Analyzer
	faker    *Faker
	preamble string
	logger   *slog.Logger
}

type typedRecognizer interface {
	EntityTypes() []string
}

// New creates an Anonymize scanner writing into v.
func New(v *vault.Vault, cfg Config) (*Scanner, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: anonymize: vault is required", scan.ErrInvalidConfig)
	}

	var patterns *PatternRecognizer
	var err error
	if cfg.Patterns == nil {
		patterns, err = DefaultPatternRecognizer()
	} else {
		patterns, err = NewPatternRecognizer(cfg.Patterns)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: anonymize: %w", scan.ErrInvalidConfig, err)
	}

	recognizers := append([]Recognizer{}, cfg.Recognizers...)
	recognizers = append(recognizers, patterns)
	if deny := NewDenyListRecognizer(cfg.HiddenNames); deny != nil {
		recognizers = append(recognizers, deny)
	}

	if err := CheckEntityTypes(recognizers, cfg.EntityTypes); err != nil {
		return nil, fmt.Errorf("%w: anonymize: %w", scan.ErrInvalidConfig, err)
	}

	analyzer, err := NewAnalyzer(AnalyzerConfig{
		Recognizers:   recognizers,
		EntityTypes:   cfg.EntityTypes,
		Threshold:     cfg.Threshold,
		AllowList:     cfg.AllowList,
		BridgePattern: cfg.BridgePattern,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: anonymize: %w", scan.ErrInvalidConfig, err)
	}

	s := &Scanner{
		vault:    v,
		analyzer: analyzer,
		preamble: cfg.Preamble,
		logger:   telemetry.Scanner("anonymize"),
	}
	if cfg.UseFaker {
		// A fixed seed is offset by the vault size so later prompts in a
		// session do not replay the first prompt's draws.
		seed := cfg.Seed
		if seed != 0 {
			seed += int64(v.Len()) * 7919
		}
		s.faker = NewFaker(seed)
	}
	return s, nil
}

var defaultPatterns = sync.OnceValues(func() (*PatternRecognizer, error) {
	return NewPatternRecognizer(DefaultPatternGroups())
})

// DefaultPatternRecognizer returns the recognizer for DefaultPatternGroups,
// compiled once per process and shared.
func DefaultPatternRecognizer() (*PatternRecognizer, error) {
	return defaultPatterns()
}

// CheckEntityTypes fails on any entity type that neither the recognizers
// nor the NER label set can produce.
func CheckEntityTypes(recognizers []Recognizer, types []string) error {
	supported := map[string]bool{EntityCustom: true, EntityPerson: true, EntityOrganization: true, EntityLocation: true}
	for _, r := range recognizers {
		if tr, ok := r.(typedRecognizer); ok {
			for _, t := range tr.EntityTypes() {
				supported[t] = true
			}
		}
	}
	for _, t := range types {
		if !supported[t] {
			return fmt.Errorf("unknown entity type %q", t)
		}
	}
	return nil
}

// Analyzer exposes the scanner's analyzer.
func (s *Scanner) Analyzer() *Analyzer {
	return s.analyzer
}

// Scan redacts prompt. When nothing is found the prompt is returned as is
// and is valid. Otherwise the sanitized prompt is invalid and its risk is
// the highest detection score.
func (s *Scanner) Scan(ctx context.Context, prompt string) (scan.Result, error) {
	if prompt == "" {
		return scan.Valid(prompt), nil
	}

	dets, err := s.analyzer.Analyze(ctx, prompt)
	if err != nil {
		return scan.Result{}, fmt.Errorf("anonymize: %w", err)
	}
	if len(dets) == 0 {
		s.logger.Debug("prompt has no sensitive data")
		return scan.Valid(prompt), nil
	}

	reps := s.render(AssignIndexes(prompt, dets))
	sanitized, entries := Substitute(prompt, reps)
	s.vault.Extend(entries)

	var risk float64
	for _, d := range dets {
		risk = max(risk, d.Score)
	}
	s.logger.Debug("redacted sensitive data", "count", len(dets), "risk", scan.RoundScore(risk))

	return scan.Result{
		Text:  s.preamble + sanitized,
		Valid: false,
		Risk:  scan.RoundScore(risk),
	}, nil
}

// render turns indexed detections into replacements. In faker mode every
// occurrence of a value maps to the same synthetic value, including values
// faked by earlier prompts in the same vault.
func (s *Scanner) render(indexed []Indexed) []Replacement {
	var prior, owners map[string]string
	if s.faker != nil {
		prior, owners = s.vaultFakes()
	}
	fakes := make(map[string]string)
	reps := make([]Replacement, 0, len(indexed))
	for _, ix := range indexed {
		value := Placeholder(ix.EntityType, ix.Index)
		if s.faker != nil {
			key := ix.EntityType + "\x00" + ix.Original
			if f, ok := fakes[key]; ok {
				value = f
			} else if f, ok := prior[ix.Original]; ok && s.faker.Supports(ix.EntityType) {
				fakes[key] = f
				value = f
			} else if f, ok := s.fakeUnused(ix.EntityType, ix.Original, owners); ok {
				fakes[key] = f
				owners[f] = ix.Original
				value = f
			}
		}
		reps = append(reps, Replacement{Start: ix.Start, End: ix.End, Original: ix.Original, Value: value})
	}
	return reps
}

// vaultFakes maps each original already faked in the vault to its
// synthetic value, and each vault value to the original that owns it.
func (s *Scanner) vaultFakes() (map[string]string, map[string]string) {
	prior := make(map[string]string)
	owners := make(map[string]string)
	for _, e := range s.vault.Get() {
		owners[e.Placeholder] = e.Original
		if strings.HasPrefix(e.Placeholder, "[REDACTED_") {
			continue
		}
		if _, ok := prior[e.Original]; !ok {
			prior[e.Original] = e.Placeholder
		}
	}
	return prior, owners
}

const maxFakeAttempts = 8

// fakeUnused draws a synthetic value no other original already maps to.
func (s *Scanner) fakeUnused(entityType, original string, owners map[string]string) (string, bool) {
	for range maxFakeAttempts {
		f, ok := s.faker.Fake(entityType, original)
		if !ok {
			return "", false
		}
		if owner, taken := owners[f]; !taken || owner == original {
			return f, true
		}
	}
	return "", false
}
