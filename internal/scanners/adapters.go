package scanners

import (
	"fmt"
	"log/slog"

	"github.com/valinor-ai/llmguard/internal/anonymize"
	"github.com/valinor-ai/llmguard/internal/deanonymize"
	"github.com/valinor-ai/llmguard/internal/scan"
	"github.com/valinor-ai/llmguard/internal/sentinel"
)

type anonymizeParams struct {
	EntityTypes   []string `mapstructure:"entity_types"`
	AllowList     []string `mapstructure:"allow_list"`
	HiddenNames   []string `mapstructure:"hidden_names"`
	Preamble      string   `mapstructure:"preamble"`
	UseFaker      bool     `mapstructure:"use_faker"`
	Seed          int64    `mapstructure:"seed"`
	Threshold     float64  `mapstructure:"threshold"`
	BridgePattern string   `mapstructure:"bridge_pattern"`
	ChunkSize     int      `mapstructure:"chunk_size"`
	ChunkOverlap  int      `mapstructure:"chunk_overlap"`
}

func nerRecognizers(deps Deps, size, overlap int) ([]anonymize.Recognizer, error) {
	if deps.NER == nil {
		return nil, nil
	}
	ner, err := anonymize.NewNERRecognizer(deps.NER, anonymize.NERConfig{ChunkSize: size, ChunkOverlap: overlap})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scan.ErrInvalidConfig, err)
	}
	return []anonymize.Recognizer{ner}, nil
}

func newAnonymize(params map[string]any, deps Deps) (scan.InputScanner, error) {
	var p anonymizeParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	recognizers, err := nerRecognizers(deps, p.ChunkSize, p.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return anonymize.New(deps.Vault, anonymize.Config{
		EntityTypes:   p.EntityTypes,
		AllowList:     p.AllowList,
		HiddenNames:   p.HiddenNames,
		Preamble:      p.Preamble,
		UseFaker:      p.UseFaker,
		Seed:          p.Seed,
		Threshold:     p.Threshold,
		BridgePattern: p.BridgePattern,
		Recognizers:   recognizers,
	})
}

type deanonymizeParams struct {
	Strategy    string `mapstructure:"strategy"`
	MaxDistance int    `mapstructure:"max_distance"`
}

func newDeanonymize(params map[string]any, deps Deps) (scan.OutputScanner, error) {
	var p deanonymizeParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	strategy, err := deanonymize.ParseStrategy(p.Strategy)
	if err != nil {
		return nil, err
	}
	return deanonymize.New(deps.Vault, deanonymize.Config{Strategy: strategy, MaxDistance: p.MaxDistance})
}

type promptInjectionParams struct {
	Model           string  `mapstructure:"model"`
	Label           string  `mapstructure:"label"`
	Threshold       float64 `mapstructure:"threshold"`
	MatchType       string  `mapstructure:"match_type"`
	DisablePatterns bool    `mapstructure:"disable_patterns"`
	Enabled         *bool   `mapstructure:"enabled"`
}

// newPromptInjection chains the pattern table with the classifier when a
// backend is available. enabled: false keeps the chain entry but accepts
// every prompt.
func newPromptInjection(params map[string]any, deps Deps) (scan.InputScanner, error) {
	var p promptInjectionParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Enabled != nil && !*p.Enabled {
		slog.Info("prompt injection detection disabled")
		return sentinel.Nop{}, nil
	}

	var classifier scan.InputScanner
	if backend := deps.classifier(); backend != nil {
		c, err := sentinel.NewClassifier(backend, sentinel.ClassifierConfig{
			Model:     p.Model,
			Label:     p.Label,
			Threshold: p.Threshold,
			MatchType: sentinel.MatchType(p.MatchType),
		})
		if err != nil {
			return nil, err
		}
		classifier = c
	}

	if p.DisablePatterns {
		if classifier == nil {
			return nil, fmt.Errorf("%w: prompt injection: patterns disabled and no classifier backend configured", scan.ErrInvalidConfig)
		}
		return classifier, nil
	}
	if classifier == nil {
		slog.Warn("prompt injection running on patterns only, no classifier backend configured")
	}
	return sentinel.NewComposite(sentinel.NewPatternMatcher(sentinel.DefaultPatterns()), classifier), nil
}
