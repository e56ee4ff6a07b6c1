package sentinel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valinor-ai/llmguard/internal/model"
	"github.com/valinor-ai/llmguard/internal/scan"
)

// MatchType decides which parts of a prompt are sent to the classifier.
type MatchType string

const (
	// MatchFull classifies the whole prompt at once.
	MatchFull MatchType = "full"
	// MatchSentence classifies each sentence and keeps the worst score.
	MatchSentence MatchType = "sentence"
)

// ClassifierConfig configures the model-backed classifier.
type ClassifierConfig struct {
	Model     string    // default: "protectai/deberta-v3-base-prompt-injection-v2"
	Label     string    // label meaning injection, default: "INJECTION"
	Threshold float64   // default: 0.92
	MatchType MatchType // default: full
}

// Classifier scores prompts with an injection classification model.
type Classifier struct {
	cfg     ClassifierConfig
	backend model.Classifier
}

// NewClassifier creates a model-backed classifier.
func NewClassifier(backend model.Classifier, cfg ClassifierConfig) (*Classifier, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: prompt injection: classifier backend is required", scan.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = "protectai/deberta-v3-base-prompt-injection-v2"
	}
	if cfg.Label == "" {
		cfg.Label = "INJECTION"
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.92
	}
	if cfg.Threshold > 1 {
		return nil, fmt.Errorf("%w: prompt injection: threshold %v must be in (0, 1]", scan.ErrInvalidConfig, cfg.Threshold)
	}
	switch cfg.MatchType {
	case "":
		cfg.MatchType = MatchFull
	case MatchFull, MatchSentence:
	default:
		return nil, fmt.Errorf("%w: prompt injection: unknown match type %q", scan.ErrInvalidConfig, cfg.MatchType)
	}
	return &Classifier{cfg: cfg, backend: backend}, nil
}

// Scan classifies prompt. A score above the threshold makes the prompt
// invalid; its risk is the score normalized against the threshold.
// Backend errors are returned to the caller.
func (c *Classifier) Scan(ctx context.Context, prompt string) (scan.Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return scan.Valid(prompt), nil
	}

	parts := []string{prompt}
	if c.cfg.MatchType == MatchSentence {
		parts = model.Sentences(prompt)
	}

	var highest float64
	for _, part := range parts {
		labels, err := c.backend.Classify(ctx, model.Request{
			Task:  "text-classification",
			Model: c.cfg.Model,
			Text:  part,
		})
		if err != nil {
			return scan.Result{}, fmt.Errorf("prompt injection classifier: %w", err)
		}
		highest = max(highest, model.ScoreOf(labels, c.cfg.Label))
		if highest > c.cfg.Threshold {
			break
		}
	}

	if highest > c.cfg.Threshold {
		slog.Warn("detected prompt injection", "score", highest, "threshold", c.cfg.Threshold)
		return scan.Result{
			Text:  prompt,
			Valid: false,
			Risk:  scan.NormalizeRisk(highest, c.cfg.Threshold, 1),
		}, nil
	}
	slog.Debug("no prompt injection detected", "score", highest)
	return scan.Valid(prompt), nil
}
