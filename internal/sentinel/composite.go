package sentinel

import (
	"context"

	"github.com/valinor-ai/llmguard/internal/scan"
)

// Composite chains a PatternMatcher (fast, first) with an optional model
// classifier (slow, second).
type Composite struct {
	patterns   *PatternMatcher
	classifier scan.InputScanner // may be nil if the model stage is disabled
}

// NewComposite creates a two-stage sentinel. Pass nil for classifier to
// disable model classification.
func NewComposite(patterns *PatternMatcher, classifier scan.InputScanner) *Composite {
	return &Composite{patterns: patterns, classifier: classifier}
}

// Scan runs pattern matching first. If it flags the prompt, returns
// immediately. Otherwise calls the classifier.
func (c *Composite) Scan(ctx context.Context, prompt string) (scan.Result, error) {
	result, err := c.patterns.Scan(ctx, prompt)
	if err != nil {
		return result, err
	}
	if !result.Valid {
		return result, nil
	}

	if c.classifier == nil {
		return result, nil
	}

	return c.classifier.Scan(ctx, prompt)
}
