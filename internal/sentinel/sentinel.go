// Package sentinel detects prompt injection attempts. It provides a fast
// pattern stage and a model-backed classifier stage, both usable as input
// scanners.
package sentinel

import (
	"context"

	"github.com/valinor-ai/llmguard/internal/scan"
)

// Nop accepts every prompt. It stands in for a prompt_injection entry that
// is configured but disabled.
type Nop struct{}

// Scan returns prompt unchanged and valid.
func (Nop) Scan(_ context.Context, prompt string) (scan.Result, error) {
	return scan.Valid(prompt), nil
}
