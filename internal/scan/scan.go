// Package scan defines the scanner contract and runs ordered scanner chains
// over prompts and model outputs.
package scan

import (
	"context"
	"errors"
	"reflect"
)

// ErrInvalidConfig is wrapped by every error a scanner constructor returns
// for bad options. These surface before a chain is assembled, never during Scan.
var ErrInvalidConfig = errors.New("invalid scanner configuration")

// Result is the outcome of a single scanner call.
type Result struct {
	Text  string  // sanitized prompt or output
	Valid bool    // false when the content violates the scanner's policy
	Risk  float64 // <= 0 means not flagged, up to 1.0 for a certain violation
}

// InputScanner inspects a prompt before it reaches the model.
type InputScanner interface {
	Scan(ctx context.Context, prompt string) (Result, error)
}

// OutputScanner inspects a model output, with the prompt that produced it.
type OutputScanner interface {
	ScanOutput(ctx context.Context, prompt, output string) (Result, error)
}

// NamedInput pairs an input scanner with the identifier its results are
// reported under.
type NamedInput struct {
	Name    string
	Scanner InputScanner
}

// NamedOutput pairs an output scanner with the identifier its results are
// reported under.
type NamedOutput struct {
	Name    string
	Scanner OutputScanner
}

// Valid is a convenience for scanners that found nothing to report.
func Valid(text string) Result {
	return Result{Text: text, Valid: true, Risk: NoRisk}
}

// TypeName returns the concrete type name of v without package or pointer
// decoration. It is the fallback identifier for unnamed scanners.
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
