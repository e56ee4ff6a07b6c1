package scanners

import (
	"context"
	"strings"
	"unicode"

	"github.com/valinor-ai/llmguard/internal/platform/telemetry"
	"github.com/valinor-ai/llmguard/internal/scan"
)

// InvisibleText strips format, private-use and unassigned code points,
// which can smuggle instructions past a human reader.
type InvisibleText struct{}

func newInvisibleText(params map[string]any, _ Deps) (scan.InputScanner, error) {
	if err := decode(params, &struct{}{}); err != nil {
		return nil, err
	}
	return InvisibleText{}, nil
}

// Invisible reports whether r is a format (Cf), private-use (Co) or
// unassigned (Cn) code point.
func Invisible(r rune) bool {
	if unicode.In(r, unicode.Cf, unicode.Co) {
		return true
	}
	return !unicode.In(r, unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Z, unicode.C)
}

// Scan removes invisible code points. A prompt that contained any is
// invalid.
func (InvisibleText) Scan(_ context.Context, prompt string) (scan.Result, error) {
	removed := 0
	cleaned := strings.Map(func(r rune) rune {
		if Invisible(r) {
			removed++
			return -1
		}
		return r
	}, prompt)
	if removed == 0 {
		return scan.Valid(prompt), nil
	}
	telemetry.Scanner("invisible_text").Warn("removed invisible characters", "count", removed)
	return scan.Result{Text: cleaned, Valid: false, Risk: 1}, nil
}
