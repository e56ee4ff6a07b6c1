package scan

import (
	"context"
	"fmt"
	"strings"
)

// ScanPrompt runs scanners over prompt in order, feeding each scanner the
// text produced by the previous one. With failFast the chain stops right
// after the first invalid result.
//
// An empty chain or a blank prompt returns the prompt untouched with no
// entries. A scanner error aborts the chain and no partial report is
// returned.
func ScanPrompt(ctx context.Context, scanners []NamedInput, prompt string, failFast bool) (Report, error) {
	if len(scanners) == 0 || strings.TrimSpace(prompt) == "" {
		return Report{Text: prompt}, nil
	}

	report := Report{Text: prompt}
	for _, s := range scanners {
		name := s.Name
		if name == "" {
			name = TypeName(s.Scanner)
		}
		if err := ctx.Err(); err != nil {
			return Report{}, fmt.Errorf("scanning prompt before %s: %w", name, err)
		}

		res, err := s.Scanner.Scan(ctx, report.Text)
		if err != nil {
			return Report{}, fmt.Errorf("scanner %s: %w", name, err)
		}

		report.Text = res.Text
		report.record(name, res)

		if failFast && !res.Valid {
			break
		}
	}
	return report, nil
}

// ScanOutput is the output-side twin of ScanPrompt. The prompt is passed to
// every scanner unchanged; the output is threaded through the chain.
func ScanOutput(ctx context.Context, scanners []NamedOutput, prompt, output string, failFast bool) (Report, error) {
	if len(scanners) == 0 || strings.TrimSpace(output) == "" {
		return Report{Text: output}, nil
	}

	report := Report{Text: output}
	for _, s := range scanners {
		name := s.Name
		if name == "" {
			name = TypeName(s.Scanner)
		}
		if err := ctx.Err(); err != nil {
			return Report{}, fmt.Errorf("scanning output before %s: %w", name, err)
		}

		res, err := s.Scanner.ScanOutput(ctx, prompt, report.Text)
		if err != nil {
			return Report{}, fmt.Errorf("scanner %s: %w", name, err)
		}

		report.Text = res.Text
		report.record(name, res)

		if failFast && !res.Valid {
			break
		}
	}
	return report, nil
}
