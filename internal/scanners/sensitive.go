package scanners

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valinor-ai/llmguard/internal/anonymize"
	"github.com/valinor-ai/llmguard/internal/platform/telemetry"
	"github.com/valinor-ai/llmguard/internal/scan"
)

type sensitiveParams struct {
	EntityTypes  []string `mapstructure:"entity_types"`
	AllowList    []string `mapstructure:"allow_list"`
	Redact       bool     `mapstructure:"redact"`
	Threshold    float64  `mapstructure:"threshold"`
	ChunkSize    int      `mapstructure:"chunk_size"`
	ChunkOverlap int      `mapstructure:"chunk_overlap"`
}

// Sensitive reports sensitive entities leaking into model output and can
// mask them. Nothing is written to the vault.
type Sensitive struct {
	analyzer *anonymize.Analyzer
	redact   bool
	logger   *slog.Logger
}

// NewSensitive wraps an analyzer.
func NewSensitive(analyzer *anonymize.Analyzer, redact bool) *Sensitive {
	return &Sensitive{analyzer: analyzer, redact: redact, logger: telemetry.Scanner("sensitive")}
}

func newSensitive(params map[string]any, deps Deps) (scan.OutputScanner, error) {
	var p sensitiveParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	recognizers, err := nerRecognizers(deps, p.ChunkSize, p.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	patterns, err := anonymize.DefaultPatternRecognizer()
	if err != nil {
		return nil, fmt.Errorf("%w: sensitive: %w", scan.ErrInvalidConfig, err)
	}
	recognizers = append(recognizers, patterns)
	if err := anonymize.CheckEntityTypes(recognizers, p.EntityTypes); err != nil {
		return nil, fmt.Errorf("%w: sensitive: %w", scan.ErrInvalidConfig, err)
	}
	analyzer, err := anonymize.NewAnalyzer(anonymize.AnalyzerConfig{
		Recognizers: recognizers,
		EntityTypes: p.EntityTypes,
		Threshold:   p.Threshold,
		AllowList:   p.AllowList,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: sensitive: %w", scan.ErrInvalidConfig, err)
	}
	return NewSensitive(analyzer, p.Redact), nil
}

// ScanOutput analyzes output. Any detection makes it invalid with the
// highest detection score as risk.
func (s *Sensitive) ScanOutput(ctx context.Context, _, output string) (scan.Result, error) {
	if output == "" {
		return scan.Valid(output), nil
	}

	dets, err := s.analyzer.Analyze(ctx, output)
	if err != nil {
		return scan.Result{}, fmt.Errorf("sensitive: %w", err)
	}
	if len(dets) == 0 {
		return scan.Valid(output), nil
	}

	var risk float64
	text := output
	for i := len(dets) - 1; i >= 0; i-- {
		d := dets[i]
		risk = max(risk, d.Score)
		if s.redact {
			text = text[:d.Start] + "[REDACTED_" + d.EntityType + "]" + text[d.End:]
		}
	}
	s.logger.Warn("found sensitive data in output", "count", len(dets), "redacted", s.redact)
	return scan.Result{Text: text, Valid: false, Risk: scan.RoundScore(risk)}, nil
}
