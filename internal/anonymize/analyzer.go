package anonymize

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// AnalyzerConfig configures an Analyzer.
type AnalyzerConfig struct {
	Recognizers []Recognizer
	// EntityTypes restricts detection; empty means all.
	EntityTypes []string
	// Threshold drops detections scoring below it.
	Threshold float64
	// AllowList values are never reported, matched case-insensitively
	// against the detected text.
	AllowList []string
	// BridgePattern decides which gaps join same-type neighbours.
	// Empty means DefaultBridgePattern.
	BridgePattern string
}

// Analyzer composes recognizers and resolves their detections into a
// non-overlapping set.
type Analyzer struct {
	recognizers []Recognizer
	entities    []string
	threshold   float64
	allow       map[string]struct{}
	bridge      *regexp.Regexp
}

// NewAnalyzer validates cfg and builds an Analyzer.
func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	pattern := cfg.BridgePattern
	if pattern == "" {
		pattern = DefaultBridgePattern
	}
	bridge, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling bridge pattern: %w", err)
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold %v must be in [0, 1]", cfg.Threshold)
	}

	allow := make(map[string]struct{}, len(cfg.AllowList))
	for _, a := range cfg.AllowList {
		allow[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}

	return &Analyzer{
		recognizers: cfg.Recognizers,
		entities:    cfg.EntityTypes,
		threshold:   cfg.Threshold,
		allow:       allow,
		bridge:      bridge,
	}, nil
}

// Prepare blanks single quotes so tokenizers do not split on them. The
// result has the same byte length as text, so offsets carry over.
func Prepare(text string) string {
	return strings.ReplaceAll(text, "'", " ")
}

// Analyze returns resolved detections over text, sorted by start. Offsets
// are valid for both text and Prepare(text).
func (a *Analyzer) Analyze(ctx context.Context, text string) ([]Detection, error) {
	prepared := Prepare(text)

	var all []Detection
	for _, r := range a.recognizers {
		dets, err := r.Recognize(ctx, prepared, a.entities)
		if err != nil {
			return nil, err
		}
		for _, d := range dets {
			if !validSpan(d, len(prepared)) || d.Score < a.threshold || !wants(a.entities, d.EntityType) {
				continue
			}
			if _, ok := a.allow[strings.ToLower(strings.TrimSpace(prepared[d.Start:d.End]))]; ok {
				continue
			}
			all = append(all, d)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}

	merged := MergeSameType(all)
	// The most confident detection wins a cross-type conflict; ties keep
	// recognizer order.
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	resolved := RemoveConflicts(merged)
	return BridgeWhitespace(prepared, resolved, a.bridge), nil
}
