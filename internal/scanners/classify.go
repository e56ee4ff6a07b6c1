package scanners

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valinor-ai/llmguard/internal/model"
	"github.com/valinor-ai/llmguard/internal/platform/telemetry"
	"github.com/valinor-ai/llmguard/internal/scan"
)

const (
	taskTextClassification = "text-classification"
	taskZeroShot           = "zero-shot-classification"
	taskSentiment          = "sentiment-analysis"
)

type classifierParams struct {
	Model     string  `mapstructure:"model"`
	Threshold float64 `mapstructure:"threshold"`
	MatchType string  `mapstructure:"match_type"`
}

// Classified flags text whose score on any of its labels exceeds a
// threshold. Higher scores are worse.
type Classified struct {
	backend    model.Classifier
	task       string
	model      string
	labels     []string
	candidates []string
	threshold  float64
	sentences  bool
	logger     *slog.Logger
}

// ClassifiedConfig configures a Classified scanner.
type ClassifiedConfig struct {
	Name  string
	Task  string
	Model string
	// Labels whose highest score is compared with the threshold.
	Labels []string
	// Candidates are sent as zero-shot labels.
	Candidates []string
	Threshold  float64
	// MatchType is "full" or "sentence".
	MatchType string
}

// NewClassified validates cfg.
func NewClassified(backend model.Classifier, cfg ClassifiedConfig) (*Classified, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: %s: classifier backend is required", scan.ErrInvalidConfig, cfg.Name)
	}
	if len(cfg.Labels) == 0 {
		return nil, fmt.Errorf("%w: %s: at least one label is required", scan.ErrInvalidConfig, cfg.Name)
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("%w: %s: threshold %v must be in (0, 1]", scan.ErrInvalidConfig, cfg.Name, cfg.Threshold)
	}
	var sentences bool
	switch cfg.MatchType {
	case "", "full":
	case "sentence":
		sentences = true
	default:
		return nil, fmt.Errorf("%w: %s: unknown match type %q", scan.ErrInvalidConfig, cfg.Name, cfg.MatchType)
	}
	if cfg.Task == "" {
		cfg.Task = taskTextClassification
	}
	return &Classified{
		backend:    backend,
		task:       cfg.Task,
		model:      cfg.Model,
		labels:     cfg.Labels,
		candidates: cfg.Candidates,
		threshold:  cfg.Threshold,
		sentences:  sentences,
		logger:     telemetry.Scanner(cfg.Name),
	}, nil
}

// Scan classifies a prompt.
func (c *Classified) Scan(ctx context.Context, prompt string) (scan.Result, error) {
	return c.check(ctx, prompt)
}

// ScanOutput classifies a model output.
func (c *Classified) ScanOutput(ctx context.Context, _, output string) (scan.Result, error) {
	return c.check(ctx, output)
}

func (c *Classified) check(ctx context.Context, text string) (scan.Result, error) {
	if strings.TrimSpace(text) == "" {
		return scan.Valid(text), nil
	}

	parts := []string{text}
	if c.sentences {
		parts = model.Sentences(text)
	}

	var highest float64
	for _, part := range parts {
		labels, err := c.backend.Classify(ctx, model.Request{
			Task:   c.task,
			Model:  c.model,
			Text:   part,
			Labels: c.candidates,
		})
		if err != nil {
			return scan.Result{}, fmt.Errorf("classifying: %w", err)
		}
		highest = max(highest, model.ScoreOf(labels, c.labels...))
		if highest > c.threshold {
			break
		}
	}

	if highest > c.threshold {
		c.logger.Warn("text flagged", "score", highest, "threshold", c.threshold)
		return scan.Result{Text: text, Valid: false, Risk: scan.NormalizeRisk(highest, c.threshold, 1)}, nil
	}
	c.logger.Debug("text passed", "score", highest)
	return scan.Valid(text), nil
}

func classifiedFrom(params map[string]any, deps Deps, cfg ClassifiedConfig) (*Classified, error) {
	var p classifierParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return buildClassified(deps, cfg, p)
}

func buildClassified(deps Deps, cfg ClassifiedConfig, p classifierParams) (*Classified, error) {
	backend, err := deps.requireClassifier(cfg.Name)
	if err != nil {
		return nil, err
	}
	if p.Model != "" {
		cfg.Model = p.Model
	}
	if p.Threshold != 0 {
		cfg.Threshold = p.Threshold
	}
	cfg.MatchType = p.MatchType
	return NewClassified(backend, cfg)
}

func newToxicity(params map[string]any, deps Deps) (*Classified, error) {
	return classifiedFrom(params, deps, ClassifiedConfig{
		Name:      "toxicity",
		Model:     "unitary/unbiased-toxic-roberta",
		Labels:    []string{"toxicity", "severe_toxicity", "obscene", "threat", "insult", "identity_attack", "sexual_explicit"},
		Threshold: 0.5,
	})
}

func newGibberish(params map[string]any, deps Deps) (*Classified, error) {
	return classifiedFrom(params, deps, ClassifiedConfig{
		Name:      "gibberish",
		Model:     "madhurjindal/autonlp-Gibberish-Detector-492513457",
		Labels:    []string{"word salad", "noise", "mild gibberish"},
		Threshold: 0.7,
	})
}

func newNoRefusal(params map[string]any, deps Deps) (*Classified, error) {
	return classifiedFrom(params, deps, ClassifiedConfig{
		Name:      "no_refusal",
		Model:     "ProtectAI/distilroberta-base-rejection-v1",
		Labels:    []string{"REJECTION"},
		Threshold: 0.75,
	})
}

type banTopicsParams struct {
	Topics    []string `mapstructure:"topics"`
	Model     string   `mapstructure:"model"`
	Threshold float64  `mapstructure:"threshold"`
	MatchType string   `mapstructure:"match_type"`
}

func newBanTopics(params map[string]any, deps Deps) (*Classified, error) {
	var p banTopicsParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if len(p.Topics) == 0 {
		return nil, fmt.Errorf("%w: ban_topics: topics are required", scan.ErrInvalidConfig)
	}
	return buildClassified(deps, ClassifiedConfig{
		Name:       "ban_topics",
		Task:       taskZeroShot,
		Model:      "MoritzLaurer/deberta-v3-base-zeroshot-v1.1-all-33",
		Labels:     p.Topics,
		Candidates: p.Topics,
		Threshold:  0.6,
	}, classifierParams{Model: p.Model, Threshold: p.Threshold, MatchType: p.MatchType})
}

type sentimentParams struct {
	Model     string  `mapstructure:"model"`
	Threshold float64 `mapstructure:"threshold"`
}

// Sentiment flags text whose compound sentiment falls below a threshold.
// Compound is the positive score minus the negative score, in [-1, 1];
// lower is worse.
type Sentiment struct {
	backend   model.Classifier
	model     string
	threshold float64
	logger    *slog.Logger
}

// DefaultSentimentThreshold is used when no threshold is configured.
const DefaultSentimentThreshold = -0.3

// NewSentiment validates the threshold, which must lie in [-1, 1].
func NewSentiment(backend model.Classifier, modelName string, threshold float64) (*Sentiment, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: sentiment: classifier backend is required", scan.ErrInvalidConfig)
	}
	if threshold < -1 || threshold > 1 {
		return nil, fmt.Errorf("%w: sentiment: threshold %v must be in [-1, 1]", scan.ErrInvalidConfig, threshold)
	}
	if modelName == "" {
		modelName = "cardiffnlp/twitter-roberta-base-sentiment-latest"
	}
	return &Sentiment{
		backend:   backend,
		model:     modelName,
		threshold: threshold,
		logger:    telemetry.Scanner("sentiment"),
	}, nil
}

func newSentiment(params map[string]any, deps Deps) (*Sentiment, error) {
	p := sentimentParams{Threshold: DefaultSentimentThreshold}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	backend, err := deps.requireClassifier("sentiment")
	if err != nil {
		return nil, err
	}
	return NewSentiment(backend, p.Model, p.Threshold)
}

// Scan scores a prompt.
func (s *Sentiment) Scan(ctx context.Context, prompt string) (scan.Result, error) {
	return s.check(ctx, prompt)
}

// ScanOutput scores a model output.
func (s *Sentiment) ScanOutput(ctx context.Context, _, output string) (scan.Result, error) {
	return s.check(ctx, output)
}

func (s *Sentiment) check(ctx context.Context, text string) (scan.Result, error) {
	if strings.TrimSpace(text) == "" {
		return scan.Valid(text), nil
	}
	labels, err := s.backend.Classify(ctx, model.Request{Task: taskSentiment, Model: s.model, Text: text})
	if err != nil {
		return scan.Result{}, fmt.Errorf("classifying sentiment: %w", err)
	}
	compound := model.ScoreOf(labels, "positive", "pos") - model.ScoreOf(labels, "negative", "neg")

	if compound < s.threshold {
		s.logger.Warn("negative sentiment", "compound", compound, "threshold", s.threshold)
		return scan.Result{Text: text, Valid: false, Risk: scan.NormalizeRisk(compound, s.threshold, -1)}, nil
	}
	s.logger.Debug("sentiment within threshold", "compound", compound)
	return scan.Valid(text), nil
}
