// Package scanners holds the leaf scanners and the registry that builds
// scanner chains from configuration.
package scanners

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-viper/mapstructure/v2"

	"github.com/valinor-ai/llmguard/internal/anonymize"
	"github.com/valinor-ai/llmguard/internal/model"
	"github.com/valinor-ai/llmguard/internal/scan"
	"github.com/valinor-ai/llmguard/internal/vault"
)

// ErrUnknownScanner is returned when a spec names an unregistered type.
var ErrUnknownScanner = errors.New("unknown scanner type")

// Spec names one scanner in a chain.
type Spec struct {
	Name   string
	Type   string
	Params map[string]any
}

// Deps are the shared collaborators handed to every factory.
type Deps struct {
	// Vault is the session vault shared by anonymize and deanonymize.
	Vault   *vault.Vault
	Runtime model.Runtime
	// Classifier overrides the HTTP classifier built from Runtime.
	Classifier model.Classifier
	// NER enables the model-backed recognizer in anonymize and sensitive.
	NER anonymize.NERClient
}

// classifier returns the configured backend, or nil when the runtime has
// no model service.
func (d Deps) classifier() model.Classifier {
	if d.Classifier != nil {
		return d.Classifier
	}
	if d.Runtime.BaseURL != "" {
		return model.NewHTTPClassifier(d.Runtime)
	}
	return nil
}

func (d Deps) requireClassifier(tag string) (model.Classifier, error) {
	c := d.classifier()
	if c == nil {
		return nil, fmt.Errorf("%w: %s: no classifier backend configured", scan.ErrInvalidConfig, tag)
	}
	return c, nil
}

// InputFactory builds an input scanner from decoded params.
type InputFactory func(params map[string]any, deps Deps) (scan.InputScanner, error)

// OutputFactory builds an output scanner from decoded params.
type OutputFactory func(params map[string]any, deps Deps) (scan.OutputScanner, error)

// Registry maps type tags to factories.
type Registry struct {
	inputs  map[string]InputFactory
	outputs map[string]OutputFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		inputs:  make(map[string]InputFactory),
		outputs: make(map[string]OutputFactory),
	}
}

// RegisterInput adds or replaces the input factory for tag.
func (r *Registry) RegisterInput(tag string, f InputFactory) {
	r.inputs[tag] = f
}

// RegisterOutput adds or replaces the output factory for tag.
func (r *Registry) RegisterOutput(tag string, f OutputFactory) {
	r.outputs[tag] = f
}

// InputTypes lists registered input tags in sorted order.
func (r *Registry) InputTypes() []string {
	return sortedKeys(r.inputs)
}

// OutputTypes lists registered output tags in sorted order.
func (r *Registry) OutputTypes() []string {
	return sortedKeys(r.outputs)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildInput instantiates specs in order.
func (r *Registry) BuildInput(specs []Spec, deps Deps) ([]scan.NamedInput, error) {
	out := make([]scan.NamedInput, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if err := checkName(spec, seen); err != nil {
			return nil, err
		}
		f, ok := r.inputs[spec.Type]
		if !ok {
			return nil, fmt.Errorf("%w: input %q", ErrUnknownScanner, spec.Type)
		}
		s, err := f(spec.Params, deps)
		if err != nil {
			return nil, fmt.Errorf("building input scanner %s: %w", displayName(spec), err)
		}
		out = append(out, scan.NamedInput{Name: spec.Name, Scanner: s})
	}
	slog.Debug("input chain built", "scanners", len(out))
	return out, nil
}

// BuildOutput instantiates specs in order.
func (r *Registry) BuildOutput(specs []Spec, deps Deps) ([]scan.NamedOutput, error) {
	out := make([]scan.NamedOutput, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if err := checkName(spec, seen); err != nil {
			return nil, err
		}
		f, ok := r.outputs[spec.Type]
		if !ok {
			return nil, fmt.Errorf("%w: output %q", ErrUnknownScanner, spec.Type)
		}
		s, err := f(spec.Params, deps)
		if err != nil {
			return nil, fmt.Errorf("building output scanner %s: %w", displayName(spec), err)
		}
		out = append(out, scan.NamedOutput{Name: spec.Name, Scanner: s})
	}
	slog.Debug("output chain built", "scanners", len(out))
	return out, nil
}

func displayName(spec Spec) string {
	if spec.Name != "" {
		return spec.Name
	}
	return spec.Type
}

// checkName rejects two specs that would report under the same key.
func checkName(spec Spec, seen map[string]bool) error {
	name := displayName(spec)
	if seen[name] {
		return fmt.Errorf("%w: duplicate scanner name %q", scan.ErrInvalidConfig, name)
	}
	seen[name] = true
	return nil
}

// decode copies params into out. Unknown keys are configuration errors.
func decode(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", scan.ErrInvalidConfig, err)
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("%w: %w", scan.ErrInvalidConfig, err)
	}
	return nil
}

// DefaultRegistry registers every built-in scanner.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterInput("anonymize", newAnonymize)
	r.RegisterInput("prompt_injection", newPromptInjection)
	r.RegisterInput("regex", func(p map[string]any, _ Deps) (scan.InputScanner, error) { return newRegex(p) })
	r.RegisterInput("ban_substrings", func(p map[string]any, _ Deps) (scan.InputScanner, error) { return newBanSubstrings(p) })
	r.RegisterInput("secrets", newSecrets)
	r.RegisterInput("invisible_text", newInvisibleText)
	r.RegisterInput("token_limit", newTokenLimit)
	r.RegisterInput("toxicity", func(p map[string]any, d Deps) (scan.InputScanner, error) { return newToxicity(p, d) })
	r.RegisterInput("gibberish", func(p map[string]any, d Deps) (scan.InputScanner, error) { return newGibberish(p, d) })
	r.RegisterInput("ban_topics", func(p map[string]any, d Deps) (scan.InputScanner, error) { return newBanTopics(p, d) })
	r.RegisterInput("sentiment", func(p map[string]any, d Deps) (scan.InputScanner, error) { return newSentiment(p, d) })

	r.RegisterOutput("deanonymize", newDeanonymize)
	r.RegisterOutput("regex", func(p map[string]any, _ Deps) (scan.OutputScanner, error) { return newRegex(p) })
	r.RegisterOutput("ban_substrings", func(p map[string]any, _ Deps) (scan.OutputScanner, error) { return newBanSubstrings(p) })
	r.RegisterOutput("toxicity", func(p map[string]any, d Deps) (scan.OutputScanner, error) { return newToxicity(p, d) })
	r.RegisterOutput("gibberish", func(p map[string]any, d Deps) (scan.OutputScanner, error) { return newGibberish(p, d) })
	r.RegisterOutput("ban_topics", func(p map[string]any, d Deps) (scan.OutputScanner, error) { return newBanTopics(p, d) })
	r.RegisterOutput("sentiment", func(p map[string]any, d Deps) (scan.OutputScanner, error) { return newSentiment(p, d) })
	r.RegisterOutput("no_refusal", func(p map[string]any, d Deps) (scan.OutputScanner, error) { return newNoRefusal(p, d) })
	r.RegisterOutput("sensitive", newSensitive)

	return r
}
