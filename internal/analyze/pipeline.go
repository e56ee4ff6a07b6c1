// Package analyze exposes the scanner chains over HTTP and keeps one vault
// per conversation session.
package analyze

import (
	"context"
	"fmt"

	"github.com/valinor-ai/llmguard/internal/platform/config"
	"github.com/valinor-ai/llmguard/internal/scan"
	"github.com/valinor-ai/llmguard/internal/scanners"
	"github.com/valinor-ai/llmguard/internal/vault"
)

// Pipeline holds the configured input and output chains. Scanners that
// share the session vault are rebuilt per session; the rest are built once
// and shared.
type Pipeline struct {
	registry *scanners.Registry
	inputs   []scanners.Spec
	outputs  []scanners.Spec
	deps     scanners.Deps

	in  []scan.NamedInput
	out []scan.NamedOutput
}

// vaultBound scanner types read or write the session vault.
var vaultBound = map[string]bool{"anonymize": true, "deanonymize": true}

// NewPipeline builds both chains once and returns the pipeline.
// deps.Vault is ignored; each Build supplies its own.
func NewPipeline(registry *scanners.Registry, inputs, outputs []scanners.Spec, deps scanners.Deps) (*Pipeline, error) {
	if registry == nil {
		registry = scanners.DefaultRegistry()
	}
	p := &Pipeline{registry: registry, inputs: inputs, outputs: outputs, deps: deps}
	shared := p.withVault(vault.New())
	var err error
	if p.in, err = registry.BuildInput(inputs, shared); err != nil {
		return nil, err
	}
	if p.out, err = registry.BuildOutput(outputs, shared); err != nil {
		return nil, err
	}
	return p, nil
}

// Build assembles both chains around v.
func (p *Pipeline) Build(v *vault.Vault) ([]scan.NamedInput, []scan.NamedOutput, error) {
	in, err := p.buildInput(v)
	if err != nil {
		return nil, nil, err
	}
	out, err := p.buildOutput(v)
	if err != nil {
		return nil, nil, err
	}
	return in, out, nil
}

func (p *Pipeline) buildInput(v *vault.Vault) ([]scan.NamedInput, error) {
	chain := append([]scan.NamedInput(nil), p.in...)
	deps := p.withVault(v)
	for i, spec := range p.inputs {
		if !vaultBound[spec.Type] {
			continue
		}
		built, err := p.registry.BuildInput([]scanners.Spec{spec}, deps)
		if err != nil {
			return nil, err
		}
		chain[i] = built[0]
	}
	return chain, nil
}

func (p *Pipeline) buildOutput(v *vault.Vault) ([]scan.NamedOutput, error) {
	chain := append([]scan.NamedOutput(nil), p.out...)
	deps := p.withVault(v)
	for i, spec := range p.outputs {
		if !vaultBound[spec.Type] {
			continue
		}
		built, err := p.registry.BuildOutput([]scanners.Spec{spec}, deps)
		if err != nil {
			return nil, err
		}
		chain[i] = built[0]
	}
	return chain, nil
}

// ScanPrompt runs the input chain with v as the session vault.
func (p *Pipeline) ScanPrompt(ctx context.Context, v *vault.Vault, prompt string, failFast bool) (scan.Report, error) {
	in, err := p.buildInput(v)
	if err != nil {
		return scan.Report{}, err
	}
	return scan.ScanPrompt(ctx, in, prompt, failFast)
}

// ScanOutput runs the output chain with v as the session vault.
func (p *Pipeline) ScanOutput(ctx context.Context, v *vault.Vault, prompt, output string, failFast bool) (scan.Report, error) {
	out, err := p.buildOutput(v)
	if err != nil {
		return scan.Report{}, err
	}
	return scan.ScanOutput(ctx, out, prompt, output, failFast)
}

func (p *Pipeline) withVault(v *vault.Vault) scanners.Deps {
	deps := p.deps
	deps.Vault = v
	return deps
}

// Specs converts configured scanner entries into registry specs.
func Specs(entries []config.ScannerSpec) []scanners.Spec {
	out := make([]scanners.Spec, 0, len(entries))
	for _, e := range entries {
		out = append(out, scanners.Spec{Name: e.Name, Type: e.Type, Params: e.Params})
	}
	return out
}

// FromConfig builds a pipeline from the scanners section of cfg.
func FromConfig(cfg *config.Config, deps scanners.Deps) (*Pipeline, error) {
	p, err := NewPipeline(scanners.DefaultRegistry(), Specs(cfg.Scanners.Input), Specs(cfg.Scanners.Output), deps)
	if err != nil {
		return nil, fmt.Errorf("building scanner pipeline: %w", err)
	}
	return p, nil
}
