package analyze

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valinor-ai/llmguard/internal/platform/config"
	"github.com/valinor-ai/llmguard/internal/scan"
	"github.com/valinor-ai/llmguard/internal/scanners"
	"github.com/valinor-ai/llmguard/internal/vault"
)

func TestNewPipeline_RejectsBadChains(t *testing.T) {
	_, err := NewPipeline(nil, []scanners.Spec{{Type: "telepathy"}}, nil, scanners.Deps{})
	assert.ErrorIs(t, err, scanners.ErrUnknownScanner)

	_, err = NewPipeline(nil, nil, []scanners.Spec{{Type: "regex"}}, scanners.Deps{})
	assert.ErrorIs(t, err, scan.ErrInvalidConfig)
}

func TestPipeline_SharesVaultPerBuild(t *testing.T) {
	inputs, outputs := defaultSpecs()
	p, err := NewPipeline(nil, inputs, outputs, scanners.Deps{})
	require.NoError(t, err)

	ctx := context.Background()
	v := vault.New()
	in, err := p.ScanPrompt(ctx, v, "Call Alice at alice@example.com", false)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Len())

	out, err := p.ScanOutput(ctx, v, in.Text, "Done: [REDACTED_EMAIL_ADDRESS_1]", false)
	require.NoError(t, err)
	assert.Equal(t, "Done: alice@example.com", out.Text)

	other, err := p.ScanOutput(ctx, vault.New(), in.Text, "Done: [REDACTED_EMAIL_ADDRESS_1]", false)
	require.NoError(t, err)
	assert.Equal(t, "Done: [REDACTED_EMAIL_ADDRESS_1]", other.Text)
}

func TestPipeline_Build(t *testing.T) {
	inputs, outputs := defaultSpecs()
	p, err := NewPipeline(nil, inputs, outputs, scanners.Deps{})
	require.NoError(t, err)

	in, out, err := p.Build(vault.New())
	require.NoError(t, err)
	assert.Len(t, in, 2)
	assert.Len(t, out, 1)
}

func TestPipeline_RebuildsOnlyVaultBoundScanners(t *testing.T) {
	inputs := []scanners.Spec{
		{Name: "Anonymize", Type: "anonymize"},
		{Name: "Invisible", Type: "invisible_text"},
	}
	outputs := []scanners.Spec{
		{Name: "Deanonymize", Type: "deanonymize"},
		{Name: "Banned", Type: "ban_substrings", Params: map[string]any{"substrings": []any{"forbidden"}}},
	}
	p, err := NewPipeline(nil, inputs, outputs, scanners.Deps{})
	require.NoError(t, err)

	in1, out1, err := p.Build(vault.New())
	require.NoError(t, err)
	in2, out2, err := p.Build(vault.New())
	require.NoError(t, err)

	assert.NotSame(t, in1[0].Scanner, in2[0].Scanner)
	assert.Equal(t, in1[1].Scanner, in2[1].Scanner)
	assert.NotSame(t, out1[0].Scanner, out2[0].Scanner)
	assert.Same(t, out1[1].Scanner, out2[1].Scanner)
	assert.Equal(t, []string{"Anonymize", "Invisible"}, []string{in2[0].Name, in2[1].Name})
}

func TestFromConfig_DefaultChains(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	p, err := FromConfig(cfg, scanners.Deps{})
	require.NoError(t, err)

	in, out, err := p.Build(vault.New())
	require.NoError(t, err)
	assert.Equal(t, "Anonymize", in[0].Name)
	assert.Equal(t, "Deanonymize", out[0].Name)
}

func TestSpecs(t *testing.T) {
	got := Specs([]config.ScannerSpec{{Name: "A", Type: "regex", Params: map[string]any{"bad_patterns": []any{"x"}}}})
	assert.Equal(t, []scanners.Spec{{Name: "A", Type: "regex", Params: map[string]any{"bad_patterns": []any{"x"}}}}, got)
}
