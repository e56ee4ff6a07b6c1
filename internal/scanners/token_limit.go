package scanners

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/valinor-ai/llmguard/internal/platform/telemetry"
	"github.com/valinor-ai/llmguard/internal/scan"
)

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

var (
	loaderOnce sync.Once
	encMu      sync.Mutex
	encodings  = map[string]*tiktoken.Tiktoken{}
)

// encoding loads name from the embedded BPE ranks, once per process.
func encoding(name string) (*tiktoken.Tiktoken, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	encMu.Lock()
	defer encMu.Unlock()
	if enc, ok := encodings[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	encodings[name] = enc
	return enc, nil
}

type tokenLimitParams struct {
	Limit    int    `mapstructure:"limit"`
	Encoding string `mapstructure:"encoding"`
}

// TokenLimit truncates prompts that exceed a token budget.
type TokenLimit struct {
	limit int
	enc   *tiktoken.Tiktoken
}

// NewTokenLimit creates the scanner. Limit defaults to 4096 and the
// encoding to cl100k_base.
func NewTokenLimit(limit int, encodingName string) (*TokenLimit, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: token limit: limit must not be negative", scan.ErrInvalidConfig)
	}
	if limit == 0 {
		limit = 4096
	}
	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	enc, err := encoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("%w: token limit: encoding %q: %w", scan.ErrInvalidConfig, encodingName, err)
	}
	return &TokenLimit{limit: limit, enc: enc}, nil
}

func newTokenLimit(params map[string]any, _ Deps) (scan.InputScanner, error) {
	var p tokenLimitParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return NewTokenLimit(p.Limit, p.Encoding)
}

// Count returns the number of tokens in text.
func (t *TokenLimit) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Scan keeps the first limit tokens of prompt. A truncated prompt is
// invalid.
func (t *TokenLimit) Scan(_ context.Context, prompt string) (scan.Result, error) {
	if prompt == "" {
		return scan.Valid(prompt), nil
	}

	tokens := t.enc.Encode(prompt, nil, nil)
	if len(tokens) <= t.limit {
		return scan.Valid(prompt), nil
	}

	// A cut inside a multi-byte character leaves a partial rune at the end.
	text := t.enc.Decode(tokens[:t.limit])
	for text != "" && !utf8.ValidString(text) {
		text = text[:len(text)-1]
	}

	telemetry.Scanner("token_limit").Warn("prompt exceeds token limit", "tokens", len(tokens), "limit", t.limit)
	return scan.Result{Text: text, Valid: false, Risk: 1}, nil
}
