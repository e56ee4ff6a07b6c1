package anonymize

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/valinor-ai/llmguard/internal/model"
)

// NEREntity is a raw entity returned by a NER backend, offsets relative to
// the text it was given.
type NEREntity struct {
	Label string  `json:"label"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// NERClient runs token classification over text.
type NERClient interface {
	Entities(ctx context.Context, text string) ([]NEREntity, error)
}

// DefaultNERLabels maps common model labels onto canonical entity types.
var DefaultNERLabels = map[string]string{
	"PER":          EntityPerson,
	"PERSON":       EntityPerson,
	"ORG":          EntityOrganization,
	"ORGANIZATION": EntityOrganization,
	"LOC":          EntityLocation,
	"LOCATION":     EntityLocation,
	"GPE":          EntityLocation,
}

// NERConfig tunes the NER recognizer.
type NERConfig struct {
	// ChunkSize is the largest slice of text, in bytes, sent in one request.
	ChunkSize int
	// ChunkOverlap is how many bytes consecutive chunks share, so entities
	// cut by a chunk boundary are still seen whole in one chunk.
	ChunkOverlap int
	// Labels overrides DefaultNERLabels. Labels with no mapping are dropped.
	Labels map[string]string
}

// NERRecognizer adapts a NERClient to the Recognizer interface.
type NERRecognizer struct {
	client NERClient
	cfg    NERConfig
}

// NewNERRecognizer creates a recognizer. Overlap must be smaller than the
// chunk size.
func NewNERRecognizer(client NERClient, cfg NERConfig) (*NERRecognizer, error) {
	if client == nil {
		return nil, fmt.Errorf("ner recognizer: client is required")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 2048
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("ner recognizer: chunk overlap %d must be in [0, %d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if cfg.Labels == nil {
		cfg.Labels = DefaultNERLabels
	}
	return &NERRecognizer{client: client, cfg: cfg}, nil
}

// EntityTypes returns the canonical types the label map can produce.
func (r *NERRecognizer) EntityTypes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range r.cfg.Labels {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Recognize sends text to the backend chunk by chunk and maps the results
// back to offsets in text.
func (r *NERRecognizer) Recognize(ctx context.Context, text string, entities []string) ([]Detection, error) {
	seen := make(map[Detection]int)
	var out []Detection

	for _, c := range chunks(text, r.cfg.ChunkSize, r.cfg.ChunkOverlap) {
		raw, err := r.client.Entities(ctx, text[c.start:c.end])
		if err != nil {
			return nil, fmt.Errorf("ner: %w", err)
		}
		for _, e := range raw {
			entityType, ok := r.cfg.Labels[normalizeLabel(e.Label)]
			if !ok || !wants(entities, entityType) {
				continue
			}
			d := Detection{EntityType: entityType, Start: e.Start + c.start, End: e.End + c.start}
			if !validSpan(d, len(text)) {
				continue
			}
			if i, dup := seen[d]; dup {
				out[i].Score = max(out[i].Score, e.Score)
				continue
			}
			seen[d] = len(out)
			d.Score = e.Score
			out = append(out, d)
		}
	}
	return out, nil
}

// normalizeLabel strips BIO prefixes ("B-PER", "I-PER") and upper-cases.
func normalizeLabel(label string) string {
	label = strings.ToUpper(strings.TrimSpace(label))
	if len(label) > 2 && (label[:2] == "B-" || label[:2] == "I-") {
		label = label[2:]
	}
	return label
}

type chunk struct{ start, end int }

// chunks splits text into overlapping windows that never cut a rune.
func chunks(text string, size, overlap int) []chunk {
	if len(text) <= size {
		return []chunk{{0, len(text)}}
	}
	var out []chunk
	start := 0
	for {
		end := start + size
		if end >= len(text) {
			out = append(out, chunk{start, len(text)})
			return out
		}
		for end > start && !utf8.RuneStart(text[end]) {
			end--
		}
		if end == start {
			_, n := utf8.DecodeRuneInString(text[start:])
			end = start + n
		}
		out = append(out, chunk{start, end})
		if end == len(text) {
			return out
		}

		next := end - overlap
		for next > start && next < len(text) && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}
}

// HTTPNERClient calls POST <base>/ner on a token classification service.
type HTTPNERClient struct {
	client *model.Client
	model  string
}

// NewHTTPNERClient creates a client for the runtime's NER service.
func NewHTTPNERClient(rt model.Runtime, modelName string) *HTTPNERClient {
	return &HTTPNERClient{client: model.NewClient(rt), model: modelName}
}

type nerRequest struct {
	Text   string `json:"text"`
	Model  string `json:"model,omitempty"`
	Device string `json:"device,omitempty"`
}

type nerResponse struct {
	Entities []NEREntity `json:"entities"`
}

// Entities returns the backend's entities for text.
func (c *HTTPNERClient) Entities(ctx context.Context, text string) ([]NEREntity, error) {
	var resp nerResponse
	req := nerRequest{Text: text, Model: c.model, Device: c.client.Device()}
	if err := c.client.Post(ctx, "/ner", req, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}
