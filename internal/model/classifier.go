package model

import (
	"context"
	"regexp"
	"strings"
)

// Request asks a classifier to score text.
type Request struct {
	Task   string   `json:"task"`             // e.g. "text-classification", "zero-shot-classification"
	Model  string   `json:"model"`            // backend model identifier
	Text   string   `json:"text"`
	Labels []string `json:"labels,omitempty"` // candidate labels for zero-shot tasks
}

// Label is one scored class.
type Label struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Classifier scores text against a set of labels.
type Classifier interface {
	Classify(ctx context.Context, req Request) ([]Label, error)
}

// HTTPClassifier calls POST <base>/classify.
type HTTPClassifier struct {
	client *Client
}

// NewHTTPClassifier creates a classifier backed by the runtime's service.
func NewHTTPClassifier(rt Runtime) *HTTPClassifier {
	return &HTTPClassifier{client: NewClient(rt)}
}

type classifyRequest struct {
	Request
	Device string `json:"device,omitempty"`
}

type classifyResponse struct {
	Labels []Label `json:"labels"`
}

// Classify sends the request and returns the scored labels.
func (c *HTTPClassifier) Classify(ctx context.Context, req Request) ([]Label, error) {
	var resp classifyResponse
	if err := c.client.Post(ctx, "/classify", classifyRequest{Request: req, Device: c.client.Device()}, &resp); err != nil {
		return nil, err
	}
	return resp.Labels, nil
}

// ScoreOf returns the highest score among labels whose name matches one of
// names, case-insensitively. It returns 0 when none match.
func ScoreOf(labels []Label, names ...string) float64 {
	var best float64
	for _, l := range labels {
		for _, n := range names {
			if strings.EqualFold(l.Name, n) && l.Score > best {
				best = l.Score
			}
		}
	}
	return best
}

// Top returns the highest scoring label.
func Top(labels []Label) (Label, bool) {
	if len(labels) == 0 {
		return Label{}, false
	}
	best := labels[0]
	for _, l := range labels[1:] {
		if l.Score > best.Score {
			best = l
		}
	}
	return best, true
}

var sentenceEnd = regexp.MustCompile(`[.!?\n]+\s*`)

// Sentences splits text on terminal punctuation and newlines, dropping
// blank parts.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentenceEnd.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
