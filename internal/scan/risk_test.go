package scan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/valinor-ai/llmguard/internal/scan"
)

func TestNormalizeRisk(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		threshold float64
		extreme   float64
		want      float64
	}{
		{"below threshold", 0.3, 0.5, 1, 0},
		{"at threshold", 0.5, 0.5, 1, 0},
		{"midway", 0.75, 0.5, 1, 0.5},
		{"at extreme", 1, 0.5, 1, 1},
		{"rounded", 0.92, 0.5, 1, 0.84},
		{"lower is worse, not crossed", 0.1, 0, -1, 0},
		{"lower is worse, midway", -0.65, -0.3, -1, 0.5},
		{"lower is worse, extreme", -1, -0.3, -1, 1},
		{"degenerate span", 1, 1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scan.NormalizeRisk(tt.score, tt.threshold, tt.extreme), 1e-9)
		})
	}
}

func TestNormalizeRisk_Bounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		threshold := rapid.Float64Range(0, 0.99).Draw(t, "threshold")
		score := rapid.Float64Range(-2, 2).Draw(t, "score")

		got := scan.NormalizeRisk(score, threshold, 1)
		if got < 0 || got > 1 {
			t.Fatalf("risk %v out of [0,1]", got)
		}
		if score <= threshold && got != 0 {
			t.Fatalf("score %v under threshold %v gave risk %v", score, threshold, got)
		}
	})
}

func TestRoundScore(t *testing.T) {
	assert.Equal(t, 0.12, scan.RoundScore(0.1234))
	assert.Equal(t, 0.13, scan.RoundScore(0.125001))
	assert.Equal(t, 1.0, scan.RoundScore(0.999))
}
