package scan

import "math"

const (
	// NoRisk is reported when a scanner ran and found nothing.
	NoRisk = 0.0
	// SkippedRisk is reported by scanners that had nothing to inspect.
	SkippedRisk = -1.0
)

// NormalizeRisk maps a raw detector score onto [0, 1] relative to the
// decision threshold. extreme is the end of the detector's scale that means
// "certain violation": 1 for scores where higher is worse, the bottom of
// the scale (0 or -1) where lower is worse.
//
// A score that does not cross the threshold towards extreme yields 0. A
// score equal to extreme yields 1.
func NormalizeRisk(score, threshold, extreme float64) float64 {
	var exceeded bool
	if extreme >= threshold {
		exceeded = score > threshold
	} else {
		exceeded = score < threshold
	}
	if !exceeded {
		return NoRisk
	}

	span := extreme - threshold
	if span == 0 {
		return 1.0
	}
	risk := (score - threshold) / span
	return RoundScore(math.Min(math.Max(risk, 0), 1))
}

// RoundScore rounds a score to two decimals.
func RoundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
