package anonymize

import "regexp"

// DefaultBridgePattern matches gaps that may be bridged between two
// detections of the same type.
const DefaultBridgePattern = `^\s*$`

// MergeSameType folds intersecting detections of the same entity type into
// their union, keeping the highest score. Merging is repeated until no
// same-type pair intersects. The merged detection takes the list position
// of the earlier of the two.
func MergeSameType(dets []Detection) []Detection {
	out := make([]Detection, len(dets))
	copy(out, dets)

	for merged := true; merged; {
		merged = false
	scan:
		for i := 0; i < len(out); i++ {
			for j := i + 1; j < len(out); j++ {
				a, b := out[i], out[j]
				if a.EntityType != b.EntityType || !a.Overlaps(b) {
					continue
				}
				out[i] = Detection{
					EntityType: a.EntityType,
					Start:      min(a.Start, b.Start),
					End:        max(a.End, b.End),
					Score:      max(a.Score, b.Score),
				}
				out = append(out[:j], out[j+1:]...)
				merged = true
				break scan
			}
		}
	}
	return out
}

// RemoveConflicts keeps detections in list order, dropping any that
// overlaps one already kept regardless of entity type.
func RemoveConflicts(dets []Detection) []Detection {
	var kept []Detection
	for _, d := range dets {
		conflict := false
		for _, k := range kept {
			if d.Overlaps(k) {
				conflict = true
				break
			}
		}
		if !conflict {
			kept = append(kept, d)
		}
	}
	return kept
}

// BridgeWhitespace merges neighbouring detections of the same type when the
// text between them matches bridge, so "John   Doe" found as two PERSON
// spans becomes one. dets must not overlap; the result is sorted by start.
func BridgeWhitespace(text string, dets []Detection, bridge *regexp.Regexp) []Detection {
	if len(dets) == 0 {
		return nil
	}
	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sortByStart(sorted)

	out := []Detection{sorted[0]}
	for _, d := range sorted[1:] {
		last := &out[len(out)-1]
		if d.EntityType == last.EntityType && d.Start >= last.End && bridge.MatchString(text[last.End:d.Start]) {
			last.End = d.End
			last.Score = max(last.Score, d.Score)
			continue
		}
		out = append(out, d)
	}
	return out
}
