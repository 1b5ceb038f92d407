package detect

import "time"

// Merge removes every candidate whose boundaries are strictly contained
// inside another candidate's. The containment relation is computed in full
// before the surviving subset is materialized, so no comparison ever sees a
// half-mutated list. Candidates with identical boundaries do not dominate
// each other (strict inequality on both sides) and are both kept.
func Merge(candidates []Candidate) []Candidate {
	if len(candidates) < 2 {
		return candidates
	}

	dominated := make([]bool, len(candidates))
	for i, ci := range candidates {
		for j, cj := range candidates {
			if i == j {
				continue
			}
			if ci.LeftIP > cj.LeftIP && ci.RightIP < cj.RightIP {
				dominated[i] = true
				break
			}
		}
	}

	out := make([]Candidate, 0, len(candidates))
	for i, c := range candidates {
		if !dominated[i] {
			out = append(out, c)
		}
	}
	return out
}

// Translate converts merged candidates to detections, mapping their
// fractional bin boundaries to frequencies with freqAt. The mapping must use
// the same frequency edges as the PSD grid the candidates were found in.
func Translate(candidates []Candidate, freqAt func(float64) float64, ts time.Time, detectionType string) []Detection {
	if len(candidates) == 0 {
		return nil
	}

	out := make([]Detection, len(candidates))
	for i, c := range candidates {
		out[i] = Detection{
			Timestamp: ts,
			StartFreq: freqAt(c.LeftIP),
			EndFreq:   freqAt(c.RightIP),
			Power:     c.Power,
			Type:      detectionType,
		}
	}
	return out
}
