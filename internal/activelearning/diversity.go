package activelearning

import "math"

// IntraClassDiversity measures how redundant a candidate image is with the
// images already selected.
//
// For every class of the candidate it takes the best cosine match against the
// same class in any selected prototype, then returns the smallest of those
// matches. Classes without a positive match are left out. The result is 0
// when nothing is selected yet or no class matches at all.
func IntraClassDiversity(candidate Prototype, selected []Prototype) float64 {
	if len(selected) == 0 {
		return 0
	}

	minMax := math.Inf(1)
	for c, proto := range candidate {
		best := 0.0
		for _, sel := range selected {
			if other, ok := sel[c]; ok {
				best = math.Max(best, CosineSimilarity(proto, other))
			}
		}
		if best > 0 {
			minMax = math.Min(minMax, best)
		}
	}
	if math.IsInf(minMax, 1) {
		return 0
	}
	return minMax
}

// InterClassPresence reports which still-open minority classes an image shows
// with confidence above threshold. remaining is indexed by class id. It
// returns the present classes with their best confidence and the overall
// best confidence among them, 0 when none is present.
func InterClassPresence(classes []int, confidences []float64, remaining []bool, threshold float64) (map[int]float64, float64) {
	best := make(map[int]float64)
	for i, c := range classes {
		if c < 0 || c >= len(remaining) || !remaining[c] {
			continue
		}
		if prev, ok := best[c]; !ok || confidences[i] > prev {
			best[c] = confidences[i]
		}
	}

	present := make(map[int]float64, len(best))
	maxConf := 0.0
	for c, conf := range best {
		if conf > threshold {
			present[c] = conf
			maxConf = math.Max(maxConf, conf)
		}
	}
	return present, maxConf
}
