package activelearning

import (
	"gonum.org/v1/gonum/floats"
)

// BuildPrototypes computes one prototype per class as the entropy-weighted
// mean of that class's features. Classes whose entropies sum to zero get no
// prototype.
func BuildPrototypes(features [][]float64, classes []int, entropies []float64) Prototype {
	sums := make(map[int][]float64)
	weights := make(map[int]float64)

	for i, c := range classes {
		if len(features[i]) == 0 {
			continue
		}
		sum, ok := sums[c]
		if !ok {
			sum = make([]float64, len(features[i]))
			sums[c] = sum
		}
		floats.AddScaled(sum, entropies[i], features[i])
		weights[c] += entropies[i]
	}

	protos := make(Prototype, len(sums))
	for c, sum := range sums {
		if weights[c] == 0 {
			continue
		}
		floats.Scale(1/weights[c], sum)
		protos[c] = sum
	}
	return protos
}
