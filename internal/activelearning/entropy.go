package activelearning

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const entropyEpsilon = 1e-12

// Entropy returns the binary entropy of a detection confidence in nats.
// Confidences at or beyond the unit interval bounds carry no uncertainty.
func Entropy(p float64) float64 {
	if p <= 0 || p >= 1 || math.IsNaN(p) {
		return 0
	}
	p = math.Min(math.Max(p, entropyEpsilon), 1-entropyEpsilon)
	return -p*math.Log(p) - (1-p)*math.Log(1-p)
}

// Entropies applies Entropy to every confidence.
func Entropies(confidences []float64) []float64 {
	out := make([]float64, len(confidences))
	for i, p := range confidences {
		out[i] = Entropy(p)
	}
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero vectors and vectors of different length have similarity 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
