package activelearning

import (
	"fmt"
)

// EntropyNMS runs class-aware non-maximum suppression driven by uncertainty.
//
// It repeatedly takes the available detection with the highest entropy (the
// lowest index on ties), adds its entropy to the total, and drops every other
// available detection of the same class whose feature has cosine similarity
// strictly above threshold with the pick. It returns the summed entropy of
// the survivors and their indices in pick order.
//
// The three slices must have equal length; ScoreImage validates this.
func EntropyNMS(classes []int, confidences []float64, features [][]float64, threshold float64) (float64, []int) {
	n := len(classes)
	if n == 0 {
		return 0, nil
	}

	entropies := Entropies(confidences)
	available := make([]bool, n)
	for i := range available {
		available[i] = true
	}

	var (
		total     float64
		survivors []int
	)
	for remaining := n; remaining > 0; {
		best := -1
		for i := range n {
			if available[i] && (best < 0 || entropies[i] > entropies[best]) {
				best = i
			}
		}
		available[best] = false
		remaining--
		survivors = append(survivors, best)
		total += entropies[best]

		for i := range n {
			if !available[i] || classes[i] != classes[best] {
				continue
			}
			if CosineSimilarity(features[best], features[i]) > threshold {
				available[i] = false
				remaining--
			}
		}
	}
	return total, survivors
}

// ImageScore is the per-image result of suppression and prototype building.
type ImageScore struct {
	TotalEntropy float64
	Survivors    []int
	Prototype    Prototype
}

// ScoreImage validates the detections of img, suppresses redundant ones and
// builds the class prototypes of the survivors.
func ScoreImage(img Image, p Params) (ImageScore, error) {
	classes, confidences, features := img.Columns()
	if err := checkColumns(classes, confidences, features); err != nil {
		return ImageScore{}, fmt.Errorf("image %d: %w", img.ID, err)
	}

	total, survivors := EntropyNMS(classes, confidences, features, p.ENMSThreshold)

	survFeatures := make([][]float64, len(survivors))
	survClasses := make([]int, len(survivors))
	survEntropies := make([]float64, len(survivors))
	for k, i := range survivors {
		survFeatures[k] = features[i]
		survClasses[k] = classes[i]
		survEntropies[k] = Entropy(confidences[i])
	}

	return ImageScore{
		TotalEntropy: total,
		Survivors:    survivors,
		Prototype:    BuildPrototypes(survFeatures, survClasses, survEntropies),
	}, nil
}

func checkColumns(classes []int, confidences []float64, features [][]float64) error {
	if len(classes) != len(confidences) || len(classes) != len(features) {
		return fmt.Errorf("%w: %d classes, %d confidences, %d features",
			ErrLengthMismatch, len(classes), len(confidences), len(features))
	}
	for i := 1; i < len(features); i++ {
		if len(features[i]) != len(features[0]) {
			return fmt.Errorf("%w: feature %d has dimension %d, want %d",
				ErrLengthMismatch, i, len(features[i]), len(features[0]))
		}
	}
	return nil
}
