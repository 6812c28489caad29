// Package activelearning ranks unlabeled object-detection images for annotation.
//
// The selection combines entropy-driven non-maximum suppression over each
// image's detections with class-prototype diversity sampling across the pool:
// uncertain images come first, images whose prototypes duplicate already
// selected ones are deferred, and minority classes get a reserved share of the
// budget. Selection is deterministic and does no I/O beyond logging excluded
// images; feature extraction and persistence live in the features and
// datastore packages.
package activelearning

import (
	"fmt"

	"github.com/wildlens/wildlens-go/internal/errors"
)

// Detection is one detector output of an image.
type Detection struct {
	ClassID    int
	Confidence float64
	Feature    []float64
}

// ClassCounts holds per-class counts indexed by class id. Missing ids count as zero.
type ClassCounts []int

// Get returns the count for class c, 0 when c is out of range.
func (cc ClassCounts) Get(c int) int {
	if c < 0 || c >= len(cc) {
		return 0
	}
	return cc[c]
}

// CountsFromMap converts sparse per-class counts into a dense ClassCounts of
// length numClasses. Ids outside [0, numClasses) are dropped.
func CountsFromMap(m map[int]int, numClasses int) ClassCounts {
	if numClasses <= 0 {
		return nil
	}
	cc := make(ClassCounts, numClasses)
	for c, n := range m {
		if c >= 0 && c < numClasses {
			cc[c] += n
		}
	}
	return cc
}

// Image is one entry of the unlabeled pool.
type Image struct {
	ID         uint
	Detections []Detection
}

// Columns splits the detections into the parallel slices the scorers work on.
func (img Image) Columns() (classes []int, confidences []float64, features [][]float64) {
	n := len(img.Detections)
	classes = make([]int, n)
	confidences = make([]float64, n)
	features = make([][]float64, n)
	for i, d := range img.Detections {
		classes[i] = d.ClassID
		confidences[i] = d.Confidence
		features[i] = d.Feature
	}
	return classes, confidences, features
}

// Prototype maps a class id to the entropy-weighted mean feature of that
// class within one image.
type Prototype map[int][]float64

// ErrLengthMismatch is returned when the per-detection inputs of an image
// disagree in length or feature dimension.
var ErrLengthMismatch = errors.NewStd("activelearning: detection input length mismatch")

// Params are the tunables of the selection.
type Params struct {
	ENMSThreshold  float64 // same-class suppression when cosine similarity is above this
	IntraThreshold float64 // candidates are accepted while intra-class diversity is below this
	InterThreshold float64 // a minority class is present above this confidence
	Alpha          float64 // fraction of classes treated as minority
	Beta           float64 // fraction of the budget reserved for minority classes
}

// DefaultParams returns the published parameter set.
func DefaultParams() Params {
	return Params{
		ENMSThreshold:  0.5,
		IntraThreshold: 0.7,
		InterThreshold: 0.3,
		Alpha:          0.5,
		Beta:           0.75,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	check := func(name string, v float64, lowOpen bool) error {
		if v > 1 || v < 0 || (lowOpen && v == 0) {
			return errors.New(fmt.Errorf("invalid %s %v", name, v)).
				Component("activelearning").
				Category(errors.CategoryValidation).
				Context("parameter", name).
				Build()
		}
		return nil
	}
	return errors.Join(
		check("enms threshold", p.ENMSThreshold, false),
		check("intra threshold", p.IntraThreshold, false),
		check("inter threshold", p.InterThreshold, false),
		check("alpha", p.Alpha, true),
		check("beta", p.Beta, false),
	)
}
