package features

import (
	"encoding/binary"
	"math"

	"github.com/wildlens/wildlens-go/internal/errors"
)

// float32Size is the width of one stored embedding component.
const float32Size = 4

// EncodeEmbedding packs a feature vector as little-endian float32 values,
// the layout the detection worker writes to model_predicted_boxes.embedding.
func EncodeEmbedding(v []float64) []byte {
	buf := make([]byte, len(v)*float32Size)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*float32Size:], math.Float32bits(float32(x)))
	}
	return buf
}

// DecodeEmbedding unpacks a blob written by EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float64, error) {
	if len(b) == 0 {
		return nil, errors.Newf("empty embedding").
			Component("features").
			Category(errors.CategoryFeatureExtraction).
			Build()
	}
	if len(b)%float32Size != 0 {
		return nil, errors.Newf("embedding length %d is not a multiple of %d", len(b), float32Size).
			Component("features").
			Category(errors.CategoryFeatureExtraction).
			Context("bytes", len(b)).
			Build()
	}
	v := make([]float64, len(b)/float32Size)
	for i := range v {
		f := math.Float32frombits(binary.LittleEndian.Uint32(b[i*float32Size:]))
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, errors.Newf("embedding component %d is not finite", i).
				Component("features").
				Category(errors.CategoryFeatureExtraction).
				Build()
		}
		v[i] = float64(f)
	}
	return v, nil
}
