// Package features turns stored detector output into the detections the
// active-learning selection works on.
package features

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/wildlens/wildlens-go/internal/activelearning"
	"github.com/wildlens/wildlens-go/internal/datastore"
	"github.com/wildlens/wildlens-go/internal/errors"
	"github.com/wildlens/wildlens-go/internal/logger"
)

// Provider returns the detections of one pool image. An image without
// detections yields an empty slice and no error.
type Provider interface {
	Extract(ctx context.Context, img datastore.PoolImage) ([]activelearning.Detection, error)
}

// BoxSource is the part of the datastore StoreProvider reads from.
type BoxSource interface {
	PredictedBoxes(ctx context.Context, imageID uint) ([]datastore.PredictedBox, error)
}

// Config controls StoreProvider.
type Config struct {
	// Dimension is the required embedding length, 0 accepts any length as
	// long as all detections of an image agree.
	Dimension int
	// CacheTTL is how long decoded detections are reused. 0 disables caching.
	CacheTTL time.Duration
}

// StoreProvider reads predicted boxes with their persisted embeddings from
// the datastore and caches the decoded detections per image.
type StoreProvider struct {
	source    BoxSource
	dimension int
	cache     *cache.Cache
}

// NewStoreProvider creates a provider backed by source.
func NewStoreProvider(source BoxSource, cfg Config) *StoreProvider {
	p := &StoreProvider{
		source:    source,
		dimension: cfg.Dimension,
	}
	if cfg.CacheTTL > 0 {
		p.cache = cache.New(cfg.CacheTTL, cfg.CacheTTL*2)
	}
	return p
}

// Extract implements Provider.
func (p *StoreProvider) Extract(ctx context.Context, img datastore.PoolImage) ([]activelearning.Detection, error) {
	key := strconv.FormatUint(uint64(img.ID), 10)
	if p.cache != nil {
		if cached, found := p.cache.Get(key); found {
			return cached.([]activelearning.Detection), nil
		}
	}

	boxes, err := p.source.PredictedBoxes(ctx, img.ID)
	if err != nil {
		return nil, err
	}

	detections := make([]activelearning.Detection, 0, len(boxes))
	dim := p.dimension
	for _, box := range boxes {
		if math.IsNaN(box.Confidence) || box.Confidence < 0 || box.Confidence > 1 {
			return nil, extractionError(img.ID, fmt.Errorf("box %d confidence %v outside [0,1]", box.ID, box.Confidence))
		}
		feature, err := DecodeEmbedding(box.Embedding)
		if err != nil {
			return nil, extractionError(img.ID, fmt.Errorf("box %d: %w", box.ID, err))
		}
		if dim == 0 {
			dim = len(feature)
		}
		if len(feature) != dim {
			return nil, extractionError(img.ID, fmt.Errorf("box %d embedding dimension %d, want %d", box.ID, len(feature), dim))
		}
		detections = append(detections, activelearning.Detection{
			ClassID:    box.ClassID,
			Confidence: box.Confidence,
			Feature:    feature,
		})
	}

	if p.cache != nil {
		p.cache.Set(key, detections, cache.DefaultExpiration)
	}
	return detections, nil
}

func extractionError(imageID uint, err error) error {
	return errors.New(err).
		Component("features").
		Category(errors.CategoryFeatureExtraction).
		Context("image_id", imageID).
		Build()
}

// GetLogger returns the features module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("features")
}
