package features

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wildlens/wildlens-go/internal/activelearning"
	"github.com/wildlens/wildlens-go/internal/datastore"
	"github.com/wildlens/wildlens-go/internal/logger"
)

// DefaultWorkers is used when ExtractAll is given a non-positive worker count.
const DefaultWorkers = 4

// Extraction is the result of extracting a whole pool.
type Extraction struct {
	// Images holds the images with at least one detection, in pool order.
	Images []activelearning.Image
	// Failed counts images whose extraction returned an error.
	Failed int
	// Empty counts images without any detection.
	Empty int
	// Dropped counts detections whose class id was outside [0, numClasses).
	Dropped int
}

type extracted struct {
	detections []activelearning.Detection
	err        error
}

// ExtractAll extracts every image with at most workers concurrent calls to
// p. A failing image is logged and left out; only cancellation of ctx fails
// the whole extraction. Detections with a class id outside [0, numClasses)
// are dropped.
func ExtractAll(ctx context.Context, p Provider, images []datastore.PoolImage, workers, numClasses int) (Extraction, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	log := GetLogger().WithContext(ctx)
	start := time.Now()

	results := make([]extracted, len(images))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, img := range images {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dets, err := p.Extract(ctx, img)
			results[i] = extracted{detections: dets, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Extraction{}, err
	}
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}

	var out Extraction
	out.Images = make([]activelearning.Image, 0, len(images))
	for i, r := range results {
		imageID := images[i].ID
		if r.err != nil {
			out.Failed++
			log.Warn("excluding image after extraction failure",
				logger.Uint64("image_id", uint64(imageID)),
				logger.Error(r.err))
			continue
		}

		kept := make([]activelearning.Detection, 0, len(r.detections))
		for _, d := range r.detections {
			if d.ClassID < 0 || d.ClassID >= numClasses {
				out.Dropped++
				log.Warn("dropping detection with unknown class",
					logger.Uint64("image_id", uint64(imageID)),
					logger.Int("class_id", d.ClassID),
					logger.Int("num_classes", numClasses))
				continue
			}
			kept = append(kept, d)
		}
		if len(kept) == 0 {
			out.Empty++
			continue
		}
		out.Images = append(out.Images, activelearning.Image{ID: imageID, Detections: kept})
	}

	log.Debug("feature extraction completed",
		logger.Int("images", len(images)),
		logger.Int("usable", len(out.Images)),
		logger.Int("failed", out.Failed),
		logger.Int("empty", out.Empty),
		logger.Int("dropped_detections", out.Dropped),
		logger.Duration("duration", time.Since(start)))
	return out, nil
}
