// Package ranking runs active-learning ranking passes over the unlabeled
// pool and schedules them as the pool grows.
package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wildlens/wildlens-go/internal/activelearning"
	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/datastore"
	"github.com/wildlens/wildlens-go/internal/errors"
	"github.com/wildlens/wildlens-go/internal/features"
	"github.com/wildlens/wildlens-go/internal/logger"
	"github.com/wildlens/wildlens-go/internal/observability/metrics"
)

// DefaultAlgorithm is the algorithm tag of ENMS with prototype diversity.
const DefaultAlgorithm = "enms_diversity"

// DefaultNumClasses is used when the class table cannot be read.
const DefaultNumClasses = 98

// eventTopImages bounds the image ids carried by a RankingEvent.
const eventTopImages = 20

// Store is the part of the datastore a ranking pass uses.
type Store interface {
	PoolImages(ctx context.Context) ([]datastore.PoolImage, error)
	ClassCount(ctx context.Context) (int, error)
	LabeledClassCounts(ctx context.Context) (map[int]int, error)
	ReplaceRankings(ctx context.Context, algorithm string, imageIDs []uint) error
}

// RankingEvent announces a replaced ranking.
type RankingEvent struct {
	RunID       string    `json:"run_id"`
	Algorithm   string    `json:"algorithm"`
	PoolSize    int       `json:"pool_size"`
	Ranked      int       `json:"ranked"`
	TopImageIDs []uint    `json:"top_image_ids"`
	CompletedAt time.Time `json:"completed_at"`
}

// Publisher announces ranking updates to other services.
type Publisher interface {
	PublishRankingUpdated(ctx context.Context, event RankingEvent) error
}

// Notifier alerts operators about failed passes.
type Notifier interface {
	NotifyPassFailed(ctx context.Context, runID string, err error) error
}

// SelectionRecorder receives per-pass selection figures.
// *metrics.ActiveLearningMetrics implements it.
type SelectionRecorder interface {
	RecordSelection(pool, byDiversity, byEntropyFill, minorityClasses int)
	RecordExtractionFailures(n int)
}

// Config controls a Ranker.
type Config struct {
	Algorithm string
	// NumClasses is the fallback when the class table is empty or unreadable.
	NumClasses int
	// Budget caps the ranking length, 0 ranks the whole pool.
	Budget  int
	Workers int
	Params  activelearning.Params
}

// ConfigFromSettings maps the active-learning and feature settings.
func ConfigFromSettings(s *conf.Settings) Config {
	al := s.ActiveLearning
	return Config{
		Algorithm:  al.Algorithm,
		NumClasses: al.NumClasses,
		Budget:     al.Budget,
		Workers:    s.Features.Workers,
		Params: activelearning.Params{
			ENMSThreshold:  al.ENMSThreshold,
			IntraThreshold: al.IntraThreshold,
			InterThreshold: al.InterThreshold,
			Alpha:          al.Alpha,
			Beta:           al.Beta,
		},
	}
}

// PassResult summarizes one ranking pass.
type PassResult struct {
	RunID      string
	PoolSize   int
	Usable     int
	NumClasses int
	Ranked     []uint
	Stats      activelearning.Stats
	Written    bool
	Duration   time.Duration
}

// Ranker runs ranking passes.
type Ranker struct {
	store     Store
	provider  features.Provider
	selector  *activelearning.Selector
	cfg       Config
	publisher Publisher
	notifier  Notifier
	recorder  metrics.Recorder
	selection SelectionRecorder
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithPublisher announces every written ranking through p.
func WithPublisher(p Publisher) Option {
	return func(r *Ranker) { r.publisher = p }
}

// WithNotifier reports failed passes through n.
func WithNotifier(n Notifier) Option {
	return func(r *Ranker) { r.notifier = n }
}

// WithRecorder records pass outcomes and step durations in rec.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Ranker) { r.recorder = rec }
}

// WithSelectionRecorder records selection figures in rec.
func WithSelectionRecorder(rec SelectionRecorder) Option {
	return func(r *Ranker) { r.selection = rec }
}

// NewRanker creates a Ranker. It fails on invalid selection parameters.
func NewRanker(store Store, provider features.Provider, cfg Config, opts ...Option) (*Ranker, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = DefaultAlgorithm
	}
	if cfg.NumClasses <= 0 {
		cfg.NumClasses = DefaultNumClasses
	}
	r := &Ranker{
		store:    store,
		provider: provider,
		selector: activelearning.NewSelector(cfg.Params),
		cfg:      cfg,
		recorder: metrics.NopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Algorithm returns the tag rankings are stored under.
func (r *Ranker) Algorithm() string {
	return r.cfg.Algorithm
}

// Run executes one ranking pass: it reads the pool, extracts detections,
// selects and replaces the stored ranking of the algorithm. An empty pool
// leaves the stored ranking untouched. A pass whose context ends before the
// write never writes.
func (r *Ranker) Run(ctx context.Context) (PassResult, error) {
	start := time.Now()
	res := PassResult{RunID: uuid.NewString()}
	ctx = logger.WithTraceID(ctx, res.RunID)
	log := GetLogger().WithContext(ctx).With(logger.String("algorithm", r.cfg.Algorithm))

	err := r.run(ctx, &res, log)
	res.Duration = time.Since(start)

	status := metrics.StatusSuccess
	switch {
	case err != nil && errors.IsCategory(err, errors.CategoryTimeout):
		status = metrics.StatusTimeout
	case err != nil:
		status = metrics.StatusError
	case !res.Written:
		status = metrics.StatusEmpty
	}
	r.recorder.RecordOperation(metrics.OpRankingPass, status)
	r.recorder.RecordDuration(metrics.OpRankingPass, res.Duration.Seconds())

	if err != nil {
		log.Error("ranking pass failed", logger.Error(err), logger.Duration("duration", res.Duration))
		r.notifyFailure(ctx, res.RunID, err)
		return res, err
	}

	log.Info("ranking pass completed",
		logger.String("status", status),
		logger.Int("pool_size", res.PoolSize),
		logger.Int("usable", res.Usable),
		logger.Int("ranked", len(res.Ranked)),
		logger.Int("by_diversity", res.Stats.ByDiversity),
		logger.Int("by_entropy_fill", res.Stats.ByEntropyFill),
		logger.Int("minority_classes", res.Stats.MinorityClasses),
		logger.Int("minority_exhausted", res.Stats.MinorityExhausted),
		logger.Int("malformed", res.Stats.Malformed),
		logger.Duration("duration", res.Duration))
	return res, nil
}

func (r *Ranker) run(ctx context.Context, res *PassResult, log logger.Logger) error {
	images, err := r.store.PoolImages(ctx)
	if err != nil {
		return r.passError(ctx, "load_pool", err)
	}
	res.PoolSize = len(images)
	if len(images) == 0 {
		log.Info("pool is empty, keeping previous ranking")
		return nil
	}

	res.NumClasses = r.numClasses(ctx, log)

	extractStart := time.Now()
	extraction, err := features.ExtractAll(ctx, r.provider, images, r.cfg.Workers, res.NumClasses)
	r.recorder.RecordDuration(metrics.OpFeatureExtract, time.Since(extractStart).Seconds())
	if err != nil {
		return r.passError(ctx, "extract", err)
	}
	if extraction.Failed > 0 {
		r.recorder.RecordError(metrics.OpFeatureExtract, string(errors.CategoryFeatureExtraction))
	}
	if r.selection != nil {
		r.selection.RecordExtractionFailures(extraction.Failed)
	}
	res.Usable = len(extraction.Images)
	if res.Usable == 0 {
		log.Info("no pool image has detections, keeping previous ranking",
			logger.Int("failed", extraction.Failed),
			logger.Int("empty", extraction.Empty))
		return nil
	}

	labeled, err := r.store.LabeledClassCounts(ctx)
	if err != nil {
		return r.passError(ctx, "labeled_counts", err)
	}

	budget := r.cfg.Budget
	if budget <= 0 {
		budget = res.Usable
	}

	selectStart := time.Now()
	ranked, stats := r.selector.Rank(extraction.Images, activelearning.CountsFromMap(labeled, res.NumClasses), budget, res.NumClasses)
	r.recorder.RecordDuration(metrics.OpSelect, time.Since(selectStart).Seconds())
	res.Ranked = ranked
	res.Stats = stats
	if stats.Malformed > 0 {
		r.recorder.RecordError(metrics.OpSelect, string(errors.CategoryValidation))
	}
	if r.selection != nil {
		r.selection.RecordExtractionFailures(stats.Malformed)
		r.selection.RecordSelection(res.PoolSize, stats.ByDiversity, stats.ByEntropyFill, stats.MinorityClasses)
	}
	if stats.Malformed == res.Usable {
		log.Warn("every usable image has malformed detections, keeping previous ranking",
			logger.Int("malformed", stats.Malformed))
		return nil
	}

	if err := ctx.Err(); err != nil {
		return r.passError(ctx, "select", err)
	}

	writeStart := time.Now()
	if err := r.store.ReplaceRankings(ctx, r.cfg.Algorithm, ranked); err != nil {
		return r.passError(ctx, "replace_rankings", err)
	}
	r.recorder.RecordDuration(metrics.OpReplaceRankings, time.Since(writeStart).Seconds())
	res.Written = true

	r.publish(ctx, res, log)
	return nil
}

// numClasses reads the class count, falling back to the configured value.
func (r *Ranker) numClasses(ctx context.Context, log logger.Logger) int {
	n, err := r.store.ClassCount(ctx)
	if err != nil {
		log.Warn("failed to read class count, using configured value",
			logger.Int("num_classes", r.cfg.NumClasses),
			logger.Error(err))
		return r.cfg.NumClasses
	}
	if n <= 0 {
		return r.cfg.NumClasses
	}
	return n
}

func (r *Ranker) publish(ctx context.Context, res *PassResult, log logger.Logger) {
	if r.publisher == nil {
		return
	}
	top := res.Ranked[:min(len(res.Ranked), eventTopImages)]
	event := RankingEvent{
		RunID:       res.RunID,
		Algorithm:   r.cfg.Algorithm,
		PoolSize:    res.PoolSize,
		Ranked:      len(res.Ranked),
		TopImageIDs: append([]uint(nil), top...),
		CompletedAt: time.Now().UTC(),
	}
	start := time.Now()
	if err := r.publisher.PublishRankingUpdated(ctx, event); err != nil {
		r.recorder.RecordError(metrics.OpPublish, string(errors.CategoryMQTTPublish))
		log.Warn("failed to publish ranking update", logger.Error(err))
		return
	}
	r.recorder.RecordDuration(metrics.OpPublish, time.Since(start).Seconds())
}

func (r *Ranker) notifyFailure(ctx context.Context, runID string, passErr error) {
	if r.notifier == nil {
		return
	}
	// the pass context may already be done
	notifyCtx := context.WithoutCancel(ctx)
	if err := r.notifier.NotifyPassFailed(notifyCtx, runID, passErr); err != nil {
		r.recorder.RecordError(metrics.OpNotify, string(errors.CategoryNotification))
		GetLogger().WithContext(ctx).Warn("failed to notify operators", logger.Error(err))
	}
}

// passError categorizes a failed step. Context expiry becomes a timeout or
// cancellation, everything else keeps the category of the underlying error
// and is reported with high priority.
func (r *Ranker) passError(ctx context.Context, step string, err error) error {
	category := errors.CategoryRanking
	priority := errors.PriorityHigh
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		category = errors.CategoryTimeout
		priority = errors.PriorityMedium
	case errors.Is(ctx.Err(), context.Canceled):
		category = errors.CategoryCancellation
		priority = errors.PriorityLow
	default:
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			category = errors.ErrorCategory(ee.GetCategory())
		}
	}
	return errors.New(fmt.Errorf("ranking pass %s: %w", step, err)).
		Component("ranking").
		Category(category).
		Priority(priority).
		Context("step", step).
		Context("algorithm", r.cfg.Algorithm).
		Build()
}

// GetLogger returns the ranking module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("ranking")
}
