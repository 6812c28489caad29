package ranking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/errors"
	"github.com/wildlens/wildlens-go/internal/logger"
)

const (
	// DefaultInterval is how often the pool size is checked.
	DefaultInterval = time.Minute
	// DefaultThreshold is the pool growth that triggers a pass.
	DefaultThreshold = 50
	// DefaultPassTimeout bounds a single pass.
	DefaultPassTimeout = 10 * time.Minute
	// stopTimeout bounds Stop while a pass winds down.
	stopTimeout = 30 * time.Second
)

// PoolCounter counts the images eligible for ranking.
type PoolCounter interface {
	CountPoolImages(ctx context.Context) (int64, error)
}

// PassRunner runs one ranking pass. *Ranker implements it.
type PassRunner interface {
	Run(ctx context.Context) (PassResult, error)
}

// CounterState stores the pool size seen by the last successful pass.
type CounterState interface {
	Get(ctx context.Context) (int64, error)
	Set(ctx context.Context, count int64) error
}

// MemoryCounter is a process-local CounterState. It starts at zero, so the
// first check after startup triggers once the pool holds threshold images.
type MemoryCounter struct {
	mu    sync.Mutex
	count int64
}

// Get implements CounterState.
func (c *MemoryCounter) Get(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, nil
}

// Set implements CounterState.
func (c *MemoryCounter) Set(_ context.Context, count int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = count
	return nil
}

// SkipRecorder counts triggers dropped because a pass was still running.
type SkipRecorder interface {
	RecordSkippedTrigger()
}

// SchedulerConfig controls a Scheduler.
type SchedulerConfig struct {
	Interval    time.Duration
	Threshold   int64
	PassTimeout time.Duration
}

// SchedulerConfigFromSettings maps the scheduler settings.
func SchedulerConfigFromSettings(s *conf.Settings) SchedulerConfig {
	return SchedulerConfig{
		Interval:    s.Scheduler.Interval,
		Threshold:   int64(s.Scheduler.Threshold),
		PassTimeout: s.Scheduler.PassTimeout,
	}
}

// Scheduler checks the pool size on an interval and runs a pass once the
// pool grew by at least Threshold images since the last successful pass.
// At most one pass runs at a time.
type Scheduler struct {
	counter PoolCounter
	runner  PassRunner
	state   CounterState
	cfg     SchedulerConfig
	skips   SkipRecorder

	passMu sync.Mutex // held while a pass runs

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewScheduler creates a Scheduler. A nil state uses a MemoryCounter and a
// nil skips discards skipped triggers.
func NewScheduler(counter PoolCounter, runner PassRunner, state CounterState, cfg SchedulerConfig, skips SkipRecorder) *Scheduler {
	if state == nil {
		state = &MemoryCounter{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = DefaultPassTimeout
	}
	return &Scheduler{
		counter: counter,
		runner:  runner,
		state:   state,
		cfg:     cfg,
		skips:   skips,
	}
}

// Start begins checking the pool every interval until ctx ends or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return errors.Newf("scheduler already running").
			Component("ranking").
			Category(errors.CategoryState).
			Build()
	}
	s.isRunning = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Go(func() { s.loop(loopCtx) })

	GetLogger().Info("ranking scheduler started",
		logger.Duration("interval", s.cfg.Interval),
		logger.Int64("threshold", s.cfg.Threshold),
		logger.Duration("pass_timeout", s.cfg.PassTimeout))
	return nil
}

// Stop cancels the loop and any running pass and waits for them to exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		GetLogger().Info("ranking scheduler stopped")
		return nil
	case <-time.After(stopTimeout):
		return fmt.Errorf("timed out waiting for ranking pass to stop after %v", stopTimeout)
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// passes run beside the loop so later ticks see the pass lock
			s.wg.Go(func() {
				if _, err := s.CheckNow(ctx); err != nil && ctx.Err() == nil {
					GetLogger().Error("scheduled ranking check failed", logger.Error(err))
				}
			})
		}
	}
}

// CheckNow runs a pass when the pool grew by at least the threshold since
// the last successful pass. It reports whether a pass ran. A trigger that
// arrives while another pass is running is skipped.
func (s *Scheduler) CheckNow(ctx context.Context) (bool, error) {
	count, err := s.counter.CountPoolImages(ctx)
	if err != nil {
		return false, s.schedulerError("count_pool", err)
	}
	last, err := s.state.Get(ctx)
	if err != nil {
		return false, s.schedulerError("read_state", err)
	}
	if count-last < s.cfg.Threshold {
		return false, nil
	}

	if !s.passMu.TryLock() {
		if s.skips != nil {
			s.skips.RecordSkippedTrigger()
		}
		GetLogger().Debug("ranking pass already running, skipping trigger",
			logger.Int64("pool_size", count))
		return false, nil
	}
	defer s.passMu.Unlock()

	// a pass that finished since the first read may have advanced the state
	if last, err = s.state.Get(ctx); err != nil {
		return false, s.schedulerError("read_state", err)
	}
	if count-last < s.cfg.Threshold {
		return false, nil
	}

	GetLogger().Info("pool growth reached threshold, starting ranking pass",
		logger.Int64("pool_size", count),
		logger.Int64("last_processed", last),
		logger.Int64("threshold", s.cfg.Threshold))

	passCtx, cancel := context.WithTimeout(ctx, s.cfg.PassTimeout)
	defer cancel()
	if _, err := s.runner.Run(passCtx); err != nil {
		return true, err
	}

	if err := s.state.Set(ctx, count); err != nil {
		return true, s.schedulerError("write_state", err)
	}
	return true, nil
}

func (s *Scheduler) schedulerError(step string, err error) error {
	return errors.New(fmt.Errorf("ranking scheduler %s: %w", step, err)).
		Component("ranking").
		Category(errors.CategoryScheduler).
		Context("step", step).
		Build()
}
