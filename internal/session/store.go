package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keagan/scenesplit/internal/scene"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner executes one batch to completion
type Runner interface {
	RunBatch(ctx context.Context, batch *scene.BatchContext) (*scene.BatchResult, error)
}

// Options configures batch retention
type Options struct {
	// TTL is how long a finished batch stays retrievable
	TTL time.Duration
	// SweepSchedule is a cron spec for evicting expired batches ("" disables the sweeper)
	SweepSchedule string
}

// Store keeps submitted batches in memory, keyed by ID
type Store struct {
	logger zerolog.Logger
	runner Runner
	opts   Options
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	batches map[string]*Batch

	cron *cron.Cron
}

// NewStore creates a store and starts its sweeper
func NewStore(logger zerolog.Logger, runner Runner, opts Options) (*Store, error) {
	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With().Str("component", "session").Logger()

	s := &Store{
		logger:  logger,
		runner:  runner,
		opts:    opts,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		batches: make(map[string]*Batch),
	}

	if opts.SweepSchedule != "" {
		cronLogger := cron.PrintfLogger(&logger)
		s.cron = cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.SkipIfStillRunning(cronLogger)))
		if _, err := s.cron.AddFunc(opts.SweepSchedule, func() { s.Sweep() }); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid sweep schedule %q: %w", opts.SweepSchedule, err)
		}
		s.cron.Start()
	}

	return s, nil
}

// Create validates bc and registers a queued batch for it
func (s *Store) Create(bc *scene.BatchContext) (*Batch, error) {
	if bc == nil {
		return nil, &scene.CallerError{Field: "batch", Reason: "batch cannot be nil"}
	}
	if err := bc.Validate(); err != nil {
		return nil, err
	}

	b := newBatch(uuid.NewString(), bc, s.now())

	s.mu.Lock()
	s.batches[b.ID] = b
	s.mu.Unlock()

	s.logger.Info().Str("batch_id", b.ID).Int("videos", len(bc.Videos)).Msg("batch created")
	return b, nil
}

// Start runs b in the background. Events reach subscribers and any OnEvent
// hook the caller set on the batch context.
func (s *Store) Start(b *Batch) {
	ctx, cancel := context.WithCancel(s.ctx)
	b.setRunning(cancel)

	bc := *b.ctx
	hook := bc.OnEvent
	bc.OnEvent = func(ev scene.Event) {
		b.record(ev)
		if hook != nil {
			hook(ev)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		logger := s.logger.With().Str("batch_id", b.ID).Logger()
		logger.Info().Msg("batch started")

		result, err := s.runner.RunBatch(ctx, &bc)
		b.finish(result, err, s.now())

		if err != nil {
			logger.Warn().Err(err).Msg("batch stopped")
			return
		}
		logger.Info().
			Int("scenes", result.Successes()).
			Int("failures", result.Failures()).
			Msg("batch finished")
	}()
}

// Get returns the batch with the given ID
func (s *Store) Get(id string) (*Batch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	return b, ok
}

// Delete cancels the batch if it is still running and forgets it
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	b, ok := s.batches[id]
	delete(s.batches, id)
	s.mu.Unlock()

	if ok {
		b.Cancel()
		s.logger.Info().Str("batch_id", id).Msg("batch deleted")
	}
	return ok
}

// Len returns the number of batches held
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.batches)
}

// Sweep evicts finished batches older than the TTL and returns how many went
func (s *Store) Sweep() int {
	if s.opts.TTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.opts.TTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, b := range s.batches {
		if b.expired(cutoff) {
			delete(s.batches, id)
			evicted++
		}
	}

	if evicted > 0 {
		s.logger.Info().Int("evicted", evicted).Int("remaining", len(s.batches)).Msg("swept expired batches")
	}
	return evicted
}

// Close stops the sweeper, cancels running batches and waits for them to return
func (s *Store) Close() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.cancel()
	s.wg.Wait()
}
